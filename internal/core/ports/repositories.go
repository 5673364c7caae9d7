package ports

import (
	"context"
	"time"

	"intent-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentRepository defines persistence operations for payments. The store
// is shared across replicas; Create and FinalizeIfPending are the two atomic
// primitives the orchestrator's correctness rests on.
type PaymentRepository interface {
	// Create reserves the (merchant_id, idempotency_key) natural key and
	// inserts the payment. Returns false with no error when another writer
	// already holds the key; callers then fetch the winner's record.
	Create(ctx context.Context, payment *domain.Payment) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByNaturalKey(ctx context.Context, merchantID uuid.UUID, idempotencyKey string) (*domain.Payment, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*domain.Payment, error)
	GetByQuoteID(ctx context.Context, quoteID string) (*domain.Payment, error)
	// SetProviderRef records the provider-assigned order id after execution.
	SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error
	// FinalizeIfPending is the compare-and-set state transition: it moves the
	// payment to the given terminal status only if the current status is
	// PENDING, recording settlements in the same statement. Returns true if
	// the transition was applied, false if another path finalized first.
	FinalizeIfPending(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, settlements []domain.SettlementRef) (bool, error)
	// ListPendingCreatedBefore returns PENDING payments created before the
	// cutoff, oldest first, for the background reconciler.
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error)
	List(ctx context.Context, params PaymentListParams) ([]domain.Payment, int64, error)
}

// PaymentListParams holds filter + pagination for listing payments.
type PaymentListParams struct {
	MerchantID uuid.UUID
	Status     *domain.PaymentStatus
	Page       int
	PageSize   int
}

// APIKeyRepository defines persistence operations for API keys.
type APIKeyRepository interface {
	GetByKeyID(ctx context.Context, keyID string) (*domain.APIKey, error)
}

// WebhookEventRepository records received provider webhooks for diagnosis.
type WebhookEventRepository interface {
	Record(ctx context.Context, log *domain.WebhookEventLog) error
}
