package postgres

import (
	"context"
	"fmt"

	"intent-payment-gateway/internal/core/domain"
)

// WebhookEventRepo implements ports.WebhookEventRepository. Append-only.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// Record persists one received webhook and its processing outcome.
func (r *WebhookEventRepo) Record(ctx context.Context, log *domain.WebhookEventLog) error {
	query := `INSERT INTO webhook_events (id, order_id, quote_id, payment_id, raw_status, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		log.ID, log.OrderID, log.QuoteID, log.PaymentID,
		log.RawStatus, log.Outcome, log.Reason, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}
