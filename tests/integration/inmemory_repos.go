package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// --- In-Memory Payment Repo ---

// inMemoryPaymentRepo mirrors the PostgreSQL repo's two atomic primitives
// under a mutex: natural-key reservation in Create and the status-guarded
// terminal transition in FinalizeIfPending. finalizeCount tracks applied
// transitions so races can assert exactly-once semantics.
type inMemoryPaymentRepo struct {
	mu            sync.RWMutex
	payments      map[uuid.UUID]*domain.Payment
	naturalKeys   map[string]uuid.UUID
	finalizeCount atomic.Int64
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{
		payments:    make(map[uuid.UUID]*domain.Payment),
		naturalKeys: make(map[string]uuid.UUID),
	}
}

func naturalKey(merchantID uuid.UUID, idempotencyKey string) string {
	return merchantID.String() + "|" + idempotencyKey
}

func copyPayment(p *domain.Payment) *domain.Payment {
	cp := *p
	if p.Memo != nil {
		m := *p.Memo
		cp.Memo = &m
	}
	if p.QuoteID != nil {
		q := *p.QuoteID
		cp.QuoteID = &q
	}
	if p.ProviderRef != nil {
		r := *p.ProviderRef
		cp.ProviderRef = &r
	}
	cp.Settlements = append([]domain.SettlementRef(nil), p.Settlements...)
	return &cp
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.Payment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nk := naturalKey(p.MerchantID, p.IdempotencyKey)
	if _, taken := r.naturalKeys[nk]; taken {
		return false, nil
	}
	r.naturalKeys[nk] = p.ID
	r.payments[p.ID] = copyPayment(p)
	return true, nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	return copyPayment(p), nil
}

func (r *inMemoryPaymentRepo) GetByNaturalKey(ctx context.Context, merchantID uuid.UUID, idempotencyKey string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.naturalKeys[naturalKey(merchantID, idempotencyKey)]
	if !ok {
		return nil, nil
	}
	return copyPayment(r.payments[id]), nil
}

func (r *inMemoryPaymentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.ProviderRef != nil && *p.ProviderRef == providerRef {
			return copyPayment(p), nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) GetByQuoteID(ctx context.Context, quoteID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.QuoteID != nil && *p.QuoteID == quoteID {
			return copyPayment(p), nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found: %s", id)
	}
	p.ProviderRef = &providerRef
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryPaymentRepo) FinalizeIfPending(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, settlements []domain.SettlementRef) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if settlements != nil {
		p.Settlements = append([]domain.SettlementRef(nil), settlements...)
	}
	p.UpdatedAt = time.Now().UTC()
	r.finalizeCount.Add(1)
	return true, nil
}

func (r *inMemoryPaymentRepo) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []domain.Payment
	for _, p := range r.payments {
		if p.Status == domain.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			pending = append(pending, *copyPayment(p))
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *inMemoryPaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []domain.Payment
	for _, p := range r.payments {
		if p.MerchantID != params.MerchantID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		matches = append(matches, *copyPayment(p))
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	total := int64(len(matches))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func (r *inMemoryPaymentRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payments)
}

// --- In-Memory API Key Repo ---

type inMemoryAPIKeyRepo struct {
	mu   sync.RWMutex
	keys map[string]*domain.APIKey
}

func newInMemoryAPIKeyRepo() *inMemoryAPIKeyRepo {
	return &inMemoryAPIKeyRepo{keys: make(map[string]*domain.APIKey)}
}

func (r *inMemoryAPIKeyRepo) add(key *domain.APIKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.KeyID] = key
}

func (r *inMemoryAPIKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[keyID]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

// --- In-Memory Webhook Event Repo ---

type inMemoryWebhookEventRepo struct {
	mu      sync.Mutex
	entries []domain.WebhookEventLog
}

func newInMemoryWebhookEventRepo() *inMemoryWebhookEventRepo {
	return &inMemoryWebhookEventRepo{}
}

func (r *inMemoryWebhookEventRepo) Record(ctx context.Context, entry *domain.WebhookEventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryWebhookEventRepo) records() []domain.WebhookEventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.WebhookEventLog(nil), r.entries...)
}
