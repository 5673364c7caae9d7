package service

import (
	"context"
	"fmt"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconcileServiceImpl implements ports.ReconcileService: it applies
// asynchronously received confirmations (webhooks, polls) to payments. The
// transition is a compare-and-set guarded by "current status is PENDING", so
// a race with submit or another webhook resolves to a no-op, never an
// overwrite.
type ReconcileServiceImpl struct {
	paymentRepo ports.PaymentRepository
	webhookRepo ports.WebhookEventRepository
	log         zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
func NewReconcileService(
	paymentRepo ports.PaymentRepository,
	webhookRepo ports.WebhookEventRepository,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		paymentRepo: paymentRepo,
		webhookRepo: webhookRepo,
		log:         log,
	}
}

// Reconcile locates the target payment by order id, falling back to quote
// id, and applies the mapped status if terminal. Unmatched events are
// recorded and acknowledged without action.
func (s *ReconcileServiceImpl) Reconcile(ctx context.Context, event domain.WebhookEvent) (*ports.ReconcileResult, error) {
	payment, err := s.locate(ctx, event)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("locate payment: %w", err))
	}
	if payment == nil {
		s.record(ctx, event, nil, domain.WebhookOutcomeUnmatched, "ORDER_NOT_FOUND")
		return &ports.ReconcileResult{Outcome: domain.WebhookOutcomeUnmatched}, nil
	}

	canonical := MapStatus(event.RawStatus)
	if !canonical.IsTerminal() {
		s.record(ctx, event, &payment.ID, domain.WebhookOutcomeNoChange, "")
		return &ports.ReconcileResult{
			Outcome:   domain.WebhookOutcomeNoChange,
			PaymentID: &payment.ID,
		}, nil
	}

	var settlements []domain.SettlementRef
	if event.TxID != "" {
		settlements = []domain.SettlementRef{{
			ChainID: payment.Recipient.ChainID,
			TxHash:  event.TxID,
		}}
	}

	newStatus := canonical.PaymentStatus()
	applied, err := s.paymentRepo.FinalizeIfPending(ctx, payment.ID, newStatus, settlements)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("finalize payment: %w", err))
	}

	outcome := domain.WebhookOutcomeApplied
	if !applied {
		// Another path finalized first. Not an error, not an overwrite.
		outcome = domain.WebhookOutcomeIgnored
	}
	s.record(ctx, event, &payment.ID, outcome, "")

	result := &ports.ReconcileResult{
		Outcome:   outcome,
		PaymentID: &payment.ID,
	}
	if applied {
		result.NewStatus = &newStatus
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("upstream_status", event.RawStatus).
		Str("outcome", string(outcome)).
		Msg("webhook reconciled")

	return result, nil
}

// locate resolves the target payment: order id first, quote id as fallback,
// first match wins.
func (s *ReconcileServiceImpl) locate(ctx context.Context, event domain.WebhookEvent) (*domain.Payment, error) {
	if event.OrderID != "" {
		payment, err := s.paymentRepo.GetByProviderRef(ctx, event.OrderID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}
	if event.QuoteID != "" {
		return s.paymentRepo.GetByQuoteID(ctx, event.QuoteID)
	}
	return nil, nil
}

// record writes the webhook event log. Best-effort: a logging failure never
// blocks reconciliation.
func (s *ReconcileServiceImpl) record(ctx context.Context, event domain.WebhookEvent, paymentID *uuid.UUID, outcome domain.WebhookOutcome, reason string) {
	logEntry := &domain.WebhookEventLog{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
	if event.OrderID != "" {
		logEntry.OrderID = &event.OrderID
	}
	if event.QuoteID != "" {
		logEntry.QuoteID = &event.QuoteID
	}
	if event.RawStatus != "" {
		logEntry.RawStatus = &event.RawStatus
	}
	if reason != "" {
		logEntry.Reason = &reason
	}
	if err := s.webhookRepo.Record(ctx, logEntry); err != nil {
		s.log.Warn().Err(err).Str("outcome", string(outcome)).Msg("failed to record webhook event")
	}
}
