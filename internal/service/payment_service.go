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

// PaymentServiceImpl implements ports.PaymentService, the payment intent
// state machine. It owns every status transition; the provider client only
// reports what the provider said.
type PaymentServiceImpl struct {
	paymentRepo ports.PaymentRepository
	provider    ports.ProviderClient
	catalog     ports.TokenCatalog
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	provider ports.ProviderClient,
	catalog ports.TokenCatalog,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		provider:    provider,
		catalog:     catalog,
		log:         log,
	}
}

// Prepare creates a payment intent idempotently and hands execution to the
// provider. A provider failure here leaves the payment PENDING: the caller
// already holds a payment id and the reconciler retries execution later.
func (s *PaymentServiceImpl) Prepare(ctx context.Context, req ports.PrepareRequest) (*ports.PrepareResult, error) {
	if req.IdempotencyKey == "" {
		return nil, apperror.ErrMissingIdempotencyKey()
	}

	// Natural-key lookup: a repeat prepare returns the original payment.
	existing, err := s.paymentRepo.GetByNaturalKey(ctx, req.MerchantID, req.IdempotencyKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("natural key lookup: %w", err))
	}
	if existing != nil {
		return &ports.PrepareResult{Payment: existing, Replayed: true}, nil
	}

	decimals, err := s.catalog.Decimals(ctx, req.AssetID)
	if err != nil {
		if apperror.Code(err) != "" {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("token decimals: %w", err))
	}

	units, err := domain.ToSmallestUnit(req.Amount, decimals)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	// Fee quote is best-effort: a payment without a quote is still usable.
	quote, err := s.provider.Quote(ctx, ports.QuoteRequest{
		AssetID:   req.AssetID,
		Amount:    units,
		Payer:     req.Payer,
		Recipient: req.Recipient,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("asset", req.AssetID).Msg("fee quote unavailable, preparing without quote")
		quote = nil
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:             uuid.New(),
		MerchantID:     req.MerchantID,
		Status:         domain.PaymentStatusPending,
		Payer:          req.Payer,
		Recipient:      req.Recipient,
		AssetID:        req.AssetID,
		Amount:         units,
		Memo:           req.Memo,
		IdempotencyKey: req.IdempotencyKey,
		Settlements:    []domain.SettlementRef{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if quote != nil {
		payment.QuoteID = &quote.QuoteID
	}

	created, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}
	if !created {
		// A concurrent prepare won the natural-key reservation; return its
		// payment instead of double-executing the provider call.
		winner, err := s.paymentRepo.GetByNaturalKey(ctx, req.MerchantID, req.IdempotencyKey)
		if err != nil || winner == nil {
			return nil, apperror.InternalError(fmt.Errorf("fetch reservation winner: %w", err))
		}
		return &ports.PrepareResult{Payment: winner, Replayed: true}, nil
	}

	execReq := ports.ExecuteRequest{
		PaymentID: payment.ID,
		AssetID:   req.AssetID,
		Amount:    units,
		Payer:     req.Payer,
		Recipient: req.Recipient,
	}
	if payment.QuoteID != nil {
		execReq.QuoteID = *payment.QuoteID
	}

	result, err := s.provider.Execute(ctx, execReq)
	if err != nil {
		// Swallowed on purpose: the client polls the PENDING payment and the
		// reconciler retries execution out of band.
		s.log.Warn().Err(err).
			Str("payment_id", payment.ID.String()).
			Msg("provider execution failed during prepare, payment stays pending")
		return &ports.PrepareResult{Payment: payment, Quote: quote}, nil
	}

	if err := s.paymentRepo.SetProviderRef(ctx, payment.ID, result.ProviderRef); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("record provider ref: %w", err))
	}
	payment.ProviderRef = &result.ProviderRef

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Str("provider_ref", result.ProviderRef).
		Msg("payment prepared")

	return &ports.PrepareResult{Payment: payment, Quote: quote}, nil
}

// Submit finalizes a payment with the caller's signed settlement payload.
// Retryable provider errors are surfaced to the synchronously waiting caller;
// a terminal race with a webhook or poll resolves to whichever committed
// first.
func (s *PaymentServiceImpl) Submit(ctx context.Context, req ports.SubmitRequest) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil || payment.MerchantID != req.MerchantID {
		return nil, apperror.ErrPaymentNotFound()
	}
	if payment.IsTerminal() {
		return nil, apperror.ErrPaymentAlreadyFinalized()
	}

	execReq := ports.ExecuteRequest{
		PaymentID:     payment.ID,
		AssetID:       payment.AssetID,
		Amount:        payment.Amount,
		Payer:         payment.Payer,
		Recipient:     payment.Recipient,
		SignedPayload: req.SignedPayload,
	}
	if payment.QuoteID != nil {
		execReq.QuoteID = *payment.QuoteID
	}

	result, err := s.provider.Execute(ctx, execReq)
	if err != nil {
		if apperror.IsRetryableProvider(err) {
			return nil, err
		}
		// Explicit provider rejection decides the payment.
		if _, casErr := s.paymentRepo.FinalizeIfPending(ctx, payment.ID, domain.PaymentStatusFailed, nil); casErr != nil {
			return nil, apperror.InternalError(fmt.Errorf("finalize failed payment: %w", casErr))
		}
		s.log.Info().
			Str("payment_id", payment.ID.String()).
			Str("reason", err.Error()).
			Msg("payment failed on provider rejection")
		return s.reload(ctx, payment.ID)
	}

	if payment.ProviderRef == nil && result.ProviderRef != "" {
		if err := s.paymentRepo.SetProviderRef(ctx, payment.ID, result.ProviderRef); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record provider ref: %w", err))
		}
	}

	canonical := MapStatus(result.UpstreamStatus)
	if canonical.IsTerminal() {
		applied, err := s.paymentRepo.FinalizeIfPending(ctx, payment.ID, canonical.PaymentStatus(), result.Settlements)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("finalize payment: %w", err))
		}
		s.log.Info().
			Str("payment_id", payment.ID.String()).
			Str("status", string(canonical.PaymentStatus())).
			Bool("applied", applied).
			Msg("payment submitted")
	}
	// Provider "pending": the payment stays PENDING and a webhook or the
	// reconciler's poll finishes the job.

	return s.reload(ctx, payment.ID)
}

// Get returns a payment scoped to the requesting merchant.
func (s *PaymentServiceImpl) Get(ctx context.Context, merchantID, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil || payment.MerchantID != merchantID {
		return nil, apperror.ErrPaymentNotFound()
	}
	return payment, nil
}

// List returns a merchant's payments with filtering and pagination.
func (s *PaymentServiceImpl) List(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	payments, total, err := s.paymentRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list payments: %w", err))
	}
	return payments, total, nil
}

func (s *PaymentServiceImpl) reload(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return payment, nil
}
