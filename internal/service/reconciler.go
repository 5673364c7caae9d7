package service

import (
	"context"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// Payments younger than this are left alone; they are usually mid-flight in
// a prepare or submit call.
const reconcileGrace = 30 * time.Second

// Reconciler is the background safety net behind webhooks. On an interval it
// sweeps PENDING payments and, per payment: expires it when it outlived the
// expiry horizon, retries provider execution when prepare never got a
// provider reference, or polls the provider's status and applies the result
// through the same compare-and-set transition webhooks use.
type Reconciler struct {
	paymentRepo ports.PaymentRepository
	provider    ports.ProviderClient
	interval    time.Duration
	batchSize   int
	expiry      time.Duration
	log         zerolog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	paymentRepo ports.PaymentRepository,
	provider ports.ProviderClient,
	interval time.Duration,
	batchSize int,
	expiry time.Duration,
	log zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		paymentRepo: paymentRepo,
		provider:    provider,
		interval:    interval,
		batchSize:   batchSize,
		expiry:      expiry,
		log:         log,
	}
}

// Run sweeps until ctx is cancelled. Intended to be started as a goroutine
// from main.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().
		Dur("interval", r.interval).
		Dur("expiry", r.expiry).
		Msg("reconciler started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep processes one batch of stale PENDING payments.
func (r *Reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-reconcileGrace)
	pending, err := r.paymentRepo.ListPendingCreatedBefore(ctx, cutoff, r.batchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("reconciler: listing pending payments failed")
		return
	}

	for _, payment := range pending {
		if ctx.Err() != nil {
			return
		}
		r.reconcileOne(ctx, payment)
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, payment domain.Payment) {
	now := time.Now().UTC()

	if now.Sub(payment.CreatedAt) > r.expiry {
		applied, err := r.paymentRepo.FinalizeIfPending(ctx, payment.ID, domain.PaymentStatusExpired, nil)
		if err != nil {
			r.log.Error().Err(err).Str("payment_id", payment.ID.String()).Msg("reconciler: expire failed")
			return
		}
		if applied {
			r.log.Info().Str("payment_id", payment.ID.String()).Msg("reconciler: payment expired")
		}
		return
	}

	// Prepare-time execution failed; retry it so the payment gets a provider
	// reference for webhooks and polls to match against.
	if payment.ProviderRef == nil {
		execReq := ports.ExecuteRequest{
			PaymentID: payment.ID,
			AssetID:   payment.AssetID,
			Amount:    payment.Amount,
			Payer:     payment.Payer,
			Recipient: payment.Recipient,
		}
		if payment.QuoteID != nil {
			execReq.QuoteID = *payment.QuoteID
		}
		result, err := r.provider.Execute(ctx, execReq)
		if err != nil {
			r.log.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("reconciler: execution retry failed")
			return
		}
		if err := r.paymentRepo.SetProviderRef(ctx, payment.ID, result.ProviderRef); err != nil {
			r.log.Error().Err(err).Str("payment_id", payment.ID.String()).Msg("reconciler: recording provider ref failed")
		}
		return
	}

	rawStatus, err := r.provider.FetchStatus(ctx, *payment.ProviderRef)
	if err != nil {
		// Inconclusive, including timeouts. Never interpreted as FAILED.
		r.log.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("reconciler: status poll failed")
		return
	}

	canonical := MapStatus(rawStatus)
	if !canonical.IsTerminal() {
		return
	}
	applied, err := r.paymentRepo.FinalizeIfPending(ctx, payment.ID, canonical.PaymentStatus(), nil)
	if err != nil {
		r.log.Error().Err(err).Str("payment_id", payment.ID.String()).Msg("reconciler: finalize failed")
		return
	}
	if applied {
		r.log.Info().
			Str("payment_id", payment.ID.String()).
			Str("status", string(canonical.PaymentStatus())).
			Msg("reconciler: payment finalized from poll")
	}
}
