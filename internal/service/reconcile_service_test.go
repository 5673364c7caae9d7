package service

import (
	"context"
	"testing"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reconcileTestDeps struct {
	svc         *ReconcileServiceImpl
	paymentRepo *mocks.MockPaymentRepository
	webhookRepo *mocks.MockWebhookEventRepository
	ctrl        *gomock.Controller
}

func setupReconcileService(t *testing.T) *reconcileTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconcileTestDeps{
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		webhookRepo: mocks.NewMockWebhookEventRepository(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewReconcileService(d.paymentRepo, d.webhookRepo, zerolog.Nop())
	return d
}

func TestReconcileService_AppliesTerminalStatusByOrderID(t *testing.T) {
	d := setupReconcileService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingPayment(uuid.New())

	d.paymentRepo.EXPECT().GetByProviderRef(ctx, "ord-1").Return(payment, nil)
	d.paymentRepo.EXPECT().FinalizeIfPending(ctx, payment.ID, domain.PaymentStatusSuccess,
		[]domain.SettlementRef{{ChainID: "eip155:1", TxHash: "0xabc"}}).Return(true, nil)
	d.webhookRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Reconcile(ctx, domain.WebhookEvent{
		OrderID:   "ord-1",
		TxID:      "0xabc",
		RawStatus: "filled",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, result.Outcome)
	require.NotNil(t, result.NewStatus)
	assert.Equal(t, domain.PaymentStatusSuccess, *result.NewStatus)
}

func TestReconcileService_FallsBackToQuoteID(t *testing.T) {
	d := setupReconcileService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingPayment(uuid.New())

	d.paymentRepo.EXPECT().GetByProviderRef(ctx, "ord-unknown").Return(nil, nil)
	d.paymentRepo.EXPECT().GetByQuoteID(ctx, "q-1").Return(payment, nil)
	d.paymentRepo.EXPECT().FinalizeIfPending(ctx, payment.ID, domain.PaymentStatusFailed, nil).Return(true, nil)
	d.webhookRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Reconcile(ctx, domain.WebhookEvent{
		OrderID:   "ord-unknown",
		QuoteID:   "q-1",
		RawStatus: "reverted",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, result.Outcome)
	require.NotNil(t, result.NewStatus)
	assert.Equal(t, domain.PaymentStatusFailed, *result.NewStatus)
}

func TestReconcileService_UnmatchedEventRecordedWithoutAction(t *testing.T) {
	d := setupReconcileService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.paymentRepo.EXPECT().GetByProviderRef(ctx, "ord-ghost").Return(nil, nil)
	d.webhookRepo.EXPECT().Record(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, logEntry *domain.WebhookEventLog) error {
			assert.Equal(t, domain.WebhookOutcomeUnmatched, logEntry.Outcome)
			require.NotNil(t, logEntry.Reason)
			assert.Equal(t, "ORDER_NOT_FOUND", *logEntry.Reason)
			return nil
		})

	result, err := d.svc.Reconcile(ctx, domain.WebhookEvent{OrderID: "ord-ghost", RawStatus: "filled"})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeUnmatched, result.Outcome)
	assert.Nil(t, result.PaymentID)
}

func TestReconcileService_NonTerminalStatusIsNoChange(t *testing.T) {
	d := setupReconcileService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingPayment(uuid.New())

	d.paymentRepo.EXPECT().GetByProviderRef(ctx, "ord-1").Return(payment, nil)
	d.webhookRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Reconcile(ctx, domain.WebhookEvent{OrderID: "ord-1", RawStatus: "processing"})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeNoChange, result.Outcome)
	assert.Nil(t, result.NewStatus)
}

func TestReconcileService_LateWebhookOnTerminalPaymentIgnored(t *testing.T) {
	d := setupReconcileService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingPayment(uuid.New())

	d.paymentRepo.EXPECT().GetByProviderRef(ctx, "ord-1").Return(payment, nil)
	// CAS loses: another path already finalized.
	d.paymentRepo.EXPECT().FinalizeIfPending(ctx, payment.ID, domain.PaymentStatusExpired, nil).Return(false, nil)
	d.webhookRepo.EXPECT().Record(ctx, gomock.Any()).Return(nil)

	result, err := d.svc.Reconcile(ctx, domain.WebhookEvent{OrderID: "ord-1", RawStatus: "expired"})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeIgnored, result.Outcome)
	assert.Nil(t, result.NewStatus)
}

func TestReconcileService_RecordFailureDoesNotBlock(t *testing.T) {
	d := setupReconcileService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payment := pendingPayment(uuid.New())

	d.paymentRepo.EXPECT().GetByProviderRef(ctx, "ord-1").Return(payment, nil)
	d.paymentRepo.EXPECT().FinalizeIfPending(ctx, payment.ID, domain.PaymentStatusSuccess, nil).Return(true, nil)
	d.webhookRepo.EXPECT().Record(ctx, gomock.Any()).Return(assert.AnError)

	result, err := d.svc.Reconcile(ctx, domain.WebhookEvent{OrderID: "ord-1", RawStatus: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookOutcomeApplied, result.Outcome)
}
