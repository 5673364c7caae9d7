package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/internal/core/ports/mocks"
	"intent-payment-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type webhookHandlerDeps struct {
	h            *WebhookHandler
	reconcileSvc *mocks.MockReconcileService
	webhookRepo  *mocks.MockWebhookEventRepository
	ctrl         *gomock.Controller
}

const webhookTestSecret = "whsec_test"

func setupWebhookHandler(t *testing.T, secret string) *webhookHandlerDeps {
	ctrl := gomock.NewController(t)
	d := &webhookHandlerDeps{
		reconcileSvc: mocks.NewMockReconcileService(ctrl),
		webhookRepo:  mocks.NewMockWebhookEventRepository(ctrl),
		ctrl:         ctrl,
	}
	d.h = NewWebhookHandler(d.reconcileSvc, service.NewHMACSignatureService(), d.webhookRepo, secret, zerolog.Nop())
	return d
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func serveWebhook(h *WebhookHandler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/webhooks/intents", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	h.HandleIntentWebhook(c)
	return w
}

func TestWebhook_AppliedEvent(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-1","status":"filled","tx_id":"0xabc"}`)
	paymentID := uuid.New()
	newStatus := domain.PaymentStatusSuccess

	d.reconcileSvc.EXPECT().Reconcile(gomock.Any(), domain.WebhookEvent{
		OrderID:   "ord-1",
		RawStatus: "filled",
		TxID:      "0xabc",
	}).Return(&ports.ReconcileResult{
		Outcome:   domain.WebhookOutcomeApplied,
		PaymentID: &paymentID,
		NewStatus: &newStatus,
	}, nil)

	w := serveWebhook(d.h, body, map[string]string{
		HeaderWebhookSignature: signBody(webhookTestSecret, body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "APPLIED", ack["outcome"])
}

func TestWebhook_AltSignatureHeaderAccepted(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-2","status":"pending"}`)

	d.reconcileSvc.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		Return(&ports.ReconcileResult{Outcome: domain.WebhookOutcomeNoChange}, nil)

	w := serveWebhook(d.h, body, map[string]string{
		"X-Signature": signBody(webhookTestSecret, body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-1","status":"filled"}`)

	d.webhookRepo.EXPECT().Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, entry *domain.WebhookEventLog) error {
			assert.Equal(t, domain.WebhookOutcomeRejected, entry.Outcome)
			require.NotNil(t, entry.Reason)
			assert.Equal(t, "INVALID_SIGNATURE", *entry.Reason)
			return nil
		})

	w := serveWebhook(d.h, body, map[string]string{
		HeaderWebhookSignature: "deadbeef",
	})

	// Rejections are still acknowledged; redelivery would not help.
	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "REJECTED", ack["outcome"])
	assert.Equal(t, "INVALID_SIGNATURE", ack["reason"])
}

func TestWebhook_MissingSignature(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-1","status":"filled"}`)
	d.webhookRepo.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	w := serveWebhook(d.h, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "REJECTED", ack["outcome"])
}

func TestWebhook_EmptySecretSkipsVerification(t *testing.T) {
	d := setupWebhookHandler(t, "")
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-1","status":"filled"}`)

	d.reconcileSvc.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		Return(&ports.ReconcileResult{Outcome: domain.WebhookOutcomeApplied}, nil)

	w := serveWebhook(d.h, body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_EmptySecretLogsWarning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var logs bytes.Buffer
	NewWebhookHandler(
		mocks.NewMockReconcileService(ctrl),
		service.NewHMACSignatureService(),
		mocks.NewMockWebhookEventRepository(ctrl),
		"",
		zerolog.New(&logs),
	)

	assert.Contains(t, logs.String(), "signature verification is DISABLED")
}

func TestWebhook_NoIDRejected(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"status":"filled"}`)
	d.webhookRepo.EXPECT().Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, entry *domain.WebhookEventLog) error {
			require.NotNil(t, entry.Reason)
			assert.Equal(t, "NO_ID", *entry.Reason)
			return nil
		})

	w := serveWebhook(d.h, body, map[string]string{
		HeaderWebhookSignature: signBody(webhookTestSecret, body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "NO_ID", ack["reason"])
}

func TestWebhook_MalformedJSONRejected(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{not json`)
	d.webhookRepo.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil)

	w := serveWebhook(d.h, body, map[string]string{
		HeaderWebhookSignature: signBody(webhookTestSecret, body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "INVALID_PAYLOAD", ack["reason"])
}

func TestWebhook_UnmatchedEvent(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-ghost","status":"filled"}`)

	d.reconcileSvc.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		Return(&ports.ReconcileResult{Outcome: domain.WebhookOutcomeUnmatched}, nil)

	w := serveWebhook(d.h, body, map[string]string{
		HeaderWebhookSignature: signBody(webhookTestSecret, body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "UNMATCHED", ack["outcome"])
	assert.Equal(t, "ORDER_NOT_FOUND", ack["reason"])
}

func TestWebhook_ReconcileErrorStillAcknowledged(t *testing.T) {
	d := setupWebhookHandler(t, webhookTestSecret)
	defer d.ctrl.Finish()

	body := []byte(`{"order_id":"ord-1","status":"filled"}`)

	d.reconcileSvc.EXPECT().Reconcile(gomock.Any(), gomock.Any()).
		Return(nil, assert.AnError)
	d.webhookRepo.EXPECT().Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, entry *domain.WebhookEventLog) error {
			assert.Equal(t, domain.WebhookOutcomeRejected, entry.Outcome)
			require.NotNil(t, entry.Reason)
			assert.Equal(t, "INTERNAL_ERROR", *entry.Reason)
			require.NotNil(t, entry.OrderID)
			assert.Equal(t, "ord-1", *entry.OrderID)
			return nil
		})

	w := serveWebhook(d.h, body, map[string]string{
		HeaderWebhookSignature: signBody(webhookTestSecret, body),
	})

	// Internal failures never surface upstream; the failed event is recorded
	// instead.
	assert.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "REJECTED", ack["outcome"])
	assert.Equal(t, "INTERNAL_ERROR", ack["reason"])
}
