package handler

import (
	"io"
	"net/http"
	"time"

	"intent-payment-gateway/internal/adapter/http/dto"
	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/internal/service"
	"intent-payment-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Provider signature header, with a generic fallback some event sources use.
const (
	HeaderWebhookSignature    = "X-Webhook-Signature"
	HeaderWebhookSignatureAlt = "X-Signature"

	maxWebhookBody = 1 << 20
)

// WebhookHandler ingests provider webhooks. It always acknowledges with a
// 200 so the provider does not retry-storm; the body carries a diagnostic
// outcome, and every event (rejections included) is recorded.
type WebhookHandler struct {
	reconcileSvc ports.ReconcileService
	sigSvc       ports.SignatureService
	webhookRepo  ports.WebhookEventRepository
	secret       string
	log          zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. An empty secret disables
// signature verification (local development only).
func NewWebhookHandler(
	reconcileSvc ports.ReconcileService,
	sigSvc ports.SignatureService,
	webhookRepo ports.WebhookEventRepository,
	secret string,
	log zerolog.Logger,
) *WebhookHandler {
	if secret == "" {
		log.Warn().Msg("webhook secret is empty, signature verification is DISABLED; unsigned webhooks will be accepted")
	}
	return &WebhookHandler{
		reconcileSvc: reconcileSvc,
		sigSvc:       sigSvc,
		webhookRepo:  webhookRepo,
		secret:       secret,
		log:          log,
	}
}

// HandleIntentWebhook handles POST /v1/webhooks/intents.
func (h *WebhookHandler) HandleIntentWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.reject(c, nil, "INVALID_PAYLOAD")
		return
	}

	if h.secret != "" {
		signature := c.GetHeader(HeaderWebhookSignature)
		if signature == "" {
			signature = c.GetHeader(HeaderWebhookSignatureAlt)
		}
		if signature == "" || !h.sigSvc.VerifyWebhook(h.secret, rawBody, signature) {
			h.reject(c, nil, "INVALID_SIGNATURE")
			return
		}
	}

	event, err := service.NormalizeWebhook(rawBody)
	if err != nil {
		reason := apperror.Code(err)
		if reason == "" {
			reason = "INVALID_PAYLOAD"
		}
		h.reject(c, nil, reason)
		return
	}

	result, err := h.reconcileSvc.Reconcile(c.Request.Context(), *event)
	if err != nil {
		// Processing trouble stays internal: the failure is recorded and the
		// event is still acknowledged.
		h.log.Error().Err(err).Str("order_id", event.OrderID).Msg("webhook reconciliation failed")
		h.reject(c, event, "INTERNAL_ERROR")
		return
	}

	ack := dto.WebhookAckResponse{Outcome: string(result.Outcome)}
	if result.Outcome == domain.WebhookOutcomeUnmatched {
		ack.Reason = "ORDER_NOT_FOUND"
	}
	c.JSON(http.StatusOK, ack)
}

// reject acknowledges an unprocessed webhook with a 200 and records it. The
// event, when it parsed, is carried into the log entry so the failure can be
// traced to its order.
func (h *WebhookHandler) reject(c *gin.Context, event *domain.WebhookEvent, reason string) {
	logEntry := &domain.WebhookEventLog{
		ID:        uuid.New(),
		Outcome:   domain.WebhookOutcomeRejected,
		Reason:    &reason,
		CreatedAt: time.Now().UTC(),
	}
	if event != nil {
		if event.OrderID != "" {
			logEntry.OrderID = &event.OrderID
		}
		if event.QuoteID != "" {
			logEntry.QuoteID = &event.QuoteID
		}
		if event.RawStatus != "" {
			logEntry.RawStatus = &event.RawStatus
		}
	}
	if err := h.webhookRepo.Record(c.Request.Context(), logEntry); err != nil {
		h.log.Warn().Err(err).Str("reason", reason).Msg("failed to record rejected webhook")
	}

	c.JSON(http.StatusOK, dto.WebhookAckResponse{
		Outcome: string(domain.WebhookOutcomeRejected),
		Reason:  reason,
	})
}
