package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the canonical event extracted from an arbitrary provider
// payload. Transient: it is used to locate and update one payment, then
// discarded. At least one of OrderID/QuoteID is always set.
type WebhookEvent struct {
	OrderID   string
	QuoteID   string
	TxID      string
	RawStatus string
}

// WebhookOutcome classifies what processing a webhook did to payment state.
// It is observability data only; the provider always receives a 200.
type WebhookOutcome string

const (
	WebhookOutcomeApplied   WebhookOutcome = "APPLIED"   // Terminal transition committed
	WebhookOutcomeIgnored   WebhookOutcome = "IGNORED"   // Payment already terminal, no-op
	WebhookOutcomeNoChange  WebhookOutcome = "NO_CHANGE" // Mapped to PENDING, nothing to apply
	WebhookOutcomeUnmatched WebhookOutcome = "UNMATCHED" // No payment for order/quote id
	WebhookOutcomeRejected  WebhookOutcome = "REJECTED"  // Bad signature or unusable payload
)

// WebhookEventLog records one received provider webhook for operator
// diagnosis. Rejections are recorded too; they never touch payment state.
type WebhookEventLog struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   *string        `json:"order_id,omitempty"`
	QuoteID   *string        `json:"quote_id,omitempty"`
	PaymentID *uuid.UUID     `json:"payment_id,omitempty"`
	RawStatus *string        `json:"raw_status,omitempty"`
	Outcome   WebhookOutcome `json:"outcome"`
	Reason    *string        `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
