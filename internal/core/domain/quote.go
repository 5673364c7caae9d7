package domain

import "time"

// FeeComponent is one line of a fee breakdown.
type FeeComponent struct {
	Label  string `json:"label"`
	Amount string `json:"amount"` // Smallest-unit integer string
}

// FeeQuote is the provider's fee quote attached to a payment at preparation
// time. Immutable once issued; its expiry is independent of the payment's.
type FeeQuote struct {
	QuoteID   string         `json:"quote_id"`
	FeeAsset  string         `json:"fee_asset"`
	FeeAmount string         `json:"fee_amount"` // Smallest-unit integer string
	Breakdown []FeeComponent `json:"breakdown,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// IsExpired returns true if the quote can no longer be honored.
func (q *FeeQuote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
