package service

import (
	"strings"

	"intent-payment-gateway/internal/core/domain"
)

// statusTable maps known upstream status tokens to the canonical set. The
// provider's vocabulary is open; anything not listed is PENDING.
var statusTable = map[string]domain.CanonicalStatus{
	"filled":    domain.CanonicalPaid,
	"executed":  domain.CanonicalPaid,
	"confirmed": domain.CanonicalPaid,
	"success":   domain.CanonicalPaid,

	"failed":    domain.CanonicalFailed,
	"reverted":  domain.CanonicalFailed,
	"canceled":  domain.CanonicalFailed,
	"cancelled": domain.CanonicalFailed,
	"error":     domain.CanonicalFailed,

	"expired": domain.CanonicalExpired,
	"timeout": domain.CanonicalExpired,
}

// MapStatus classifies a raw upstream status string. Total and pure: unknown
// tokens map to PENDING, never an error.
func MapStatus(raw string) domain.CanonicalStatus {
	token := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := statusTable[token]; ok {
		return canonical
	}
	return domain.CanonicalPending
}
