package domain

import "github.com/google/uuid"

// CachedResponse is a previously committed response replayed on an
// idempotency-key hit. The cache is a replay mechanism only; the payment
// natural key is the consistency mechanism.
type CachedResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

// BuildIdempotencyCacheKey scopes a client idempotency key to a merchant and
// route so that keys cannot collide across merchants or endpoints.
func BuildIdempotencyCacheKey(merchantID uuid.UUID, method, path, key string) string {
	return merchantID.String() + ":" + method + ":" + path + ":" + key
}
