package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKeyType distinguishes server-side secret keys from browser-safe
// publishable keys. Only secret keys carry a signing secret and may call
// mutating endpoints.
type APIKeyType string

const (
	APIKeyTypeSecret      APIKeyType = "SECRET"
	APIKeyTypePublishable APIKeyType = "PUBLISHABLE"
)

// APIKeyStatus represents the state of an API key.
type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "ACTIVE"
	APIKeyStatusRevoked APIKeyStatus = "REVOKED"
)

// Key scopes.
const (
	ScopePaymentsRead  = "payments:read"
	ScopePaymentsWrite = "payments:write"
)

// APIKey is a merchant credential. A presented key has the form
// "<key_id>.<secret>"; KeyID is the lookup half, the secret half is verified
// against SecretHash (Argon2id). Secret-type keys additionally hold an
// AES-encrypted signing secret used for request HMACs.
type APIKey struct {
	ID               uuid.UUID    `json:"id"`
	MerchantID       uuid.UUID    `json:"merchant_id"`
	KeyID            string       `json:"key_id"`
	SecretHash       string       `json:"-"` // Never expose
	SigningSecretEnc string       `json:"-"` // Encrypted, empty for publishable keys
	Type             APIKeyType   `json:"type"`
	Scopes           []string     `json:"scopes"`
	Status           APIKeyStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// IsActive returns true if the key may authenticate requests.
func (k *APIKey) IsActive() bool {
	return k.Status == APIKeyStatusActive
}

// HasScope returns true if the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
