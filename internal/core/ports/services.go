package ports

import (
	"context"
	"time"

	"intent-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption of signing
// secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
	// BuildCanonicalPayload constructs the signed byte string for API
	// requests: nonce|method|path|body.
	BuildCanonicalPayload(nonce, method, path string, body []byte) []byte
	// VerifyWebhook checks an HMAC over the raw webhook body. The signature
	// may be hex or base64 encoded per the provider's convention; both are
	// compared in constant time.
	VerifyWebhook(secret string, rawBody []byte, signature string) bool
}

// HashService handles API-key secret hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// IdempotencyCache is the shared response cache keyed by client idempotency
// key. Begin returning nil means MISS: the caller executes the operation and
// must Commit before responding. A HIT is replayed verbatim with no side
// effects re-executed.
type IdempotencyCache interface {
	Begin(ctx context.Context, key string) (*domain.CachedResponse, error)
	Commit(ctx context.Context, key string, statusCode int, body []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, keyID string, nonce string, ttl time.Duration) (bool, error)
}

// Authenticator resolves presented API keys and verifies request signatures.
type Authenticator interface {
	// Authenticate resolves a presented "<key_id>.<secret>" credential to an
	// active key carrying every required scope. Fails closed on any
	// resolution problem.
	Authenticate(ctx context.Context, presentedKey string, requiredScopes ...string) (*domain.APIKey, error)
	// VerifyRequestSignature recomputes the HMAC over nonce|method|path|body
	// with the key's signing secret and compares in constant time. Applies
	// only to secret-type keys.
	VerifyRequestSignature(ctx context.Context, key *domain.APIKey, signature, nonce, method, path string, body []byte) error
}

// --- Provider boundary ---

// QuoteRequest asks the provider for a fee quote. Amount is a smallest-unit
// integer string.
type QuoteRequest struct {
	AssetID   string
	Amount    string
	Payer     domain.Party
	Recipient domain.Party
}

// ExecuteRequest submits an intent for execution. SignedPayload carries the
// caller's signed settlement payload on the submit leg; it is empty on the
// prepare leg.
type ExecuteRequest struct {
	PaymentID     uuid.UUID
	QuoteID       string
	AssetID       string
	Amount        string
	Payer         domain.Party
	Recipient     domain.Party
	SignedPayload []byte
}

// ExecuteResult is the provider's execution response.
type ExecuteResult struct {
	ProviderRef    string
	QuoteID        string
	UpstreamStatus string
	DepositAddress string
	Settlements    []domain.SettlementRef
}

// ProviderClient wraps the external intent-execution provider. Every call
// carries a bounded timeout; timeouts surface as retryable provider errors,
// never as FAILED.
type ProviderClient interface {
	Quote(ctx context.Context, req QuoteRequest) (*domain.FeeQuote, error)
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	FetchStatus(ctx context.Context, providerRef string) (string, error)
}

// TokenCatalog exposes decimal places by asset id, cached from the
// provider's token catalog.
type TokenCatalog interface {
	Decimals(ctx context.Context, assetID string) (int, error)
}

// --- Service Ports (Business Logic) ---

// PrepareRequest holds validated input for payment preparation. Amount is a
// human decimal string; the orchestrator converts it to the asset's smallest
// unit.
type PrepareRequest struct {
	MerchantID     uuid.UUID
	IdempotencyKey string
	Payer          domain.Party
	Recipient      domain.Party
	AssetID        string
	Amount         string
	Memo           *string
}

// PrepareResult is the outcome of a prepare call. Replayed marks an
// idempotent hit on the natural key.
type PrepareResult struct {
	Payment  *domain.Payment
	Quote    *domain.FeeQuote
	Replayed bool
}

// SubmitRequest holds validated input for payment submission.
type SubmitRequest struct {
	MerchantID    uuid.UUID
	PaymentID     uuid.UUID
	SignedPayload []byte
}

// PaymentService defines the payment intent lifecycle.
type PaymentService interface {
	Prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error)
	Submit(ctx context.Context, req SubmitRequest) (*domain.Payment, error)
	Get(ctx context.Context, merchantID, paymentID uuid.UUID) (*domain.Payment, error)
	List(ctx context.Context, params PaymentListParams) ([]domain.Payment, int64, error)
}

// ReconcileResult reports what a webhook or poll did to payment state.
type ReconcileResult struct {
	Outcome   domain.WebhookOutcome
	PaymentID *uuid.UUID
	NewStatus *domain.PaymentStatus
}

// ReconcileService applies asynchronous confirmations to payments.
type ReconcileService interface {
	Reconcile(ctx context.Context, event domain.WebhookEvent) (*ReconcileResult, error)
}
