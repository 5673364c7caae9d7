package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// Nonce TTL for replay protection on signed requests.
const nonceTTL = 120 * time.Second

// AuthServiceImpl implements ports.Authenticator. It fails closed: any
// failure to resolve or verify a credential is UNAUTHENTICATED, never a
// pass-through.
type AuthServiceImpl struct {
	keyRepo    ports.APIKeyRepository
	hashSvc    ports.HashService
	encSvc     ports.EncryptionService
	sigSvc     ports.SignatureService
	nonceStore ports.NonceStore
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	keyRepo ports.APIKeyRepository,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		keyRepo:    keyRepo,
		hashSvc:    hashSvc,
		encSvc:     encSvc,
		sigSvc:     sigSvc,
		nonceStore: nonceStore,
		log:        log,
	}
}

// Authenticate resolves a presented "<key_id>.<secret>" credential to an
// active API key and checks every required scope.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, presentedKey string, requiredScopes ...string) (*domain.APIKey, error) {
	keyID, secret, ok := splitPresentedKey(presentedKey)
	if !ok {
		return nil, apperror.ErrUnauthenticated()
	}

	key, err := s.keyRepo.GetByKeyID(ctx, keyID)
	if err != nil {
		s.log.Error().Err(err).Str("key_id", keyID).Msg("api key lookup failed")
		return nil, apperror.ErrUnauthenticated()
	}
	if key == nil {
		return nil, apperror.ErrUnauthenticated()
	}
	if !key.IsActive() {
		return nil, apperror.ErrKeyRevoked()
	}

	valid, err := s.hashSvc.Verify(secret, key.SecretHash)
	if err != nil {
		s.log.Error().Err(err).Str("key_id", keyID).Msg("api key secret verification errored")
		return nil, apperror.ErrUnauthenticated()
	}
	if !valid {
		return nil, apperror.ErrUnauthenticated()
	}

	for _, scope := range requiredScopes {
		if !key.HasScope(scope) {
			return nil, apperror.ErrForbidden(scope)
		}
	}

	return key, nil
}

// VerifyRequestSignature checks the HMAC a secret-type key attached to a
// mutating request. The nonce is consumed atomically before the signature is
// checked so a replayed capture cannot race its original.
func (s *AuthServiceImpl) VerifyRequestSignature(ctx context.Context, key *domain.APIKey, signature, nonce, method, path string, body []byte) error {
	if key.Type != domain.APIKeyTypeSecret {
		return apperror.ErrForbidden(domain.ScopePaymentsWrite)
	}
	if signature == "" || nonce == "" {
		return apperror.ErrMissingSignature()
	}

	// A nonce-store outage fails closed like every other credential path:
	// without the replay check the signature alone proves nothing.
	fresh, err := s.nonceStore.CheckAndSet(ctx, key.KeyID, nonce, nonceTTL)
	if err != nil {
		s.log.Error().Err(err).Str("key_id", key.KeyID).Msg("nonce store unavailable, rejecting signed request")
		return apperror.InternalError(fmt.Errorf("nonce check: %w", err))
	}
	if !fresh {
		return apperror.ErrNonceUsed()
	}

	signingSecret, err := s.encSvc.Decrypt(key.SigningSecretEnc)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("decrypt signing secret: %w", err))
	}

	canonical := s.sigSvc.BuildCanonicalPayload(nonce, method, path, body)
	if !s.sigSvc.Verify(signingSecret, canonical, signature) {
		return apperror.ErrInvalidSignature()
	}
	return nil
}

// splitPresentedKey splits "<key_id>.<secret>" on the last dot so key ids
// may themselves contain dots.
func splitPresentedKey(presented string) (keyID, secret string, ok bool) {
	idx := strings.LastIndex(presented, ".")
	if idx <= 0 || idx == len(presented)-1 {
		return "", "", false
	}
	return presented[:idx], presented[idx+1:], true
}
