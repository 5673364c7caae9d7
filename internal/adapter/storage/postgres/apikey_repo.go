package postgres

import (
	"context"
	"errors"
	"fmt"

	"intent-payment-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

// GetByKeyID fetches an API key by its public key id.
func (r *APIKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*domain.APIKey, error) {
	query := `SELECT id, merchant_id, key_id, secret_hash, signing_secret_enc,
		key_type, scopes, status, created_at, updated_at
		FROM api_keys WHERE key_id = $1`

	k := &domain.APIKey{}
	err := r.pool.QueryRow(ctx, query, keyID).Scan(
		&k.ID, &k.MerchantID, &k.KeyID, &k.SecretHash, &k.SigningSecretEnc,
		&k.Type, &k.Scopes, &k.Status, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}
