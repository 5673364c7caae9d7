package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
//
// The two atomicity guarantees live here: the natural-key reservation is an
// INSERT ... ON CONFLICT DO NOTHING, and terminal transitions are a single
// conditional UPDATE guarded by status = 'PENDING'. Both are safe across
// replicas with no process-local state.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, merchant_id, status, payer_address, payer_chain_id,
	recipient_address, recipient_chain_id, asset_id, amount, memo,
	idempotency_key, quote_id, provider_ref, settlements, created_at, updated_at`

// Create reserves the (merchant_id, idempotency_key) natural key and inserts
// the payment. Returns false when another writer already holds the key.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) (bool, error) {
	settlements, err := json.Marshal(p.Settlements)
	if err != nil {
		return false, fmt.Errorf("marshal settlements: %w", err)
	}

	query := `INSERT INTO payments (id, merchant_id, status, payer_address, payer_chain_id,
		recipient_address, recipient_chain_id, asset_id, amount, memo,
		idempotency_key, quote_id, provider_ref, settlements, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (merchant_id, idempotency_key) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.MerchantID, p.Status,
		p.Payer.Address, p.Payer.ChainID,
		p.Recipient.Address, p.Recipient.ChainID,
		p.AssetID, p.Amount, p.Memo,
		p.IdempotencyKey, p.QuoteID, p.ProviderRef,
		settlements, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a payment by UUID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetByNaturalKey fetches a payment by its (merchant, idempotency key) pair.
func (r *PaymentRepo) GetByNaturalKey(ctx context.Context, merchantID uuid.UUID, idempotencyKey string) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE merchant_id = $1 AND idempotency_key = $2`, paymentColumns)
	return r.scanPayment(r.pool.QueryRow(ctx, query, merchantID, idempotencyKey))
}

// GetByProviderRef fetches a payment by the provider-assigned order id.
func (r *PaymentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE provider_ref = $1`, paymentColumns)
	return r.scanPayment(r.pool.QueryRow(ctx, query, providerRef))
}

// GetByQuoteID fetches a payment by its attached quote id.
func (r *PaymentRepo) GetByQuoteID(ctx context.Context, quoteID string) (*domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE quote_id = $1`, paymentColumns)
	return r.scanPayment(r.pool.QueryRow(ctx, query, quoteID))
}

// SetProviderRef records the provider-assigned order id after execution.
func (r *PaymentRepo) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	query := `UPDATE payments SET provider_ref = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, providerRef, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set provider ref: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// FinalizeIfPending performs the compare-and-set terminal transition. The
// WHERE clause on the current status makes the read-and-write a single
// indivisible statement; losing the race is reported as applied=false, not
// an error. Nil settlements leave the stored ones untouched.
func (r *PaymentRepo) FinalizeIfPending(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, settlements []domain.SettlementRef) (bool, error) {
	var settlementsJSON any
	if settlements != nil {
		b, err := json.Marshal(settlements)
		if err != nil {
			return false, fmt.Errorf("marshal settlements: %w", err)
		}
		settlementsJSON = b
	}

	query := `UPDATE payments
		SET status = $2, settlements = COALESCE($3, settlements), updated_at = $4
		WHERE id = $1 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, id, status, settlementsJSON, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("finalize payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingCreatedBefore returns PENDING payments created before the
// cutoff, oldest first.
func (r *PaymentRepo) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2`, paymentColumns)

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	return r.collectPayments(rows)
}

// List fetches a merchant's payments with filtering and pagination.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM payments %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments, err := r.collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *PaymentRepo) collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

// scanPayment is a helper to scan a single row into a Payment.
func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p, err := scanPaymentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func scanPaymentRow(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var settlements []byte
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.Status,
		&p.Payer.Address, &p.Payer.ChainID,
		&p.Recipient.Address, &p.Recipient.ChainID,
		&p.AssetID, &p.Amount, &p.Memo,
		&p.IdempotencyKey, &p.QuoteID, &p.ProviderRef,
		&settlements, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(settlements) > 0 {
		if err := json.Unmarshal(settlements, &p.Settlements); err != nil {
			return nil, fmt.Errorf("unmarshal settlements: %w", err)
		}
	}
	if p.Settlements == nil {
		p.Settlements = []domain.SettlementRef{}
	}
	return p, nil
}
