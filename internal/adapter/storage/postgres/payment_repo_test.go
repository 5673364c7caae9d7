package postgres

import (
	"context"
	"testing"
	"time"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestPayment(merchantID uuid.UUID) *domain.Payment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Payment{
		ID:             uuid.New(),
		MerchantID:     merchantID,
		Status:         domain.PaymentStatusPending,
		Payer:          domain.Party{Address: "0xpayer", ChainID: "eip155:1"},
		Recipient:      domain.Party{Address: "0xrecipient", ChainID: "eip155:1"},
		AssetID:        "USDC",
		Amount:         "12500000",
		Memo:           strPtr("invoice 42"),
		IdempotencyKey: "idem-001",
		QuoteID:        strPtr("q-123"),
		ProviderRef:    strPtr("ord-1"),
		Settlements:    []domain.SettlementRef{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func paymentTestColumns() []string {
	return []string{"id", "merchant_id", "status", "payer_address", "payer_chain_id",
		"recipient_address", "recipient_chain_id", "asset_id", "amount", "memo",
		"idempotency_key", "quote_id", "provider_ref", "settlements", "created_at", "updated_at"}
}

func paymentRow(p *domain.Payment) *pgxmock.Rows {
	return pgxmock.NewRows(paymentTestColumns()).AddRow(
		p.ID, p.MerchantID, p.Status,
		p.Payer.Address, p.Payer.ChainID,
		p.Recipient.Address, p.Recipient.ChainID,
		p.AssetID, p.Amount, p.Memo,
		p.IdempotencyKey, p.QuoteID, p.ProviderRef,
		[]byte(`[{"chain_id":"eip155:1","tx_hash":"0xabc"}]`), p.CreatedAt, p.UpdatedAt,
	)
}

func TestPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(
			p.ID, p.MerchantID, p.Status,
			p.Payer.Address, p.Payer.ChainID,
			p.Recipient.Address, p.Recipient.ChainID,
			p.AssetID, p.Amount, p.Memo,
			p.IdempotencyKey, p.QuoteID, p.ProviderRef,
			pgxmock.AnyArg(), p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := repo.Create(context.Background(), p)
	assert.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_Create_NaturalKeyConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	// ON CONFLICT DO NOTHING: zero rows affected means another writer holds
	// the (merchant_id, idempotency_key) pair.
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(
			p.ID, p.MerchantID, p.Status,
			p.Payer.Address, p.Payer.ChainID,
			p.Recipient.Address, p.Recipient.ChainID,
			p.AssetID, p.Amount, p.Memo,
			p.IdempotencyKey, p.QuoteID, p.ProviderRef,
			pgxmock.AnyArg(), p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := repo.Create(context.Background(), p)
	assert.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(p.ID).
		WillReturnRows(paymentRow(p))

	result, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.ID, result.ID)
	assert.Equal(t, p.Amount, result.Amount)
	require.Len(t, result.Settlements, 1)
	assert.Equal(t, "0xabc", result.Settlements[0].TxHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM payments WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(paymentTestColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByNaturalKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payments WHERE merchant_id .+ AND idempotency_key").
		WithArgs(p.MerchantID, p.IdempotencyKey).
		WillReturnRows(paymentRow(p))

	result, err := repo.GetByNaturalKey(context.Background(), p.MerchantID, p.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p.IdempotencyKey, result.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByProviderRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payments WHERE provider_ref").
		WithArgs("ord-1").
		WillReturnRows(paymentRow(p))

	result, err := repo.GetByProviderRef(context.Background(), "ord-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SetProviderRef(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE payments SET provider_ref").
		WithArgs(id, "ord-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SetProviderRef(context.Background(), id, "ord-9")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SetProviderRef_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)

	mock.ExpectExec("UPDATE payments SET provider_ref").
		WithArgs(pgxmock.AnyArg(), "ord-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.SetProviderRef(context.Background(), uuid.New(), "ord-9")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_FinalizeIfPending_Applied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id := uuid.New()
	settlements := []domain.SettlementRef{{ChainID: "eip155:1", TxHash: "0xabc"}}

	mock.ExpectExec("UPDATE payments").
		WithArgs(id, domain.PaymentStatusSuccess, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := repo.FinalizeIfPending(context.Background(), id, domain.PaymentStatusSuccess, settlements)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_FinalizeIfPending_AlreadyTerminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	id := uuid.New()

	// Status guard matched no row: the payment already left PENDING.
	mock.ExpectExec("UPDATE payments").
		WithArgs(id, domain.PaymentStatusFailed, nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := repo.FinalizeIfPending(context.Background(), id, domain.PaymentStatusFailed, nil)
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_ListPendingCreatedBefore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	p := newTestPayment(uuid.New())
	cutoff := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM payments").
		WithArgs(cutoff, 50).
		WillReturnRows(paymentRow(p))

	payments, err := repo.ListPendingCreatedBefore(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, p.ID, payments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	merchantID := uuid.New()
	p := newTestPayment(merchantID)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(merchantID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM payments WHERE merchant_id").
		WithArgs(merchantID, 20, 0).
		WillReturnRows(paymentRow(p))

	payments, total, err := repo.List(context.Background(), ports.PaymentListParams{
		MerchantID: merchantID,
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, payments, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_List_StatusFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPaymentRepo(mock)
	merchantID := uuid.New()
	status := domain.PaymentStatusPending

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(merchantID, status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM payments WHERE merchant_id .+ AND status").
		WithArgs(merchantID, status, 20, 0).
		WillReturnRows(pgxmock.NewRows(paymentTestColumns()))

	payments, total, err := repo.List(context.Background(), ports.PaymentListParams{
		MerchantID: merchantID,
		Status:     &status,
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, payments)
	assert.NoError(t, mock.ExpectationsWereMet())
}
