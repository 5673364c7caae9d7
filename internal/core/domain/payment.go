package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
)

// IsTerminal returns true if the status is final. Terminal payments never
// transition again; any later submit, webhook, or poll is a no-op.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusExpired
}

// Party identifies one side of a value transfer.
type Party struct {
	Address string `json:"address"`
	ChainID string `json:"chain_id,omitempty"`
}

// SettlementRef points at an on-chain settlement transaction.
type SettlementRef struct {
	ChainID string `json:"chain_id"`
	TxHash  string `json:"tx_hash"`
}

// Payment is the merchant-facing record of one attempted value transfer.
// Execution and settlement are owned by the external intent provider; this
// record tracks the intent through PENDING to exactly one terminal state.
//
// (MerchantID, IdempotencyKey) is a natural key: a second prepare call with
// the same pair returns this record rather than creating a new one.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	MerchantID     uuid.UUID       `json:"merchant_id"`
	Status         PaymentStatus   `json:"status"`
	Payer          Party           `json:"payer"`
	Recipient      Party           `json:"recipient"`
	AssetID        string          `json:"asset_id"`
	Amount         string          `json:"amount"` // Integer string in the asset's smallest unit
	Memo           *string         `json:"memo,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	QuoteID        *string         `json:"quote_id,omitempty"`
	ProviderRef    *string         `json:"provider_ref,omitempty"` // Provider-assigned order id, nil until execution succeeds
	Settlements    []SettlementRef `json:"settlements"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the payment is in a final state.
func (p *Payment) IsTerminal() bool {
	return p.Status.IsTerminal()
}
