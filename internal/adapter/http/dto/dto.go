package dto

// PartyRequest identifies one side of the transfer.
type PartyRequest struct {
	Address string `json:"address" binding:"required,min=1,max=128,safe_id"`
	ChainID string `json:"chain_id,omitempty" binding:"omitempty,max=64,safe_id"`
}

// PrepareRequest is the request body for payment preparation.
// Amount is a human decimal string; conversion to the asset's smallest unit
// happens after the asset's decimals are known.
type PrepareRequest struct {
	Payer     PartyRequest `json:"payer" binding:"required"`
	Recipient PartyRequest `json:"recipient" binding:"required"`
	AssetID   string       `json:"asset_id" binding:"required,max=64,safe_id"`
	Amount    string       `json:"amount" binding:"required,max=80"`
	Memo      *string      `json:"memo,omitempty" binding:"omitempty,max=256"`
}

// SubmitRequest is the request body for payment submission.
type SubmitRequest struct {
	PaymentID     string `json:"payment_id" binding:"required,uuid"`
	SignedPayload string `json:"signed_payload,omitempty" binding:"omitempty,max=16384"`
}

// PartyResponse mirrors PartyRequest on the way out.
type PartyResponse struct {
	Address string `json:"address"`
	ChainID string `json:"chain_id,omitempty"`
}

// SettlementResponse points at one on-chain settlement transaction.
type SettlementResponse struct {
	ChainID string `json:"chain_id"`
	TxHash  string `json:"tx_hash"`
}

// PaymentResponse is the payment representation returned to merchants.
type PaymentResponse struct {
	ID          string               `json:"id"`
	Status      string               `json:"status"`
	Payer       PartyResponse        `json:"payer"`
	Recipient   PartyResponse        `json:"recipient"`
	AssetID     string               `json:"asset_id"`
	Amount      string               `json:"amount"` // Smallest-unit integer string
	Memo        *string              `json:"memo,omitempty"`
	QuoteID     *string              `json:"quote_id,omitempty"`
	ProviderRef *string              `json:"provider_ref,omitempty"`
	Settlements []SettlementResponse `json:"settlements"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

// FeeComponentResponse is one line of a fee breakdown.
type FeeComponentResponse struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// QuoteResponse is the fee quote attached to a prepared payment.
type QuoteResponse struct {
	QuoteID   string                 `json:"quote_id"`
	FeeAsset  string                 `json:"fee_asset"`
	FeeAmount string                 `json:"fee_amount"`
	Breakdown []FeeComponentResponse `json:"breakdown,omitempty"`
	ExpiresAt string                 `json:"expires_at"`
}

// PrepareResponse is the response body for payment preparation.
type PrepareResponse struct {
	Payment PaymentResponse `json:"payment"`
	Quote   *QuoteResponse  `json:"quote,omitempty"`
}

// PaymentListResponse wraps a paginated payment list.
type PaymentListResponse struct {
	Items      []PaymentResponse `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// WebhookAckResponse is the diagnostic body returned to the provider. The
// HTTP status is always 200; Outcome carries what processing actually did.
type WebhookAckResponse struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}
