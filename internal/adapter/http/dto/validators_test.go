package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := PrepareRequest{
		Payer:     PartyRequest{Address: "  0xpayer  ", ChainID: " eip155:1 "},
		Recipient: PartyRequest{Address: " 0xrecipient "},
		AssetID:   "  USDC  ",
		Amount:    " 12.5 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "0xpayer", req.Payer.Address)
	assert.Equal(t, "eip155:1", req.Payer.ChainID)
	assert.Equal(t, "0xrecipient", req.Recipient.Address)
	assert.Equal(t, "USDC", req.AssetID)
	assert.Equal(t, "12.5", req.Amount)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	memo := "invoice <script>alert('x')</script> 42"
	req := PrepareRequest{
		Payer:     PartyRequest{Address: "0xpayer"},
		Recipient: PartyRequest{Address: "0xrecipient"},
		AssetID:   "USDC",
		Amount:    "12.5",
		Memo:      &memo,
	}
	SanitizeStruct(&req)

	assert.Contains(t, *req.Memo, "&lt;script&gt;")
	assert.NotContains(t, *req.Memo, "<script>")
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := PrepareRequest{
		Payer:     PartyRequest{Address: "0xpayer"},
		Recipient: PartyRequest{Address: "0xrecipient"},
		AssetID:   "USDC",
		Amount:    "12.5",
		Memo:      nil,
	}
	SanitizeStruct(&req)
	assert.Nil(t, req.Memo)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"USDC",
		"eip155:1",
		"0xAbCd1234",
		"asset_usd-coin.v2",
		"sol:mainnet",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"asset id",    // space
		"asset<1>",    // angle brackets
		"asset;DROP",  // semicolon
		"",            // empty
		"asset/1",     // slash
		"asset\n1",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
