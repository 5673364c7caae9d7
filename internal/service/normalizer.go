package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/pkg/apperror"
)

// Provider webhooks arrive in several shapes depending on the event source
// (flat, under "data", under "event"). Each logical field is probed across
// an ordered list of candidate paths; the first non-empty match wins.
var (
	orderIDPaths = []string{
		"orderId", "order_id",
		"data.orderId", "data.order_id",
		"event.orderId", "event.order_id",
	}
	quoteIDPaths = []string{
		"quoteId", "quote_id",
		"data.quoteId", "data.quote_id",
		"event.quoteId", "event.quote_id",
	}
	txIDPaths = []string{
		"txHash", "tx_hash", "txId", "tx_id", "transactionId", "transaction_id",
		"data.txHash", "data.tx_hash", "data.txId", "data.tx_id",
		"data.transactionId", "data.transaction_id",
		"event.txHash", "event.tx_hash",
	}
	statusPaths = []string{
		"status", "state",
		"data.status", "data.state",
		"event.status", "event.state",
	}
)

// NormalizeWebhook extracts a canonical WebhookEvent from a raw provider
// payload. Unparseable bodies yield INVALID_PAYLOAD; payloads resolving
// neither an order id nor a quote id yield NO_ID.
func NormalizeWebhook(rawBody []byte) (*domain.WebhookEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, apperror.ErrInvalidPayload(err)
	}

	event := &domain.WebhookEvent{
		OrderID:   probePaths(payload, orderIDPaths),
		QuoteID:   probePaths(payload, quoteIDPaths),
		TxID:      probePaths(payload, txIDPaths),
		RawStatus: probePaths(payload, statusPaths),
	}

	if event.OrderID == "" && event.QuoteID == "" {
		return nil, apperror.ErrNoID()
	}
	return event, nil
}

// probePaths returns the first non-empty string found at any candidate path.
func probePaths(payload map[string]any, paths []string) string {
	for _, path := range paths {
		if v := lookupPath(payload, path); v != "" {
			return v
		}
	}
	return ""
}

// lookupPath walks a dot-separated path through nested JSON objects.
func lookupPath(payload map[string]any, path string) string {
	segments := strings.Split(path, ".")
	current := any(payload)
	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = obj[seg]
		if !ok {
			return ""
		}
	}
	return stringify(current)
}

// stringify renders scalar JSON values; ids occasionally arrive as numbers.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
