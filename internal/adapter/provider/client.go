package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intent-payment-gateway/config"
	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// errEndpointNotFound marks a provider 404; execution falls through to the
// next candidate endpoint on it and only on it.
var errEndpointNotFound = errors.New("provider endpoint not found")

// Client implements ports.ProviderClient against the intent-execution
// provider's HTTP API. Every call inherits the configured timeout; timeouts
// and 5xx are retryable, provider 4xx validation is fatal.
type Client struct {
	baseURL      string
	executePaths []string
	apiKey       string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.ProviderConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		executePaths: cfg.ExecutePaths,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		log:          log,
	}
}

type quoteRequest struct {
	AssetID   string `json:"asset_id"`
	Amount    string `json:"amount"`
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`
	ChainID   string `json:"chain_id,omitempty"`
}

type quoteResponse struct {
	QuoteID   string `json:"quote_id"`
	FeeAsset  string `json:"fee_asset"`
	FeeAmount string `json:"fee_amount"`
	ExpiresAt int64  `json:"expires_at"`
	Breakdown []struct {
		Label  string `json:"label"`
		Amount string `json:"amount"`
	} `json:"breakdown"`
}

type executeRequest struct {
	ClientRef     string `json:"client_ref"`
	QuoteID       string `json:"quote_id,omitempty"`
	AssetID       string `json:"asset_id"`
	Amount        string `json:"amount"`
	Payer         string `json:"payer"`
	Recipient     string `json:"recipient"`
	ChainID       string `json:"chain_id,omitempty"`
	SignedPayload string `json:"signed_payload,omitempty"`
}

type executeResponse struct {
	OrderID        string `json:"order_id"`
	QuoteID        string `json:"quote_id"`
	Status         string `json:"status"`
	DepositAddress string `json:"deposit_address"`
	Settlements    []struct {
		ChainID string `json:"chain_id"`
		TxHash  string `json:"tx_hash"`
	} `json:"settlements"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Quote fetches a fee quote for an intent.
func (c *Client) Quote(ctx context.Context, req ports.QuoteRequest) (*domain.FeeQuote, error) {
	body := quoteRequest{
		AssetID:   req.AssetID,
		Amount:    req.Amount,
		Payer:     req.Payer.Address,
		Recipient: req.Recipient.Address,
		ChainID:   req.Recipient.ChainID,
	}

	var resp quoteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/quotes", body, &resp); err != nil {
		if errors.Is(err, errEndpointNotFound) {
			return nil, apperror.ErrProviderUnavailable(err)
		}
		return nil, err
	}

	quote := &domain.FeeQuote{
		QuoteID:   resp.QuoteID,
		FeeAsset:  resp.FeeAsset,
		FeeAmount: resp.FeeAmount,
		ExpiresAt: time.Unix(resp.ExpiresAt, 0).UTC(),
	}
	for _, b := range resp.Breakdown {
		quote.Breakdown = append(quote.Breakdown, domain.FeeComponent{Label: b.Label, Amount: b.Amount})
	}
	return quote, nil
}

// Execute submits an intent for execution, probing the ordered candidate
// endpoints. A 404 moves to the next candidate; any other error class fails
// immediately so real failures are never masked as fallbacks.
func (c *Client) Execute(ctx context.Context, req ports.ExecuteRequest) (*ports.ExecuteResult, error) {
	body := executeRequest{
		ClientRef: req.PaymentID.String(),
		QuoteID:   req.QuoteID,
		AssetID:   req.AssetID,
		Amount:    req.Amount,
		Payer:     req.Payer.Address,
		Recipient: req.Recipient.Address,
		ChainID:   req.Recipient.ChainID,
	}
	if len(req.SignedPayload) > 0 {
		body.SignedPayload = string(req.SignedPayload)
	}

	var lastErr error
	for _, path := range c.executePaths {
		var resp executeResponse
		err := c.do(ctx, http.MethodPost, path, body, &resp)
		if err == nil {
			result := &ports.ExecuteResult{
				ProviderRef:    resp.OrderID,
				QuoteID:        resp.QuoteID,
				UpstreamStatus: resp.Status,
				DepositAddress: resp.DepositAddress,
			}
			for _, s := range resp.Settlements {
				result.Settlements = append(result.Settlements, domain.SettlementRef{ChainID: s.ChainID, TxHash: s.TxHash})
			}
			return result, nil
		}
		if errors.Is(err, errEndpointNotFound) {
			c.log.Debug().Str("path", path).Msg("provider execute endpoint not found, trying next candidate")
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, apperror.ErrProviderUnavailable(fmt.Errorf("all execute endpoints exhausted: %w", lastErr))
}

// FetchStatus returns the provider's raw status string for an order.
func (c *Client) FetchStatus(ctx context.Context, providerRef string) (string, error) {
	var resp statusResponse
	path := "/v1/orders/" + providerRef + "/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if errors.Is(err, errEndpointNotFound) {
			return "", apperror.ErrProviderUnavailable(err)
		}
		return "", err
	}
	return resp.Status, nil
}

// do performs one provider call and classifies the outcome: transport
// errors and 5xx are retryable, 404 is the fallback sentinel, other 4xx are
// fatal rejections.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("marshal provider request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build provider request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts land here. Inconclusive, retryable, never FAILED.
		return apperror.ErrProviderUnavailable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errEndpointNotFound
	case resp.StatusCode >= 500:
		return apperror.ErrProviderUnavailable(fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return apperror.ErrProviderRejected(readErrorMessage(resp.Body, resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.ErrProviderUnavailable(fmt.Errorf("decode provider response: %w", err))
		}
	}
	return nil
}

// readErrorMessage extracts the provider's error message, falling back to
// the status code.
func readErrorMessage(body io.Reader, statusCode int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("provider rejected the request with status %d", statusCode)
}
