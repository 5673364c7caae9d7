package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"intent-payment-gateway/config"
	"intent-payment-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// TokenCatalog implements ports.TokenCatalog: decimal places by asset id,
// cached from the provider's authenticated token catalog and refreshed on a
// bounded interval. When the authenticated endpoint is unreachable it falls
// back to the public feed, and a stale cache beats no cache.
type TokenCatalog struct {
	catalogURL      string
	publicFeedURL   string
	apiKey          string
	refreshInterval time.Duration
	httpClient      *http.Client
	log             zerolog.Logger

	mu        sync.RWMutex
	decimals  map[string]int
	fetchedAt time.Time
}

// NewTokenCatalog creates a token catalog cache from configuration.
func NewTokenCatalog(cfg config.ProviderConfig, log zerolog.Logger) *TokenCatalog {
	return &TokenCatalog{
		catalogURL:      cfg.BaseURL + "/v1/tokens",
		publicFeedURL:   cfg.PublicFeedURL,
		apiKey:          cfg.APIKey,
		refreshInterval: cfg.TokenRefreshInterval,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		log:             log,
		decimals:        map[string]int{},
	}
}

type tokenEntry struct {
	AssetID  string `json:"asset_id"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Decimals returns the decimal place count for an asset id.
func (t *TokenCatalog) Decimals(ctx context.Context, assetID string) (int, error) {
	t.mu.RLock()
	fresh := time.Since(t.fetchedAt) < t.refreshInterval
	d, ok := t.decimals[assetID]
	t.mu.RUnlock()

	if fresh {
		if !ok {
			return 0, apperror.ErrUnknownAsset(assetID)
		}
		return d, nil
	}

	if err := t.refresh(ctx); err != nil {
		if ok {
			// Serve the stale entry rather than failing payments over a
			// catalog hiccup.
			t.log.Warn().Err(err).Msg("token catalog refresh failed, serving stale decimals")
			return d, nil
		}
		return 0, apperror.ErrProviderUnavailable(fmt.Errorf("token catalog: %w", err))
	}

	t.mu.RLock()
	d, ok = t.decimals[assetID]
	t.mu.RUnlock()
	if !ok {
		return 0, apperror.ErrUnknownAsset(assetID)
	}
	return d, nil
}

// refresh fetches the authenticated catalog, falling back to the public
// feed, and swaps the cache in one shot.
func (t *TokenCatalog) refresh(ctx context.Context) error {
	entries, err := t.fetch(ctx, t.catalogURL, true)
	if err != nil {
		if t.publicFeedURL == "" {
			return err
		}
		t.log.Warn().Err(err).Msg("authenticated token catalog unreachable, using public feed")
		entries, err = t.fetch(ctx, t.publicFeedURL, false)
		if err != nil {
			return err
		}
	}

	fresh := make(map[string]int, len(entries))
	for _, e := range entries {
		id := e.AssetID
		if id == "" {
			id = e.Symbol
		}
		if id != "" {
			fresh[id] = e.Decimals
		}
	}

	t.mu.Lock()
	t.decimals = fresh
	t.fetchedAt = time.Now()
	t.mu.Unlock()
	return nil
}

func (t *TokenCatalog) fetch(ctx context.Context, url string, authenticated bool) ([]tokenEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	if authenticated && t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}

	var entries []tokenEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}
