// Package fmp is a Financial Modeling Prep API client. Quotes are cached
// briefly and never served stale; company profiles fall back to a stale
// cache entry when the API is unavailable.
package fmp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/clientdata"
)

const (
	cacheSource = "fmp"

	profileCacheTTL = time.Hour
)

// Client is a Financial Modeling Prep API client
type Client struct {
	baseURL  string
	apiKey   string
	quoteTTL time.Duration
	client   *http.Client
	cache    *clientdata.Repository
	log      zerolog.Logger
}

// NewClient creates a new FMP client
func NewClient(baseURL, apiKey string, quoteTTL time.Duration, cache *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		quoteTTL: quoteTTL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		log:   log.With().Str("client", "fmp").Logger(),
	}
}

// Profile fetches a company profile, cache-first with stale fallback.
func (c *Client) Profile(symbol string) (*CompanyProfile, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	cacheKey := "profile:" + symbol

	if cached, err := c.cache.GetIfFresh(cacheSource, cacheKey); err == nil && cached != nil {
		var profile CompanyProfile
		if err := json.Unmarshal(cached, &profile); err == nil {
			return &profile, nil
		}
	}

	var profiles []CompanyProfile
	if err := c.getJSON("/profile/"+url.PathEscape(symbol), nil, &profiles); err != nil {
		// Serve a stale profile rather than failing the quote page
		if stale, cacheErr := c.cache.GetStale(cacheSource, cacheKey); cacheErr == nil && stale != nil {
			var profile CompanyProfile
			if jsonErr := json.Unmarshal(stale, &profile); jsonErr == nil {
				c.log.Warn().Err(err).Str("symbol", symbol).Msg("Serving stale company profile")
				return &profile, nil
			}
		}
		return nil, err
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profile data for symbol %s", symbol)
	}

	profile := profiles[0]
	if err := c.cache.Store(cacheSource, cacheKey, profile, profileCacheTTL); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache company profile")
	}

	return &profile, nil
}

// GetPrices fetches current prices for a set of symbols in one batch
// request. Missing symbols are simply absent from the result map; stale
// prices are never returned.
func (c *Client) GetPrices(symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		normalized = append(normalized, strings.ToUpper(strings.TrimSpace(s)))
	}

	cacheKey := "quote:" + strings.Join(normalized, ",")

	var quotes []Quote
	if cached, err := c.cache.GetIfFresh(cacheSource, cacheKey); err == nil && cached != nil {
		if err := json.Unmarshal(cached, &quotes); err == nil {
			return pricesBySymbol(quotes), nil
		}
	}

	path := "/quote/" + url.PathEscape(strings.Join(normalized, ","))
	if err := c.getJSON(path, nil, &quotes); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	if err := c.cache.Store(cacheSource, cacheKey, quotes, c.quoteTTL); err != nil {
		c.log.Warn().Err(err).Msg("Failed to cache quotes")
	}

	return pricesBySymbol(quotes), nil
}

// AvailableListings fetches the full list of traded securities.
func (c *Client) AvailableListings() ([]TradedListing, error) {
	var listings []TradedListing
	if err := c.getJSON("/available-traded/list", nil, &listings); err != nil {
		return nil, fmt.Errorf("failed to fetch traded listings: %w", err)
	}

	c.log.Info().Int("count", len(listings)).Msg("Fetched traded listings")
	return listings, nil
}

// Helper methods

func pricesBySymbol(quotes []Quote) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		if q.Price.IsPositive() {
			prices[strings.ToUpper(q.Symbol)] = q.Price
		}
	}
	return prices
}

func (c *Client) getJSON(path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("FMP API returned status %d for %s: %s", resp.StatusCode, path, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
