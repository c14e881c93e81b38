// Package market serves security reference data: the traded-listings
// table used for symbol search, and the quote endpoint backed by the
// market data API.
package market

import "github.com/shopspring/decimal"

// Listing is one traded security from the reference listings table.
type Listing struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Exchange      string          `json:"exchange"`
	ExchangeShort string          `json:"exchange_short"`
	ListingType   string          `json:"listing_type"`
}

// SearchResult is the trimmed listing shape returned by symbol search.
type SearchResult struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	ExchangeShort string `json:"exchange_short"`
}
