package market

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/clients/fmp"
	"github.com/finsim/brokerage/pkg/money"
)

// ProfileSource provides company profile lookups.
type ProfileSource interface {
	Profile(symbol string) (*fmp.CompanyProfile, error)
}

// Handlers contains HTTP handlers for quotes and symbol search
type Handlers struct {
	repo     *Repository
	profiles ProfileSource
	log      zerolog.Logger
}

// NewHandlers creates a new market handlers instance
func NewHandlers(repo *Repository, profiles ProfileSource, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:     repo,
		profiles: profiles,
		log:      log.With().Str("handler", "market").Logger(),
	}
}

// quoteResponse is the GET /api/quote/{symbol} payload. ChangesPercent
// is the day's move relative to the previous close (price - changes).
type quoteResponse struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Changes        decimal.Decimal `json:"changes"`
	ChangesPercent money.Ratio     `json:"changes_percent"`
	Exchange       string          `json:"exchange"`
	ExchangeShort  string          `json:"exchange_short"`
	Sector         string          `json:"sector"`
	Industry       string          `json:"industry"`
	MarketCap      decimal.Decimal `json:"market_cap"`
	AvgVolume      int64           `json:"avg_volume"`
	Range          string          `json:"range"`
	CEO            string          `json:"ceo"`
	Website        string          `json:"website"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
}

// HandleQuote returns a company profile with current price
// GET /api/quote/{symbol}
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.Profile(symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get quote")
		http.Error(w, "Failed to get quote for "+symbol, http.StatusBadGateway)
		return
	}

	resp := quoteResponse{
		Symbol:         profile.Symbol,
		Name:           profile.CompanyName,
		Price:          profile.Price,
		Changes:        profile.Changes,
		ChangesPercent: changesPercent(profile.Price, profile.Changes),
		Exchange:       profile.Exchange,
		ExchangeShort:  profile.ExchangeShortName,
		Sector:         profile.Sector,
		Industry:       profile.Industry,
		MarketCap:      profile.MktCap,
		AvgVolume:      profile.VolAvg,
		Range:          profile.Range,
		CEO:            profile.CEO,
		Website:        profile.Website,
		Description:    profile.Description,
		Image:          profile.Image,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func changesPercent(price, changes decimal.Decimal) money.Ratio {
	previousClose := price.Sub(changes)
	if previousClose.IsZero() {
		return money.NotApplicable()
	}
	return money.RatioOf(changes.Div(previousClose).Round(4))
}

// HandleSearch finds listings matching a symbol or company name
// GET /api/symbols/search?q=...
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}

	results, err := h.repo.Search(query)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Symbol search failed")
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}
