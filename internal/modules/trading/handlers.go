package trading

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/common"
	"github.com/finsim/brokerage/internal/modules/users"
	"github.com/finsim/brokerage/pkg/money"
)

const defaultHistoryLimit = 200

// CacheInvalidator drops cached portfolio results after a trade changes
// the underlying transactions.
type CacheInvalidator interface {
	Invalidate(userID string)
}

// Handlers contains HTTP handlers for trade execution and history
type Handlers struct {
	service  *Service
	profiles *users.Repository
	cache    CacheInvalidator
	log      zerolog.Logger
}

// NewHandlers creates a new trading handlers instance
func NewHandlers(service *Service, profiles *users.Repository, cache CacheInvalidator, log zerolog.Logger) *Handlers {
	return &Handlers{
		service:  service,
		profiles: profiles,
		cache:    cache,
		log:      log.With().Str("handler", "trading").Logger(),
	}
}

// tradeRequest is the POST /api/trades/{buy,sell} payload
type tradeRequest struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// HandleBuy executes a buy order at the current market price
// POST /api/trades/buy
func (h *Handlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.service.Buy)
}

// HandleSell executes a sell order at the current market price
// POST /api/trades/sell
func (h *Handlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.service.Sell)
}

func (h *Handlers) handleTrade(w http.ResponseWriter, r *http.Request, execute func(string, string, int64) (*Transaction, error)) {
	userID, err := common.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	t, err := execute(userID, req.Symbol, req.Shares)
	if err != nil {
		h.writeTradeError(w, userID, err)
		return
	}

	h.cache.Invalidate(userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(t)
}

func (h *Handlers) writeTradeError(w http.ResponseWriter, userID string, err error) {
	var cashErr *InsufficientCashError
	var sharesErr *InsufficientSharesError

	switch {
	case errors.As(err, &cashErr), errors.As(err, &sharesErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, users.ErrProfileNotFound):
		http.Error(w, "Profile not found", http.StatusNotFound)
	default:
		h.log.Error().Err(err).Str("user_id", userID).Msg("Trade failed")
		http.Error(w, "Trade failed", http.StatusInternalServerError)
	}
}

// historyEntry is a transaction with the derived capital-gain fields
// shown on sell rows. Post-tax figures use the profile's current rates.
type historyEntry struct {
	Transaction
	TotalCGPreTax         *decimal.Decimal `json:"total_cg_pre_tax,omitempty"`
	TotalCGPreTaxPercent  *money.Ratio     `json:"total_cg_pre_tax_percent,omitempty"`
	TotalCGTax            *decimal.Decimal `json:"total_cg_tax,omitempty"`
	TotalCGPostTax        *decimal.Decimal `json:"total_cg_post_tax,omitempty"`
	TotalCGPostTaxPercent *money.Ratio     `json:"total_cg_post_tax_percent,omitempty"`
}

// HandleHistory returns the caller's transactions, most recent first,
// with realized-gain annotations on sells
// GET /api/trades
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	profile, err := h.profiles.Get(userID)
	if errors.Is(err, users.ErrProfileNotFound) {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get profile")
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	transactions, err := h.service.History(userID, defaultHistoryLimit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get history")
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	entries := make([]historyEntry, 0, len(transactions))
	for _, t := range transactions {
		entries = append(entries, annotate(t, profile))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func annotate(t Transaction, profile *users.Profile) historyEntry {
	entry := historyEntry{Transaction: t}
	if t.Kind != KindSell {
		return entry
	}

	rateSTCG := money.RateFromPercent(profile.TaxRateSTCG)
	rateLTCG := money.RateFromPercent(profile.TaxRateLTCG)

	preTax := t.STCG.Add(t.LTCG)
	totalTax := t.STCGTax.Add(t.LTCGTax)
	postTax := t.STCG.Mul(money.One().Sub(rateSTCG)).
		Add(t.LTCG.Mul(money.One().Sub(rateLTCG))).
		Round(money.Two)

	entry.TotalCGPreTax = &preTax
	entry.TotalCGTax = &totalTax
	entry.TotalCGPostTax = &postTax

	if t.ValueTotal.IsPositive() {
		entry.TotalCGPreTaxPercent = ratioPtr(money.RatioOf(preTax.Div(t.ValueTotal).Round(4)))
		entry.TotalCGPostTaxPercent = ratioPtr(money.RatioOf(postTax.Div(t.ValueTotal).Round(4)))
	} else {
		entry.TotalCGPreTaxPercent = ratioPtr(money.NotApplicable())
		entry.TotalCGPostTaxPercent = ratioPtr(money.NotApplicable())
	}

	return entry
}

func ratioPtr(r money.Ratio) *money.Ratio {
	return &r
}
