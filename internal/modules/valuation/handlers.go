package valuation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsim/brokerage/internal/common"
	"github.com/finsim/brokerage/internal/modules/users"
)

// Handlers contains HTTP handlers for portfolio valuation
type Handlers struct {
	engine *Engine
	cache  *ResultCache
	log    zerolog.Logger
}

// NewHandlers creates a new valuation handlers instance
func NewHandlers(engine *Engine, cache *ResultCache, log zerolog.Logger) *Handlers {
	return &Handlers{
		engine: engine,
		cache:  cache,
		log:    log.With().Str("handler", "valuation").Logger(),
	}
}

// HandlePortfolio returns the caller's valued portfolio, cache-first
// GET /api/portfolio
func (h *Handlers) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if portfolio := h.cache.Get(userID); portfolio != nil {
		writePortfolio(w, portfolio)
		return
	}

	portfolio, err := h.engine.ComputePortfolio(userID, time.Now().UTC())
	if err != nil {
		h.writeValuationError(w, userID, err)
		return
	}

	h.cache.Set(userID, portfolio)
	writePortfolio(w, portfolio)
}

func (h *Handlers) writeValuationError(w http.ResponseWriter, userID string, err error) {
	var integrityErr *DataIntegrityError
	var priceErr *MissingPriceError

	switch {
	case errors.Is(err, users.ErrProfileNotFound):
		http.Error(w, "Profile not found", http.StatusNotFound)
	case errors.As(err, &integrityErr):
		h.log.Error().Err(err).Str("user_id", userID).Msg("Corrupt transaction data")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case errors.As(err, &priceErr):
		h.log.Error().Err(err).Str("user_id", userID).Msg("Price lookup incomplete")
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error().Err(err).Str("user_id", userID).Msg("Portfolio valuation failed")
		http.Error(w, "Failed to compute portfolio", http.StatusInternalServerError)
	}
}

func writePortfolio(w http.ResponseWriter, portfolio *Portfolio) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(portfolio)
}
