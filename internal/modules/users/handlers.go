package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/common"
)

// Handlers contains HTTP handlers for profile settings
type Handlers struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandlers creates a new profile handlers instance
func NewHandlers(repo *Repository, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo: repo,
		log:  log.With().Str("handler", "users").Logger(),
	}
}

// HandleGetProfile returns the caller's profile
// GET /api/profile
func (h *Handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	profile, err := h.repo.Get(userID)
	if errors.Is(err, ErrProfileNotFound) {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get profile")
		http.Error(w, "Failed to get profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(profile)
}

// settingsRequest is the PUT /api/profile payload
type settingsRequest struct {
	AccountingMethod string          `json:"accounting_method"`
	TaxLossOffsets   bool            `json:"tax_loss_offsets"`
	TaxRateSTCG      decimal.Decimal `json:"tax_rate_stcg"`
	TaxRateLTCG      decimal.Decimal `json:"tax_rate_ltcg"`
}

// HandleUpdateSettings updates tax and accounting settings
// PUT /api/profile
func (h *Handlers) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.repo.Get(userID)
	if errors.Is(err, ErrProfileNotFound) {
		http.Error(w, "Profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get profile")
		http.Error(w, "Failed to get profile", http.StatusInternalServerError)
		return
	}

	method, err := AccountingMethodFromString(req.AccountingMethod)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile.AccountingMethod = method
	profile.TaxLossOffsets = req.TaxLossOffsets
	profile.TaxRateSTCG = req.TaxRateSTCG
	profile.TaxRateLTCG = req.TaxRateLTCG

	if err := h.repo.UpdateSettings(profile); err != nil {
		if profile.Validate() != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to update settings")
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(profile)
}
