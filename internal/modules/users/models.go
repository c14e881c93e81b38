// Package users manages user tax and cash profiles. Authentication and
// session handling live in the surrounding application; this module only
// stores the settings the brokerage core needs (cash balances, tax rates,
// accounting method, loss-offset flag).
package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountingMethod selects the lot-consumption order used when selling.
type AccountingMethod string

const (
	AccountingFIFO AccountingMethod = "FIFO"
	AccountingLIFO AccountingMethod = "LIFO"
)

// HoldingPeriodCutoff separates short-term from long-term capital gains.
// A lot held for exactly this long is still short-term.
const HoldingPeriodCutoff = 365 * 24 * time.Hour

// AccountingMethodFromString parses an accounting method (case-insensitive).
func AccountingMethodFromString(value string) (AccountingMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "FIFO":
		return AccountingFIFO, nil
	case "LIFO":
		return AccountingLIFO, nil
	default:
		return "", fmt.Errorf("invalid accounting method: %s", value)
	}
}

// Profile holds a user's brokerage settings. Tax rates are whole-number
// percentages in [0, 50]; monetary amounts are 2-decimal-place dollars.
type Profile struct {
	ID               string           `json:"id"`
	Cash             decimal.Decimal  `json:"cash"`
	CashInitial      decimal.Decimal  `json:"cash_initial"`
	AccountingMethod AccountingMethod `json:"accounting_method"`
	TaxLossOffsets   bool             `json:"tax_loss_offsets"`
	TaxRateSTCG      decimal.Decimal  `json:"tax_rate_stcg"`
	TaxRateLTCG      decimal.Decimal  `json:"tax_rate_ltcg"`
	CreatedAt        time.Time        `json:"created_at"`
}

var maxTaxRate = decimal.NewFromInt(50)

// Validate checks profile fields against their allowed ranges.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile id cannot be empty")
	}

	if _, err := AccountingMethodFromString(string(p.AccountingMethod)); err != nil {
		return err
	}

	for _, rate := range []decimal.Decimal{p.TaxRateSTCG, p.TaxRateLTCG} {
		if rate.IsNegative() || rate.GreaterThan(maxTaxRate) {
			return fmt.Errorf("tax rate must be between 0 and 50, got %s", rate)
		}
	}

	if !p.CashInitial.IsPositive() {
		return fmt.Errorf("initial cash must be positive, got %s", p.CashInitial)
	}

	return nil
}
