package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/modules/trading"
	"github.com/finsim/brokerage/internal/modules/users"
	"github.com/finsim/brokerage/pkg/money"
)

// taxRates holds the profile's rates converted to fractions, plus the
// loss-offset coefficient (1 when offsets are enabled, 0 otherwise).
type taxRates struct {
	stcg        decimal.Decimal
	ltcg        decimal.Decimal
	offsetCoeff decimal.Decimal
}

func newTaxRates(profile *users.Profile) taxRates {
	coeff := decimal.Zero
	if profile.TaxLossOffsets {
		coeff = money.One()
	}
	return taxRates{
		stcg:        money.RateFromPercent(profile.TaxRateSTCG),
		ltcg:        money.RateFromPercent(profile.TaxRateLTCG),
		offsetCoeff: coeff,
	}
}

// lotDelta is the contribution of one open lot, added field-by-field
// into the owning symbol's aggregate. Never persisted standalone.
type lotDelta struct {
	transactionShares     int64
	sharesOutstanding     int64
	costBasisTotal        decimal.Decimal
	stcgUnrealized        decimal.Decimal
	ltcgUnrealized        decimal.Decimal
	cgTotalUnrealized     decimal.Decimal
	stcgTaxUnrealized     decimal.Decimal
	ltcgTaxUnrealized     decimal.Decimal
	cgTotalTaxUnrealized  decimal.Decimal
	cgTaxOffsetUnrealized decimal.Decimal
	marketValuePreTax     decimal.Decimal
	marketValuePostTax    decimal.Decimal
}

// classifyLot computes one open BUY lot's unrealized gain, term
// classification, and tax or offset bucket, marked to the current price.
//
// The lot is short-term while its age has not yet passed the holding
// period cutoff; an age exactly equal to the cutoff is still short-term.
// A gain in either bucket accrues hypothetical tax at that bucket's
// rate; a loss accrues no tax but banks an offset of |loss * rate| when
// offsets are enabled. The offset is netted against other lots' taxes at
// the portfolio roll-up, never against this lot's own value.
//
// Callers must not pass a lot with zero shares outstanding; such lots
// contribute no deltas and skip classification entirely.
func classifyLot(lot trading.Transaction, price decimal.Decimal, now time.Time, rates taxRates) lotDelta {
	shares := decimal.NewFromInt(lot.SharesOutstanding)
	costBasis := shares.Mul(lot.ValuePerShare)
	marketValue := shares.Mul(price)
	gainOrLoss := marketValue.Sub(costBasis)

	d := lotDelta{
		transactionShares: lot.TransactionShares,
		sharesOutstanding: lot.SharesOutstanding,
		costBasisTotal:    costBasis,
		marketValuePreTax: marketValue,
	}

	shortTerm := now.Sub(lot.Timestamp) <= users.HoldingPeriodCutoff
	if shortTerm {
		d.stcgUnrealized = gainOrLoss
		d.stcgTaxUnrealized, d.cgTaxOffsetUnrealized = taxOrOffset(gainOrLoss, rates.stcg, rates.offsetCoeff)
	} else {
		d.ltcgUnrealized = gainOrLoss
		d.ltcgTaxUnrealized, d.cgTaxOffsetUnrealized = taxOrOffset(gainOrLoss, rates.ltcg, rates.offsetCoeff)
	}

	d.cgTotalUnrealized = d.stcgUnrealized.Add(d.ltcgUnrealized)
	d.cgTotalTaxUnrealized = d.stcgTaxUnrealized.Add(d.ltcgTaxUnrealized)
	d.marketValuePostTax = d.marketValuePreTax.Sub(d.cgTotalTaxUnrealized)

	return d
}

func taxOrOffset(gain, rate, offsetCoeff decimal.Decimal) (tax, offset decimal.Decimal) {
	if gain.IsPositive() {
		return gain.Mul(rate), decimal.Zero
	}
	return decimal.Zero, gain.Mul(rate).Mul(offsetCoeff).Abs()
}
