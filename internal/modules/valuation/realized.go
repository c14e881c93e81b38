package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/modules/trading"
	"github.com/finsim/brokerage/pkg/money"
)

// foldSale annotates one SELL transaction and folds it into the running
// realized totals. The cost basis is back-derived from the proceeds and
// the realized gains; a zero or negative basis marks a malformed record.
//
// Display taxes clamp the stored signed taxes at zero, and the total
// realized tax is recomputed from the profile's current rates so the
// display always reflects today's rate settings. A sale whose signed
// taxes net negative banks that amount as a realized offset.
func foldSale(t trading.Transaction, rates taxRates, totals *RealizedTotals) (SellReport, error) {
	costBasis := t.ValueTotal.Sub(t.STCG).Sub(t.LTCG)
	if !costBasis.IsPositive() {
		return SellReport{}, &DataIntegrityError{
			TransactionID: t.ID,
			Reason:        "sale cost basis is zero or negative",
		}
	}

	cgTotal := t.STCG.Add(t.LTCG)
	cgTaxTotal := maxZero(t.STCG.Mul(rates.stcg).Add(t.LTCG.Mul(rates.ltcg)))
	marketValuePostTax := t.ValueTotal.Sub(cgTaxTotal)

	report := SellReport{
		Transaction:             t,
		CostBasisTotal:          costBasis,
		CGTotalRealized:         cgTotal,
		GainOrLossPreTaxPercent: money.RatioOf(cgTotal.Div(costBasis)),
		STCGTaxRealized:         maxZero(t.STCGTax),
		LTCGTaxRealized:         maxZero(t.LTCGTax),
		CGTotalTaxRealized:      cgTaxTotal,
		TaxOffsetRealized:       maxZero(t.STCGTax.Add(t.LTCGTax).Neg()),
		MarketValuePostTax:      marketValuePostTax,
		ReturnPercentPostTax:    money.RatioOf(marketValuePostTax.Div(costBasis).Sub(money.One())),
	}

	totals.SharesTotal += t.TransactionShares
	totals.CostBasisTotal = totals.CostBasisTotal.Add(costBasis)
	totals.STCGTotal = totals.STCGTotal.Add(t.STCG)
	totals.LTCGTotal = totals.LTCGTotal.Add(t.LTCG)
	totals.CGTotalRealized = totals.CGTotalRealized.Add(cgTotal)
	totals.MarketValuePreTaxTotal = totals.MarketValuePreTaxTotal.Add(t.ValueTotal)
	totals.STCGTaxTotal = totals.STCGTaxTotal.Add(report.STCGTaxRealized)
	totals.LTCGTaxTotal = totals.LTCGTaxTotal.Add(report.LTCGTaxRealized)
	totals.TaxOffsetTotal = totals.TaxOffsetTotal.Add(report.TaxOffsetRealized)
	totals.MarketValuePostTaxTotal = totals.MarketValuePostTaxTotal.Add(marketValuePostTax)

	return report, nil
}

// finalize derives the realized percentage returns once all sales are
// folded. With no sales at all the percent fields stay not-applicable:
// "no trading activity" must never read as a literal 0% return.
func (r *RealizedTotals) finalize() {
	if r.CostBasisTotal.IsZero() {
		r.GainOrLossPreTaxPercent = money.NotApplicable()
		r.ReturnPercentPostTax = money.NotApplicable()
		return
	}

	r.GainOrLossPreTaxPercent = money.RatioOf(
		r.MarketValuePreTaxTotal.Div(r.CostBasisTotal).Sub(money.One()))
	r.ReturnPercentPostTax = money.RatioOf(
		r.MarketValuePostTaxTotal.Div(r.CostBasisTotal).Sub(money.One()))
}

func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
