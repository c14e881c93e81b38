package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/pkg/money"
)

// rollUpUnrealized sums every symbol aggregate into the portfolio-level
// unrealized totals and derives the dependent per-share and percent
// figures. With no open positions the totals stay zeroed and the
// percent fields not applicable.
func rollUpUnrealized(p *Portfolio) {
	u := &p.Unrealized
	u.GainOrLossPreTaxPercent = money.NotApplicable()
	u.ReturnPercentPostTax = money.NotApplicable()

	for _, a := range p.Symbols {
		u.TransactionShares += a.TransactionShares
		u.SharesOutstanding += a.SharesOutstanding
		u.CostBasisTotal = u.CostBasisTotal.Add(a.CostBasisTotal)
		u.STCGUnrealized = u.STCGUnrealized.Add(a.STCGUnrealized)
		u.LTCGUnrealized = u.LTCGUnrealized.Add(a.LTCGUnrealized)
		u.MarketValueTotalPreTax = u.MarketValueTotalPreTax.Add(a.MarketValueTotalPreTax)
		u.STCGTaxUnrealized = u.STCGTaxUnrealized.Add(a.STCGTaxUnrealized)
		u.LTCGTaxUnrealized = u.LTCGTaxUnrealized.Add(a.LTCGTaxUnrealized)
		u.CGTaxOffsetUnrealized = u.CGTaxOffsetUnrealized.Add(a.CGTaxOffsetUnrealized)
	}

	u.CGTotalUnrealized = u.STCGUnrealized.Add(u.LTCGUnrealized)
	u.CGTotalTaxUnrealized = u.STCGTaxUnrealized.Add(u.LTCGTaxUnrealized)

	// Offsets reduce tax drag but never lift post-tax value above
	// pre-tax value: the net adjustment clamps at zero.
	u.MarketValuePostTax = u.MarketValueTotalPreTax.Add(
		minZero(u.CGTotalTaxUnrealized.Neg().Add(u.CGTaxOffsetUnrealized)))

	u.MarketValueInclCash = u.MarketValueTotalPreTax.Add(p.Cash)
	u.MarketValuePostTaxInclCash = u.MarketValuePostTax.Add(p.Cash)

	if u.SharesOutstanding > 0 {
		shares := decimal.NewFromInt(u.SharesOutstanding)
		u.CostBasisPerShare = u.CostBasisTotal.Div(shares)
		u.MarketValuePerShare = u.MarketValueTotalPreTax.Div(shares)
	}
	if !u.CostBasisTotal.IsZero() {
		u.GainOrLossPreTaxPercent = money.RatioOf(
			u.MarketValueTotalPreTax.Div(u.CostBasisTotal).Sub(money.One()))
		u.ReturnPercentPostTax = money.RatioOf(
			u.MarketValuePostTax.Div(u.CostBasisTotal).Sub(money.One()))
	}
}

// combineTotals derives the grand totals from the finished unrealized
// and realized tiers plus cash. Realized gains are re-added as a
// distinct line on top of market value including cash, and lifetime
// percent returns are measured against the initial deposit.
func combineTotals(p *Portfolio) {
	u := &p.Unrealized
	r := &p.Realized
	t := &p.Totals

	t.TransactionShares = u.TransactionShares + r.SharesTotal
	t.STCG = u.STCGUnrealized.Add(r.STCGTotal)
	t.LTCG = u.LTCGUnrealized.Add(r.LTCGTotal)
	t.CGTotal = u.CGTotalUnrealized.Add(r.CGTotalRealized)
	t.MarketValuePreTax = u.MarketValueInclCash.Add(r.CGTotalRealized)

	t.STCGTax = u.STCGTaxUnrealized.Add(r.STCGTaxTotal)
	t.LTCGTax = u.LTCGTaxUnrealized.Add(r.LTCGTaxTotal)
	t.CGTaxTotal = t.STCGTax.Add(t.LTCGTax)
	t.TaxOffset = u.CGTaxOffsetUnrealized.Add(r.TaxOffsetTotal)

	t.MarketValuePostTax = t.MarketValuePreTax.Add(
		minZero(t.CGTaxTotal.Neg().Add(t.TaxOffset)))

	t.GainOrLossPreTaxPercent = money.NotApplicable()
	t.MarketValuePostTaxPct = money.NotApplicable()
	if p.CashInitial.IsPositive() {
		t.GainOrLossPreTaxPercent = money.RatioOf(t.CGTotal.Div(p.CashInitial))
		t.MarketValuePostTaxPct = money.RatioOf(
			t.MarketValuePostTax.Div(p.CashInitial).Sub(money.One()))
	}
}

func minZero(d decimal.Decimal) decimal.Decimal {
	if d.IsPositive() {
		return decimal.Zero
	}
	return d
}
