package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/pkg/money"
)

// newSymbolAggregate initializes a zeroed aggregate carrying the current
// price, fetched once per symbol for the whole run.
func newSymbolAggregate(symbol string, price decimal.Decimal) *SymbolAggregate {
	return &SymbolAggregate{
		Symbol:                  symbol,
		MarketValuePerShare:     price,
		GainOrLossPreTaxPercent: money.NotApplicable(),
		ReturnPercentPostTax:    money.NotApplicable(),
	}
}

// addLot folds one lot delta into the aggregate and re-derives the
// dependent ratios. When the aggregate has no open shares or no cost
// basis, the derived ratios keep their last value rather than dividing
// by zero.
func (a *SymbolAggregate) addLot(d lotDelta) {
	a.TransactionShares += d.transactionShares
	a.SharesOutstanding += d.sharesOutstanding
	a.CostBasisTotal = a.CostBasisTotal.Add(d.costBasisTotal)

	a.STCGUnrealized = a.STCGUnrealized.Add(d.stcgUnrealized)
	a.LTCGUnrealized = a.LTCGUnrealized.Add(d.ltcgUnrealized)
	a.CGTotalUnrealized = a.CGTotalUnrealized.Add(d.cgTotalUnrealized)

	a.MarketValueTotalPreTax = a.MarketValueTotalPreTax.Add(d.marketValuePreTax)

	a.STCGTaxUnrealized = a.STCGTaxUnrealized.Add(d.stcgTaxUnrealized)
	a.LTCGTaxUnrealized = a.LTCGTaxUnrealized.Add(d.ltcgTaxUnrealized)
	a.CGTotalTaxUnrealized = a.CGTotalTaxUnrealized.Add(d.cgTotalTaxUnrealized)
	a.CGTaxOffsetUnrealized = a.CGTaxOffsetUnrealized.Add(d.cgTaxOffsetUnrealized)

	a.MarketValuePostTax = a.MarketValuePostTax.Add(d.marketValuePostTax)

	if a.SharesOutstanding > 0 {
		a.CostBasisPerShare = a.CostBasisTotal.Div(decimal.NewFromInt(a.SharesOutstanding))
	}
	if !a.CostBasisTotal.IsZero() {
		a.GainOrLossPreTaxPercent = money.RatioOf(a.CGTotalUnrealized.Div(a.CostBasisTotal))
		a.ReturnPercentPostTax = money.RatioOf(a.MarketValuePostTax.Div(a.CostBasisTotal).Sub(money.One()))
	}
}
