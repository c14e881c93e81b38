// Package valuation is the portfolio valuation and tax-lot accounting
// engine. Given a user's full transaction history, current prices, and
// tax profile, it reconstructs each open position's cost basis, computes
// unrealized short- and long-term capital gains with their hypothetical
// tax, nets tax-loss offsets, re-aggregates realized sale performance,
// and rolls everything into symbol, portfolio, and grand totals.
//
// The engine is a pure fold over an immutable snapshot: it performs no
// I/O beyond its collaborator interfaces, holds no state between calls,
// and is safe to invoke concurrently.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/modules/trading"
	"github.com/finsim/brokerage/pkg/money"
)

// SymbolAggregate folds all open lots of one symbol. Percent fields are
// not applicable until the symbol has a positive cost basis.
type SymbolAggregate struct {
	Symbol                  string          `json:"symbol" msgpack:"symbol"`
	TransactionShares       int64           `json:"transaction_shares" msgpack:"transaction_shares"`
	SharesOutstanding       int64           `json:"shares_outstanding" msgpack:"shares_outstanding"`
	CostBasisPerShare       decimal.Decimal `json:"cost_basis_per_share" msgpack:"cost_basis_per_share"`
	CostBasisTotal          decimal.Decimal `json:"cost_basis_total" msgpack:"cost_basis_total"`
	MarketValuePerShare     decimal.Decimal `json:"market_value_per_share" msgpack:"market_value_per_share"`
	MarketValueTotalPreTax  decimal.Decimal `json:"market_value_total_pre_tax" msgpack:"market_value_total_pre_tax"`
	GainOrLossPreTaxPercent money.Ratio     `json:"gain_or_loss_pre_tax_percent" msgpack:"gain_or_loss_pre_tax_percent"`
	STCGUnrealized          decimal.Decimal `json:"stcg_unrealized" msgpack:"stcg_unrealized"`
	LTCGUnrealized          decimal.Decimal `json:"ltcg_unrealized" msgpack:"ltcg_unrealized"`
	CGTotalUnrealized       decimal.Decimal `json:"cg_total_unrealized" msgpack:"cg_total_unrealized"`
	STCGTaxUnrealized       decimal.Decimal `json:"stcg_tax_unrealized" msgpack:"stcg_tax_unrealized"`
	LTCGTaxUnrealized       decimal.Decimal `json:"ltcg_tax_unrealized" msgpack:"ltcg_tax_unrealized"`
	CGTotalTaxUnrealized    decimal.Decimal `json:"cg_total_tax_unrealized" msgpack:"cg_total_tax_unrealized"`
	CGTaxOffsetUnrealized   decimal.Decimal `json:"cg_tax_offset_unrealized" msgpack:"cg_tax_offset_unrealized"`
	MarketValuePostTax      decimal.Decimal `json:"market_value_post_tax" msgpack:"market_value_post_tax"`
	ReturnPercentPostTax    money.Ratio     `json:"return_percent_post_tax" msgpack:"return_percent_post_tax"`
}

// SellReport is one SELL transaction annotated with its derived display
// fields. The realized gains and signed taxes come from the record;
// CGTotalTaxRealized is recomputed from the profile's current rates.
type SellReport struct {
	Transaction             trading.Transaction `json:"transaction" msgpack:"transaction"`
	CostBasisTotal          decimal.Decimal     `json:"cost_basis_total" msgpack:"cost_basis_total"`
	CGTotalRealized         decimal.Decimal     `json:"cg_total_realized" msgpack:"cg_total_realized"`
	GainOrLossPreTaxPercent money.Ratio         `json:"gain_or_loss_pre_tax_percent" msgpack:"gain_or_loss_pre_tax_percent"`
	STCGTaxRealized         decimal.Decimal     `json:"stcg_tax_realized" msgpack:"stcg_tax_realized"`
	LTCGTaxRealized         decimal.Decimal     `json:"ltcg_tax_realized" msgpack:"ltcg_tax_realized"`
	CGTotalTaxRealized      decimal.Decimal     `json:"cg_total_tax_realized" msgpack:"cg_total_tax_realized"`
	TaxOffsetRealized       decimal.Decimal     `json:"tax_offset_realized" msgpack:"tax_offset_realized"`
	MarketValuePostTax      decimal.Decimal     `json:"market_value_post_tax" msgpack:"market_value_post_tax"`
	ReturnPercentPostTax    money.Ratio         `json:"return_percent_post_tax" msgpack:"return_percent_post_tax"`
}

// UnrealizedTotals sums every symbol aggregate into portfolio-level
// unrealized metrics. All fields stay zero (percents not applicable)
// when the user has no open positions.
type UnrealizedTotals struct {
	TransactionShares          int64           `json:"transaction_shares" msgpack:"transaction_shares"`
	SharesOutstanding          int64           `json:"shares_outstanding" msgpack:"shares_outstanding"`
	CostBasisTotal             decimal.Decimal `json:"cost_basis_total" msgpack:"cost_basis_total"`
	CostBasisPerShare          decimal.Decimal `json:"cost_basis_per_share" msgpack:"cost_basis_per_share"`
	STCGUnrealized             decimal.Decimal `json:"stcg_unrealized" msgpack:"stcg_unrealized"`
	LTCGUnrealized             decimal.Decimal `json:"ltcg_unrealized" msgpack:"ltcg_unrealized"`
	CGTotalUnrealized          decimal.Decimal `json:"cg_total_unrealized" msgpack:"cg_total_unrealized"`
	MarketValueTotalPreTax     decimal.Decimal `json:"market_value_total_pre_tax" msgpack:"market_value_total_pre_tax"`
	MarketValueInclCash        decimal.Decimal `json:"market_value_incl_cash" msgpack:"market_value_incl_cash"`
	MarketValuePerShare        decimal.Decimal `json:"market_value_per_share" msgpack:"market_value_per_share"`
	GainOrLossPreTaxPercent    money.Ratio     `json:"gain_or_loss_pre_tax_percent" msgpack:"gain_or_loss_pre_tax_percent"`
	STCGTaxUnrealized          decimal.Decimal `json:"stcg_tax_unrealized" msgpack:"stcg_tax_unrealized"`
	LTCGTaxUnrealized          decimal.Decimal `json:"ltcg_tax_unrealized" msgpack:"ltcg_tax_unrealized"`
	CGTotalTaxUnrealized       decimal.Decimal `json:"cg_total_tax_unrealized" msgpack:"cg_total_tax_unrealized"`
	CGTaxOffsetUnrealized      decimal.Decimal `json:"cg_tax_offset_unrealized" msgpack:"cg_tax_offset_unrealized"`
	MarketValuePostTax         decimal.Decimal `json:"market_value_post_tax" msgpack:"market_value_post_tax"`
	MarketValuePostTaxInclCash decimal.Decimal `json:"market_value_post_tax_incl_cash" msgpack:"market_value_post_tax_incl_cash"`
	ReturnPercentPostTax       money.Ratio     `json:"return_percent_post_tax" msgpack:"return_percent_post_tax"`
}

// RealizedTotals sums every sell report into realized-performance
// metrics. Percent fields are not applicable when the user has no sales.
type RealizedTotals struct {
	SharesTotal             int64           `json:"shares_total" msgpack:"shares_total"`
	CostBasisTotal          decimal.Decimal `json:"cost_basis_total" msgpack:"cost_basis_total"`
	STCGTotal               decimal.Decimal `json:"stcg_total" msgpack:"stcg_total"`
	LTCGTotal               decimal.Decimal `json:"ltcg_total" msgpack:"ltcg_total"`
	CGTotalRealized         decimal.Decimal `json:"cg_total_realized" msgpack:"cg_total_realized"`
	MarketValuePreTaxTotal  decimal.Decimal `json:"market_value_pre_tax_total" msgpack:"market_value_pre_tax_total"`
	GainOrLossPreTaxPercent money.Ratio     `json:"gain_or_loss_pre_tax_percent" msgpack:"gain_or_loss_pre_tax_percent"`
	STCGTaxTotal            decimal.Decimal `json:"stcg_tax_total" msgpack:"stcg_tax_total"`
	LTCGTaxTotal            decimal.Decimal `json:"ltcg_tax_total" msgpack:"ltcg_tax_total"`
	TaxOffsetTotal          decimal.Decimal `json:"tax_offset_total" msgpack:"tax_offset_total"`
	MarketValuePostTaxTotal decimal.Decimal `json:"market_value_post_tax_total" msgpack:"market_value_post_tax_total"`
	ReturnPercentPostTax    money.Ratio     `json:"return_percent_post_tax" msgpack:"return_percent_post_tax"`
}

// GrandTotals combines unrealized positions, realized sales, and cash
// into lifetime performance measured against the initial deposit.
type GrandTotals struct {
	TransactionShares       int64           `json:"transaction_shares" msgpack:"transaction_shares"`
	STCG                    decimal.Decimal `json:"stcg" msgpack:"stcg"`
	LTCG                    decimal.Decimal `json:"ltcg" msgpack:"ltcg"`
	CGTotal                 decimal.Decimal `json:"cg_total" msgpack:"cg_total"`
	MarketValuePreTax       decimal.Decimal `json:"market_value_pre_tax" msgpack:"market_value_pre_tax"`
	GainOrLossPreTaxPercent money.Ratio     `json:"gain_or_loss_pre_tax_percent" msgpack:"gain_or_loss_pre_tax_percent"`
	STCGTax                 decimal.Decimal `json:"stcg_tax" msgpack:"stcg_tax"`
	LTCGTax                 decimal.Decimal `json:"ltcg_tax" msgpack:"ltcg_tax"`
	CGTaxTotal              decimal.Decimal `json:"cg_tax_total" msgpack:"cg_tax_total"`
	TaxOffset               decimal.Decimal `json:"tax_offset" msgpack:"tax_offset"`
	MarketValuePostTax      decimal.Decimal `json:"market_value_post_tax" msgpack:"market_value_post_tax"`
	MarketValuePostTaxPct   money.Ratio     `json:"market_value_post_tax_percent" msgpack:"market_value_post_tax_percent"`
}

// Portfolio is the result of one valuation run: per-symbol aggregates
// for open positions, annotated sell history, cash balances, and the
// three tiers of rolled-up totals. Constructed fresh per call and
// immutable once returned.
type Portfolio struct {
	Symbols          map[string]*SymbolAggregate `json:"symbols" msgpack:"symbols"`
	SellTransactions []SellReport                `json:"sell_transactions" msgpack:"sell_transactions"`
	Cash             decimal.Decimal             `json:"cash" msgpack:"cash"`
	CashInitial      decimal.Decimal             `json:"cash_initial" msgpack:"cash_initial"`
	Unrealized       UnrealizedTotals            `json:"unrealized" msgpack:"unrealized"`
	Realized         RealizedTotals              `json:"realized" msgpack:"realized"`
	Totals           GrandTotals                 `json:"totals" msgpack:"totals"`
}

func newPortfolio(cash, cashInitial decimal.Decimal) *Portfolio {
	return &Portfolio{
		Symbols:          map[string]*SymbolAggregate{},
		SellTransactions: []SellReport{},
		Cash:             cash,
		CashInitial:      cashInitial,
	}
}
