package valuation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/modules/trading"
	"github.com/finsim/brokerage/internal/modules/users"
	"github.com/finsim/brokerage/pkg/money"
)

// TransactionSource provides a user's complete transaction history.
type TransactionSource interface {
	ListByUser(userID string) ([]trading.Transaction, error)
}

// PriceSource provides current prices for a set of symbols in one call.
type PriceSource interface {
	GetPrices(symbols []string) (map[string]decimal.Decimal, error)
}

// ProfileSource provides the user's tax and cash profile.
type ProfileSource interface {
	Get(userID string) (*users.Profile, error)
}

// Engine computes portfolio valuations. It holds no state between
// calls; concurrent invocations are independent.
type Engine struct {
	transactions TransactionSource
	prices       PriceSource
	profiles     ProfileSource
}

// NewEngine creates a valuation engine
func NewEngine(transactions TransactionSource, prices PriceSource, profiles ProfileSource) *Engine {
	return &Engine{
		transactions: transactions,
		prices:       prices,
		profiles:     profiles,
	}
}

// ComputePortfolio values a user's portfolio as of now. The now argument
// drives short- versus long-term classification; with identical inputs
// and identical now the result is identical.
//
// A user with no transactions gets an empty portfolio carrying their
// cash balances, with every percent field not applicable. A user whose
// positions are all closed gets zeroed unrealized totals while realized
// sale performance still aggregates.
func (e *Engine) ComputePortfolio(userID string, now time.Time) (*Portfolio, error) {
	profile, err := e.profiles.Get(userID)
	if err != nil {
		return nil, err
	}
	rates := newTaxRates(profile)

	transactions, err := e.transactions.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	portfolio := newPortfolio(profile.Cash, profile.CashInitial)

	if len(transactions) == 0 {
		markEmpty(portfolio)
		return portfolio, nil
	}

	if err := checkIntegrity(transactions); err != nil {
		return nil, err
	}

	prices, err := e.openPositionPrices(transactions)
	if err != nil {
		return nil, err
	}

	for _, t := range transactions {
		switch t.Kind {
		case trading.KindBuy:
			if !t.IsOpenLot() {
				continue
			}
			aggregate, ok := portfolio.Symbols[t.Symbol]
			if !ok {
				aggregate = newSymbolAggregate(t.Symbol, prices[t.Symbol])
				portfolio.Symbols[t.Symbol] = aggregate
			}
			aggregate.addLot(classifyLot(t, aggregate.MarketValuePerShare, now, rates))

		case trading.KindSell:
			report, err := foldSale(t, rates, &portfolio.Realized)
			if err != nil {
				return nil, err
			}
			portfolio.SellTransactions = append(portfolio.SellTransactions, report)
		}
	}

	// Roll-up order matters: grand totals read the finished
	// unrealized and realized tiers.
	portfolio.Realized.finalize()
	rollUpUnrealized(portfolio)
	combineTotals(portfolio)

	return portfolio, nil
}

// checkIntegrity rejects BUY records whose shares outstanding fall
// outside [0, transaction_shares] before any aggregation begins.
func checkIntegrity(transactions []trading.Transaction) error {
	for _, t := range transactions {
		if t.Kind != trading.KindBuy {
			continue
		}
		if t.SharesOutstanding < 0 || t.SharesOutstanding > t.TransactionShares {
			return &DataIntegrityError{
				TransactionID: t.ID,
				Reason: fmt.Sprintf("shares outstanding %d outside [0, %d]",
					t.SharesOutstanding, t.TransactionShares),
			}
		}
	}
	return nil
}

// openPositionPrices batches one price lookup for every symbol with open
// shares. Every open symbol must come back with a positive price.
func (e *Engine) openPositionPrices(transactions []trading.Transaction) (map[string]decimal.Decimal, error) {
	seen := map[string]bool{}
	var symbols []string
	for _, t := range transactions {
		if t.IsOpenLot() && !seen[t.Symbol] {
			seen[t.Symbol] = true
			symbols = append(symbols, t.Symbol)
		}
	}

	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	sort.Strings(symbols)

	prices, err := e.prices.GetPrices(symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}

	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok || !price.IsPositive() {
			return nil, &MissingPriceError{Symbol: symbol}
		}
	}

	return prices, nil
}

func markEmpty(p *Portfolio) {
	p.Unrealized.GainOrLossPreTaxPercent = money.NotApplicable()
	p.Unrealized.ReturnPercentPostTax = money.NotApplicable()
	p.Realized.GainOrLossPreTaxPercent = money.NotApplicable()
	p.Realized.ReturnPercentPostTax = money.NotApplicable()
	p.Totals.GainOrLossPreTaxPercent = money.NotApplicable()
	p.Totals.MarketValuePostTaxPct = money.NotApplicable()
}
