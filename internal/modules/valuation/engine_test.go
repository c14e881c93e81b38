package valuation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/brokerage/internal/modules/trading"
	"github.com/finsim/brokerage/internal/modules/users"
)

type fakeTransactions struct {
	records []trading.Transaction
}

func (f *fakeTransactions) ListByUser(userID string) ([]trading.Transaction, error) {
	return f.records, nil
}

type fakePrices struct {
	prices map[string]decimal.Decimal
	calls  int
}

func (f *fakePrices) GetPrices(symbols []string) (map[string]decimal.Decimal, error) {
	f.calls++
	return f.prices, nil
}

type fakeProfiles struct {
	profile *users.Profile
}

func (f *fakeProfiles) Get(userID string) (*users.Profile, error) {
	return f.profile, nil
}

func testProfile(stcgPercent, ltcgPercent string, offsets bool) *users.Profile {
	return &users.Profile{
		ID:               "u1",
		Cash:             dec("10000.00"),
		CashInitial:      dec("10000.00"),
		AccountingMethod: users.AccountingFIFO,
		TaxLossOffsets:   offsets,
		TaxRateSTCG:      dec(stcgPercent),
		TaxRateLTCG:      dec(ltcgPercent),
	}
}

func newTestEngine(profile *users.Profile, records []trading.Transaction, prices map[string]decimal.Decimal) (*Engine, *fakePrices) {
	priceSource := &fakePrices{prices: prices}
	engine := NewEngine(
		&fakeTransactions{records: records},
		priceSource,
		&fakeProfiles{profile: profile},
	)
	return engine, priceSource
}

func sellRecord(id, symbol string, shares int64, valueTotal, stcg, ltcg, stcgTax, ltcgTax string) trading.Transaction {
	return trading.Transaction{
		ID:                id,
		UserID:            "u1",
		Timestamp:         time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Kind:              trading.KindSell,
		Symbol:            symbol,
		TransactionShares: shares,
		ValuePerShare:     dec(valueTotal).Div(decimal.NewFromInt(shares)),
		ValueTotal:        dec(valueTotal),
		STCG:              dec(stcg),
		LTCG:              dec(ltcg),
		STCGTax:           dec(stcgTax),
		LTCGTax:           dec(ltcgTax),
	}
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestComputePortfolio_NoTransactions(t *testing.T) {
	engine, prices := newTestEngine(testProfile("30", "15", true), nil, nil)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	assert.Empty(t, portfolio.Symbols)
	assert.Empty(t, portfolio.SellTransactions)
	assert.True(t, portfolio.Cash.Equal(dec("10000.00")), "cash carries through")
	assert.True(t, portfolio.CashInitial.Equal(dec("10000.00")))
	assert.Equal(t, 0, prices.calls, "no price lookup for an empty portfolio")

	// "No activity" must never read as a 0% return
	assert.False(t, portfolio.Realized.GainOrLossPreTaxPercent.Applicable)
	assert.False(t, portfolio.Realized.ReturnPercentPostTax.Applicable)
	assert.False(t, portfolio.Unrealized.GainOrLossPreTaxPercent.Applicable)
	assert.False(t, portfolio.Totals.GainOrLossPreTaxPercent.Applicable)
}

func TestComputePortfolio_SingleLongTermGain(t *testing.T) {
	records := []trading.Transaction{
		buyLot("TSLA", 10, 10, "100.00", 400*24*time.Hour, testNow),
	}
	prices := map[string]decimal.Decimal{"TSLA": dec("150.00")}
	engine, _ := newTestEngine(testProfile("30", "15", false), records, prices)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	require.Contains(t, portfolio.Symbols, "TSLA")
	tsla := portfolio.Symbols["TSLA"]
	assert.True(t, tsla.CostBasisTotal.Equal(dec("1000.00")))
	assert.True(t, tsla.LTCGUnrealized.Equal(dec("500.00")))
	assert.True(t, tsla.LTCGTaxUnrealized.Equal(dec("75.00")))
	assert.True(t, tsla.MarketValuePostTax.Equal(dec("1425.00")))

	ret, ok := tsla.ReturnPercentPostTax.Decimal()
	require.True(t, ok)
	assert.True(t, ret.Equal(dec("0.425")), "post-tax return = %s", ret)

	u := portfolio.Unrealized
	assert.True(t, u.MarketValueTotalPreTax.Equal(dec("1500.00")))
	assert.True(t, u.MarketValueInclCash.Equal(dec("11500.00")))
	assert.True(t, u.MarketValuePostTax.Equal(dec("1425.00")))
	assert.True(t, u.MarketValuePostTaxInclCash.Equal(dec("11425.00")))

	totals := portfolio.Totals
	assert.True(t, totals.CGTotal.Equal(dec("500.00")))
	assert.True(t, totals.MarketValuePreTax.Equal(dec("11500.00")), "mv incl cash plus zero realized CG")

	pct, ok := totals.GainOrLossPreTaxPercent.Decimal()
	require.True(t, ok)
	assert.True(t, pct.Equal(dec("0.05")), "lifetime return on initial stake = %s", pct)
}

func TestComputePortfolio_OffsetNetsAcrossLots(t *testing.T) {
	// A long-term winner and a short-term loser: the loser's banked
	// offset reduces the winner's tax drag at the portfolio tier.
	records := []trading.Transaction{
		buyLot("AAA", 10, 10, "100.00", 400*24*time.Hour, testNow),
		buyLot("BBB", 10, 10, "100.00", 10*24*time.Hour, testNow),
	}
	prices := map[string]decimal.Decimal{
		"AAA": dec("150.00"), // +500 LTCG, tax 75
		"BBB": dec("90.00"),  // -100 STCG, offset 30
	}
	engine, priceSource := newTestEngine(testProfile("30", "15", true), records, prices)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	assert.Equal(t, 1, priceSource.calls, "one batched lookup per valuation")

	u := portfolio.Unrealized
	assert.True(t, u.CGTotalTaxUnrealized.Equal(dec("75.00")))
	assert.True(t, u.CGTaxOffsetUnrealized.Equal(dec("30.00")))

	// 2400 pre-tax, net drag min(-75+30, 0) = -45
	assert.True(t, u.MarketValueTotalPreTax.Equal(dec("2400.00")))
	assert.True(t, u.MarketValuePostTax.Equal(dec("2355.00")), "post tax = %s", u.MarketValuePostTax)
}

func TestComputePortfolio_OffsetClampNeverLiftsValue(t *testing.T) {
	// Only losses: banked offsets exceed the (zero) tax, and the clamp
	// keeps post-tax value from rising above pre-tax value.
	records := []trading.Transaction{
		buyLot("BBB", 10, 10, "100.00", 10*24*time.Hour, testNow),
	}
	prices := map[string]decimal.Decimal{"BBB": dec("50.00")}
	engine, _ := newTestEngine(testProfile("30", "15", true), records, prices)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	u := portfolio.Unrealized
	assert.True(t, u.CGTaxOffsetUnrealized.Equal(dec("150.00")))
	assert.True(t, u.MarketValuePostTax.Equal(u.MarketValueTotalPreTax),
		"post-tax %s must not exceed pre-tax %s", u.MarketValuePostTax, u.MarketValueTotalPreTax)
	assert.True(t, portfolio.Totals.MarketValuePostTax.LessThanOrEqual(portfolio.Totals.MarketValuePreTax))
}

func TestComputePortfolio_CostBasisConservation(t *testing.T) {
	records := []trading.Transaction{
		buyLot("AAA", 10, 10, "100.00", 400*24*time.Hour, testNow),
		buyLot("AAA", 5, 3, "120.00", 50*24*time.Hour, testNow),
		buyLot("BBB", 8, 8, "25.50", 10*24*time.Hour, testNow),
		buyLot("CCC", 4, 0, "10.00", 10*24*time.Hour, testNow), // fully closed, excluded
	}
	prices := map[string]decimal.Decimal{
		"AAA": dec("110.00"),
		"BBB": dec("30.00"),
	}
	engine, _ := newTestEngine(testProfile("30", "15", true), records, prices)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	expected := decimal.Zero
	for _, r := range records {
		if r.IsOpenLot() {
			expected = expected.Add(decimal.NewFromInt(r.SharesOutstanding).Mul(r.ValuePerShare))
		}
	}

	summed := decimal.Zero
	for _, a := range portfolio.Symbols {
		summed = summed.Add(a.CostBasisTotal)
	}

	assert.True(t, summed.Equal(expected), "aggregated basis %s, lot sum %s", summed, expected)
	assert.True(t, portfolio.Unrealized.CostBasisTotal.Equal(expected))
	assert.NotContains(t, portfolio.Symbols, "CCC", "fully closed symbols are excluded")
}

func TestComputePortfolio_RealizedSale(t *testing.T) {
	records := []trading.Transaction{
		sellRecord("s1", "TSLA", 10, "1200.00", "200.00", "0.00", "60.00", "0.00"),
	}
	engine, _ := newTestEngine(testProfile("30", "15", true), records, nil)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	require.Len(t, portfolio.SellTransactions, 1)
	sale := portfolio.SellTransactions[0]

	assert.True(t, sale.CostBasisTotal.Equal(dec("1000.00")), "back-derived basis = %s", sale.CostBasisTotal)
	assert.True(t, sale.CGTotalRealized.Equal(dec("200.00")))

	pct, ok := sale.GainOrLossPreTaxPercent.Decimal()
	require.True(t, ok)
	assert.True(t, pct.Equal(dec("0.2")), "gain pct = %s", pct)

	// Recomputed at the current 30% STCG rate
	assert.True(t, sale.CGTotalTaxRealized.Equal(dec("60.00")))
	assert.True(t, sale.MarketValuePostTax.Equal(dec("1140.00")))
	assert.True(t, sale.TaxOffsetRealized.IsZero())

	r := portfolio.Realized
	assert.True(t, r.CostBasisTotal.Equal(dec("1000.00")))
	assert.True(t, r.MarketValuePreTaxTotal.Equal(dec("1200.00")))

	rPct, ok := r.GainOrLossPreTaxPercent.Decimal()
	require.True(t, ok)
	assert.True(t, rPct.Equal(dec("0.2")))

	// Grand totals re-add realized CG on top of market value incl cash
	assert.True(t, portfolio.Totals.MarketValuePreTax.Equal(dec("10200.00")))
}

func TestComputePortfolio_RealizedTaxUsesCurrentRates(t *testing.T) {
	// The sale was taxed at 30% when executed; the profile now says 10%.
	// Display recomputes from the current rate.
	records := []trading.Transaction{
		sellRecord("s1", "TSLA", 10, "1200.00", "200.00", "0.00", "60.00", "0.00"),
	}
	engine, _ := newTestEngine(testProfile("10", "15", true), records, nil)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	sale := portfolio.SellTransactions[0]
	assert.True(t, sale.CGTotalTaxRealized.Equal(dec("20.00")),
		"tax recomputed at current rate, got %s", sale.CGTotalTaxRealized)
	assert.True(t, sale.STCGTaxRealized.Equal(dec("60.00")),
		"per-bucket display tax still shows the stored value")
	assert.True(t, sale.MarketValuePostTax.Equal(dec("1180.00")))
}

func TestComputePortfolio_LosingSaleBanksOffset(t *testing.T) {
	// Stored signed taxes are negative for a losing sale
	records := []trading.Transaction{
		sellRecord("s1", "TSLA", 10, "800.00", "-200.00", "0.00", "-60.00", "0.00"),
	}
	engine, _ := newTestEngine(testProfile("30", "15", true), records, nil)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	sale := portfolio.SellTransactions[0]
	assert.True(t, sale.STCGTaxRealized.IsZero(), "display tax clamps at zero")
	assert.True(t, sale.CGTotalTaxRealized.IsZero())
	assert.True(t, sale.TaxOffsetRealized.Equal(dec("60.00")), "offset = %s", sale.TaxOffsetRealized)
	assert.True(t, sale.MarketValuePostTax.Equal(dec("800.00")))
}

func TestComputePortfolio_AllPositionsClosed(t *testing.T) {
	// Closed lots plus a sale: unrealized tier stays zeroed, realized
	// performance still aggregates.
	records := []trading.Transaction{
		buyLot("TSLA", 10, 0, "100.00", 400*24*time.Hour, testNow),
		sellRecord("s1", "TSLA", 10, "1200.00", "0.00", "200.00", "0.00", "30.00"),
	}
	engine, prices := newTestEngine(testProfile("30", "15", true), records, nil)

	portfolio, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	assert.Equal(t, 0, prices.calls, "no open symbols, no price lookup")
	assert.Empty(t, portfolio.Symbols)
	assert.True(t, portfolio.Unrealized.CostBasisTotal.IsZero())
	assert.False(t, portfolio.Unrealized.GainOrLossPreTaxPercent.Applicable)

	assert.True(t, portfolio.Realized.CGTotalRealized.Equal(dec("200.00")))
	assert.True(t, portfolio.Realized.GainOrLossPreTaxPercent.Applicable)

	pct, _ := portfolio.Totals.GainOrLossPreTaxPercent.Decimal()
	assert.True(t, pct.Equal(dec("0.02")), "lifetime pct = %s", pct)
}

func TestComputePortfolio_Idempotent(t *testing.T) {
	records := []trading.Transaction{
		buyLot("AAA", 10, 10, "100.00", 400*24*time.Hour, testNow),
		buyLot("BBB", 10, 10, "100.00", 10*24*time.Hour, testNow),
		sellRecord("s1", "CCC", 5, "600.00", "100.00", "0.00", "30.00", "0.00"),
	}
	prices := map[string]decimal.Decimal{
		"AAA": dec("150.00"),
		"BBB": dec("90.00"),
	}
	engine, _ := newTestEngine(testProfile("30", "15", true), records, prices)

	first, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)
	second, err := engine.ComputePortfolio("u1", testNow)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputePortfolio_MissingPrice(t *testing.T) {
	records := []trading.Transaction{
		buyLot("AAA", 10, 10, "100.00", 10*24*time.Hour, testNow),
	}
	engine, _ := newTestEngine(testProfile("30", "15", true), records, map[string]decimal.Decimal{})

	_, err := engine.ComputePortfolio("u1", testNow)
	var priceErr *MissingPriceError
	require.ErrorAs(t, err, &priceErr)
	assert.Equal(t, "AAA", priceErr.Symbol)
}

func TestComputePortfolio_DataIntegrityErrors(t *testing.T) {
	t.Run("sale with zero back-derived basis", func(t *testing.T) {
		records := []trading.Transaction{
			sellRecord("s1", "TSLA", 10, "200.00", "200.00", "0.00", "60.00", "0.00"),
		}
		engine, _ := newTestEngine(testProfile("30", "15", true), records, nil)

		_, err := engine.ComputePortfolio("u1", testNow)
		var integrityErr *DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
		assert.Equal(t, "s1", integrityErr.TransactionID)
	})

	t.Run("buy with outstanding above transaction shares", func(t *testing.T) {
		bad := buyLot("AAA", 5, 5, "100.00", 10*24*time.Hour, testNow)
		bad.SharesOutstanding = 6
		engine, _ := newTestEngine(testProfile("30", "15", true), []trading.Transaction{bad},
			map[string]decimal.Decimal{"AAA": dec("100.00")})

		_, err := engine.ComputePortfolio("u1", testNow)
		var integrityErr *DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
	})
}
