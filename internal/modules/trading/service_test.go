package trading

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/brokerage/internal/database"
	"github.com/finsim/brokerage/internal/modules/users"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeQuotes struct {
	prices map[string]decimal.Decimal
}

func (f *fakeQuotes) GetPrices(symbols []string) (map[string]decimal.Decimal, error) {
	return f.prices, nil
}

type testEnv struct {
	db       *database.DB
	service  *Service
	repo     *Repository
	profiles *users.Repository
	quotes   *fakeQuotes
	clock    time.Time
}

func newTestEnv(t *testing.T, method users.AccountingMethod) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	profiles := users.NewRepository(db.Conn(), log)
	repo := NewRepository(db.Conn(), log)
	quotes := &fakeQuotes{prices: map[string]decimal.Decimal{}}
	service := NewService(db, repo, profiles, quotes, log)

	// Timestamps persist at second resolution, so each trade gets a
	// distinct second to keep lot ordering deterministic.
	env := &testEnv{db: db, service: service, repo: repo, profiles: profiles, quotes: quotes,
		clock: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	service.now = func() time.Time {
		env.clock = env.clock.Add(time.Second)
		return env.clock
	}

	require.NoError(t, profiles.Create(&users.Profile{
		ID:               "u1",
		Cash:             dec("10000.00"),
		CashInitial:      dec("10000.00"),
		AccountingMethod: method,
		TaxLossOffsets:   true,
		TaxRateSTCG:      dec("30"),
		TaxRateLTCG:      dec("15"),
	}))

	return env
}

func (e *testEnv) setPrice(symbol, price string) {
	e.quotes.prices[symbol] = dec(price)
}

func (e *testEnv) cash(t *testing.T) decimal.Decimal {
	t.Helper()
	profile, err := e.profiles.Get("u1")
	require.NoError(t, err)
	return profile.Cash
}

func TestService_Buy(t *testing.T) {
	env := newTestEnv(t, users.AccountingFIFO)
	env.setPrice("TSLA", "150.00")

	tx, err := env.service.Buy("u1", "tsla", 10)
	require.NoError(t, err)

	assert.Equal(t, "TSLA", tx.Symbol)
	assert.Equal(t, KindBuy, tx.Kind)
	assert.Equal(t, int64(10), tx.TransactionShares)
	assert.Equal(t, int64(10), tx.SharesOutstanding)
	assert.True(t, tx.ValueTotal.Equal(dec("1500.00")))

	assert.True(t, env.cash(t).Equal(dec("8500.00")), "cash = %s", env.cash(t))

	lots, err := env.repo.OpenLots("u1", "TSLA")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, int64(10), lots[0].SharesOutstanding)
}

func TestService_Buy_InsufficientCash(t *testing.T) {
	env := newTestEnv(t, users.AccountingFIFO)
	env.setPrice("TSLA", "150.00")

	_, err := env.service.Buy("u1", "TSLA", 100)

	var cashErr *InsufficientCashError
	require.ErrorAs(t, err, &cashErr)
	assert.True(t, cashErr.Required.Equal(dec("15000.00")))
	assert.True(t, cashErr.Available.Equal(dec("10000.00")))

	assert.True(t, env.cash(t).Equal(dec("10000.00")), "failed buy must not touch cash")
}

func TestService_Sell_InsufficientShares(t *testing.T) {
	env := newTestEnv(t, users.AccountingFIFO)
	env.setPrice("TSLA", "150.00")

	_, err := env.service.Buy("u1", "TSLA", 5)
	require.NoError(t, err)

	_, err = env.service.Sell("u1", "TSLA", 10)

	var sharesErr *InsufficientSharesError
	require.ErrorAs(t, err, &sharesErr)
	assert.Equal(t, int64(10), sharesErr.Requested)
	assert.Equal(t, int64(5), sharesErr.Owned)
}

func TestService_Sell_ConsumesLotsAndCreditsCash(t *testing.T) {
	env := newTestEnv(t, users.AccountingFIFO)
	env.setPrice("TSLA", "100.00")

	_, err := env.service.Buy("u1", "TSLA", 10)
	require.NoError(t, err)

	env.setPrice("TSLA", "120.00")
	sale, err := env.service.Sell("u1", "TSLA", 4)
	require.NoError(t, err)

	assert.Equal(t, KindSell, sale.Kind)
	assert.True(t, sale.ValueTotal.Equal(dec("480.00")))

	// Gain 4 * (120 - 100) = 80, short-term at 30%
	assert.True(t, sale.STCG.Equal(dec("80.00")), "STCG = %s", sale.STCG)
	assert.True(t, sale.LTCG.IsZero())
	assert.True(t, sale.STCGTax.Equal(dec("24.00")), "STCG tax = %s", sale.STCGTax)

	lots, err := env.repo.OpenLots("u1", "TSLA")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, int64(6), lots[0].SharesOutstanding)

	owned, err := env.repo.TotalOpenShares("u1", "TSLA")
	require.NoError(t, err)
	assert.Equal(t, int64(6), owned)

	// 10000 - 1000 + 480
	assert.True(t, env.cash(t).Equal(dec("9480.00")), "cash = %s", env.cash(t))
}

func TestService_Sell_NegativeGainStoresSignedTax(t *testing.T) {
	env := newTestEnv(t, users.AccountingFIFO)
	env.setPrice("TSLA", "100.00")

	_, err := env.service.Buy("u1", "TSLA", 10)
	require.NoError(t, err)

	env.setPrice("TSLA", "80.00")
	sale, err := env.service.Sell("u1", "TSLA", 10)
	require.NoError(t, err)

	assert.True(t, sale.STCG.Equal(dec("-200.00")))
	assert.True(t, sale.STCGTax.Equal(dec("-60.00")), "losing sale carries negative tax, got %s", sale.STCGTax)
}

func TestConsumeLots_Ordering(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	oldLot := Transaction{
		ID: "old", Kind: KindBuy, Symbol: "TSLA",
		Timestamp:         now.Add(-400 * 24 * time.Hour),
		TransactionShares: 10, SharesOutstanding: 10,
		ValuePerShare: dec("100.00"),
	}
	newLot := Transaction{
		ID: "new", Kind: KindBuy, Symbol: "TSLA",
		Timestamp:         now.Add(-10 * 24 * time.Hour),
		TransactionShares: 10, SharesOutstanding: 10,
		ValuePerShare: dec("200.00"),
	}

	t.Run("FIFO consumes the oldest lot first", func(t *testing.T) {
		plan := consumeLots([]Transaction{oldLot, newLot}, 10, dec("250.00"), now)

		require.Len(t, plan.consumed, 1)
		assert.Equal(t, "old", plan.consumed[0].lotID)
		assert.Equal(t, int64(0), plan.consumed[0].remaining)

		// 10 * (250 - 100), held over a year
		assert.True(t, plan.ltcg.Equal(dec("1500.00")), "LTCG = %s", plan.ltcg)
		assert.True(t, plan.stcg.IsZero())
	})

	t.Run("LIFO consumes the newest lot first", func(t *testing.T) {
		plan := consumeLots([]Transaction{newLot, oldLot}, 10, dec("250.00"), now)

		require.Len(t, plan.consumed, 1)
		assert.Equal(t, "new", plan.consumed[0].lotID)

		// 10 * (250 - 200), held under a year
		assert.True(t, plan.stcg.Equal(dec("500.00")), "STCG = %s", plan.stcg)
		assert.True(t, plan.ltcg.IsZero())
	})

	t.Run("a fill spanning lots splits the gain by term", func(t *testing.T) {
		plan := consumeLots([]Transaction{oldLot, newLot}, 15, dec("250.00"), now)

		require.Len(t, plan.consumed, 2)
		assert.Equal(t, int64(0), plan.consumed[0].remaining)
		assert.Equal(t, int64(5), plan.consumed[1].remaining)

		assert.True(t, plan.ltcg.Equal(dec("1500.00")))
		assert.True(t, plan.stcg.Equal(dec("250.00")))
	})
}

func TestService_Sell_LIFO(t *testing.T) {
	env := newTestEnv(t, users.AccountingLIFO)

	env.setPrice("TSLA", "100.00")
	_, err := env.service.Buy("u1", "TSLA", 10)
	require.NoError(t, err)

	env.setPrice("TSLA", "200.00")
	_, err = env.service.Buy("u1", "TSLA", 10)
	require.NoError(t, err)

	env.setPrice("TSLA", "250.00")
	sale, err := env.service.Sell("u1", "TSLA", 10)
	require.NoError(t, err)

	// LIFO sells the $200 lot: gain 10 * 50 = 500
	assert.True(t, sale.STCG.Equal(dec("500.00")), "STCG = %s", sale.STCG)

	lots, err := env.repo.OpenLots("u1", "TSLA")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].ValuePerShare.Equal(dec("100.00")), "the oldest lot survives")
	assert.Equal(t, int64(10), lots[0].SharesOutstanding)
}
