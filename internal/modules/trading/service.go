package trading

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsim/brokerage/internal/database"
	"github.com/finsim/brokerage/internal/modules/users"
	"github.com/finsim/brokerage/pkg/money"
)

// QuoteSource provides current share prices for trade execution.
type QuoteSource interface {
	GetPrices(symbols []string) (map[string]decimal.Decimal, error)
}

// InsufficientCashError is returned when a buy costs more than the
// user's cash balance.
type InsufficientCashError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash: need %s, have %s",
		money.FormatUSD(e.Required), money.FormatUSD(e.Available))
}

// InsufficientSharesError is returned when a sell requests more shares
// than the user holds.
type InsufficientSharesError struct {
	Symbol    string
	Requested int64
	Owned     int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %d, own %d",
		e.Symbol, e.Requested, e.Owned)
}

// Service executes trades: it validates cash and share balances, records
// transactions, and on sales consumes open lots in the profile's
// accounting order while fixing the realized gain split.
type Service struct {
	db       *database.DB
	repo     *Repository
	profiles *users.Repository
	quotes   QuoteSource
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a new trading service
func NewService(db *database.DB, repo *Repository, profiles *users.Repository, quotes QuoteSource, log zerolog.Logger) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		profiles: profiles,
		quotes:   quotes,
		log:      log.With().Str("service", "trading").Logger(),
		now:      time.Now,
	}
}

// Buy purchases shares at the current market price. The BUY record and the
// cash debit commit atomically.
func (s *Service) Buy(userID, symbol string, shares int64) (*Transaction, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if shares <= 0 {
		return nil, fmt.Errorf("shares must be positive")
	}

	profile, err := s.profiles.Get(userID)
	if err != nil {
		return nil, err
	}

	price, err := s.currentPrice(symbol)
	if err != nil {
		return nil, err
	}

	cost := price.Mul(decimal.NewFromInt(shares)).Round(money.Two)
	if cost.GreaterThan(profile.Cash) {
		return nil, &InsufficientCashError{Required: cost, Available: profile.Cash}
	}

	t := &Transaction{
		ID:                uuid.New().String(),
		UserID:            userID,
		Timestamp:         s.now().UTC(),
		Kind:              KindBuy,
		Symbol:            symbol,
		TransactionShares: shares,
		SharesOutstanding: shares,
		ValuePerShare:     price,
		ValueTotal:        cost,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.CreateTx(tx, t); err != nil {
		return nil, err
	}
	if err := s.profiles.UpdateCashTx(tx, userID, profile.Cash.Sub(cost)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit buy: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", t.Symbol).
		Int64("shares", shares).
		Str("cost", cost.String()).
		Msg("Buy executed")

	return t, nil
}

// Sell sells shares at the current market price, consuming open lots in
// the profile's accounting order (FIFO or LIFO). Each consumed slice
// realizes a gain classified by the lot's age at the moment of sale;
// the signed short- and long-term taxes are fixed on the SELL record.
func (s *Service) Sell(userID, symbol string, shares int64) (*Transaction, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if shares <= 0 {
		return nil, fmt.Errorf("shares must be positive")
	}

	profile, err := s.profiles.Get(userID)
	if err != nil {
		return nil, err
	}

	owned, err := s.repo.TotalOpenShares(userID, symbol)
	if err != nil {
		return nil, err
	}
	if shares > owned {
		return nil, &InsufficientSharesError{Symbol: symbol, Requested: shares, Owned: owned}
	}

	lots, err := s.repo.OpenLots(userID, symbol)
	if err != nil {
		return nil, err
	}

	price, err := s.currentPrice(symbol)
	if err != nil {
		return nil, err
	}

	if profile.AccountingMethod == users.AccountingLIFO {
		reverse(lots)
	}

	saleTime := s.now().UTC()
	plan := consumeLots(lots, shares, price, saleTime)

	rateSTCG := money.RateFromPercent(profile.TaxRateSTCG)
	rateLTCG := money.RateFromPercent(profile.TaxRateLTCG)

	t := &Transaction{
		ID:                uuid.New().String(),
		UserID:            userID,
		Timestamp:         saleTime,
		Kind:              KindSell,
		Symbol:            symbol,
		TransactionShares: shares,
		ValuePerShare:     price,
		ValueTotal:        price.Mul(decimal.NewFromInt(shares)).Round(money.Two),
		STCG:              plan.stcg,
		LTCG:              plan.ltcg,
		STCGTax:           plan.stcg.Mul(rateSTCG).Round(money.Two),
		LTCGTax:           plan.ltcg.Mul(rateLTCG).Round(money.Two),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range plan.consumed {
		if err := s.repo.UpdateSharesOutstandingTx(tx, c.lotID, c.remaining); err != nil {
			return nil, err
		}
	}
	if err := s.repo.CreateTx(tx, t); err != nil {
		return nil, err
	}
	if err := s.profiles.UpdateCashTx(tx, userID, profile.Cash.Add(t.ValueTotal)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sell: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", t.Symbol).
		Int64("shares", shares).
		Str("proceeds", t.ValueTotal.String()).
		Str("stcg", t.STCG.String()).
		Str("ltcg", t.LTCG.String()).
		Msg("Sell executed")

	return t, nil
}

// History returns a user's most recent transactions
func (s *Service) History(userID string, limit int) ([]Transaction, error) {
	return s.repo.History(userID, limit)
}

// Helper methods

type lotConsumption struct {
	lotID     string
	remaining int64
}

type salePlan struct {
	consumed []lotConsumption
	stcg     decimal.Decimal
	ltcg     decimal.Decimal
}

// consumeLots walks the lots in order, taking shares from each until the
// sale is filled. A lot held for HoldingPeriodCutoff or less realizes a
// short-term gain; older lots realize long-term.
func consumeLots(lots []Transaction, shares int64, price decimal.Decimal, saleTime time.Time) salePlan {
	plan := salePlan{stcg: decimal.Zero, ltcg: decimal.Zero}
	remaining := shares

	for _, lot := range lots {
		if remaining == 0 {
			break
		}

		take := lot.SharesOutstanding
		if take > remaining {
			take = remaining
		}
		remaining -= take

		gain := price.Sub(lot.ValuePerShare).Mul(decimal.NewFromInt(take)).Round(money.Two)
		if saleTime.Sub(lot.Timestamp) <= users.HoldingPeriodCutoff {
			plan.stcg = plan.stcg.Add(gain)
		} else {
			plan.ltcg = plan.ltcg.Add(gain)
		}

		plan.consumed = append(plan.consumed, lotConsumption{
			lotID:     lot.ID,
			remaining: lot.SharesOutstanding - take,
		})
	}

	return plan
}

func (s *Service) currentPrice(symbol string) (decimal.Decimal, error) {
	prices, err := s.quotes.GetPrices([]string{symbol})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	price, ok := prices[symbol]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("no quote available for %s", symbol)
	}

	return price.Round(money.Two), nil
}

func reverse(lots []Transaction) {
	for i, j := 0, len(lots)-1; i < j; i, j = i+1, j-1 {
		lots[i], lots[j] = lots[j], lots[i]
	}
}
