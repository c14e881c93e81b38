// Package trading records buy and sell transactions and processes trades:
// cash/share validation, lot consumption on sale, and the realized
// capital-gain bookkeeping fixed at the moment of sale.
package trading

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind represents the transaction direction (BUY or SELL)
type Kind string

const (
	KindBuy  Kind = "BUY"
	KindSell Kind = "SELL"
)

// IsValid checks if the transaction kind is valid
func (k Kind) IsValid() bool {
	return k == KindBuy || k == KindSell
}

// KindFromString creates a Kind from string (case-insensitive)
func KindFromString(value string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "BUY":
		return KindBuy, nil
	case "SELL":
		return KindSell, nil
	default:
		return "", fmt.Errorf("invalid transaction kind: %q", value)
	}
}

// Transaction is an immutable record of one buy or sell event.
//
// For BUY rows, SharesOutstanding tracks how many shares of the lot have
// not yet been sold; sales decrement it. The realized gain fields
// (STCG, LTCG and their taxes) are only meaningful on SELL rows and are
// fixed when the sale is processed; taxes are signed, so a losing sale
// carries a negative tax representing a potential offset.
type Transaction struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Timestamp         time.Time       `json:"timestamp"`
	Kind              Kind            `json:"kind"`
	Symbol            string          `json:"symbol"`
	TransactionShares int64           `json:"transaction_shares"`
	SharesOutstanding int64           `json:"shares_outstanding"`
	ValuePerShare     decimal.Decimal `json:"value_per_share"`
	ValueTotal        decimal.Decimal `json:"value_total"`
	STCG              decimal.Decimal `json:"stcg"`
	LTCG              decimal.Decimal `json:"ltcg"`
	STCGTax           decimal.Decimal `json:"stcg_tax"`
	LTCGTax           decimal.Decimal `json:"ltcg_tax"`
}

// Validate validates transaction data and normalizes the symbol
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol cannot be empty")
	}

	if !t.Kind.IsValid() {
		return fmt.Errorf("invalid transaction kind: %q", t.Kind)
	}

	if t.TransactionShares <= 0 {
		return fmt.Errorf("transaction shares must be positive")
	}

	if t.ValuePerShare.IsNegative() {
		return fmt.Errorf("value per share cannot be negative")
	}

	if t.Kind == KindBuy && (t.SharesOutstanding < 0 || t.SharesOutstanding > t.TransactionShares) {
		return fmt.Errorf("shares outstanding %d outside [0, %d]", t.SharesOutstanding, t.TransactionShares)
	}

	// Normalize symbol
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))

	return nil
}

// IsOpenLot reports whether this is a BUY with shares still held.
func (t *Transaction) IsOpenLot() bool {
	return t.Kind == KindBuy && t.SharesOutstanding > 0
}
