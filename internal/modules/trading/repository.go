package trading

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles transaction database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "trading").Logger(),
	}
}

const insertQuery = `
	INSERT INTO transactions
	(id, user_id, timestamp, kind, symbol, transaction_shares, shares_outstanding,
	 value_per_share, value_total, stcg, ltcg, stcg_tax, ltcg_tax)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateTx inserts a new transaction record inside an open database
// transaction. Trades always write together with a cash update, so there
// is no standalone insert.
func (r *Repository) CreateTx(tx *sql.Tx, t *Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	_, err := tx.Exec(insertQuery, insertArgs(t)...)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.logCreated(t)
	return nil
}

func insertArgs(t *Transaction) []interface{} {
	args := []interface{}{
		t.ID,
		t.UserID,
		t.Timestamp.UTC().Format(time.RFC3339),
		string(t.Kind),
		strings.ToUpper(strings.TrimSpace(t.Symbol)),
		t.TransactionShares,
	}

	if t.Kind == KindBuy {
		args = append(args, t.SharesOutstanding,
			t.ValuePerShare.StringFixed(2), t.ValueTotal.StringFixed(2),
			nil, nil, nil, nil)
	} else {
		args = append(args, nil,
			t.ValuePerShare.StringFixed(2), t.ValueTotal.StringFixed(2),
			t.STCG.StringFixed(2), t.LTCG.StringFixed(2),
			t.STCGTax.StringFixed(2), t.LTCGTax.StringFixed(2))
	}

	return args
}

func (r *Repository) logCreated(t *Transaction) {
	r.log.Info().
		Str("user_id", t.UserID).
		Str("symbol", t.Symbol).
		Str("kind", string(t.Kind)).
		Int64("shares", t.TransactionShares).
		Msg("Transaction created")
}

const selectColumns = `
	SELECT id, user_id, timestamp, kind, symbol, transaction_shares, shares_outstanding,
	       value_per_share, value_total, stcg, ltcg, stcg_tax, ltcg_tax
	FROM transactions
`

// ListByUser retrieves all transactions for a user, oldest first
func (r *Repository) ListByUser(userID string) ([]Transaction, error) {
	rows, err := r.db.Query(selectColumns+` WHERE user_id = ? ORDER BY timestamp ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// History retrieves a user's transactions, most recent first
func (r *Repository) History(userID string, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(
		selectColumns+` WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// OpenLots retrieves BUY transactions with shares still outstanding for a
// symbol, oldest first. The caller reverses the slice for LIFO consumption.
func (r *Repository) OpenLots(userID, symbol string) ([]Transaction, error) {
	rows, err := r.db.Query(
		selectColumns+`
		WHERE user_id = ? AND symbol = ? AND kind = 'BUY' AND shares_outstanding > 0
		ORDER BY timestamp ASC, id ASC`,
		userID, strings.ToUpper(symbol),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get open lots: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// TotalOpenShares sums shares outstanding across a symbol's open lots
func (r *Repository) TotalOpenShares(userID, symbol string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(shares_outstanding), 0) FROM transactions
		WHERE user_id = ? AND symbol = ? AND kind = 'BUY'
	`

	var total int64
	err := r.db.QueryRow(query, userID, strings.ToUpper(symbol)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum open shares: %w", err)
	}

	return total, nil
}

// UpdateSharesOutstandingTx sets a lot's remaining share count inside an
// open database transaction
func (r *Repository) UpdateSharesOutstandingTx(tx *sql.Tx, id string, sharesOutstanding int64) error {
	res, err := tx.Exec(`UPDATE transactions SET shares_outstanding = ? WHERE id = ?`, sharesOutstanding, id)
	if err != nil {
		return fmt.Errorf("failed to update shares outstanding: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}

	return nil
}

// Helper methods

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

func scanTransaction(rows *sql.Rows) (Transaction, error) {
	var t Transaction
	var timestamp, kind, valuePerShare, valueTotal string
	var sharesOutstanding sql.NullInt64
	var stcg, ltcg, stcgTax, ltcgTax sql.NullString

	err := rows.Scan(
		&t.ID,
		&t.UserID,
		&timestamp,
		&kind,
		&t.Symbol,
		&t.TransactionShares,
		&sharesOutstanding,
		&valuePerShare,
		&valueTotal,
		&stcg,
		&ltcg,
		&stcgTax,
		&ltcgTax,
	)
	if err != nil {
		return t, err
	}

	if t.Timestamp, err = time.Parse(time.RFC3339, timestamp); err != nil {
		return t, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	t.Kind = Kind(kind)
	t.SharesOutstanding = sharesOutstanding.Int64

	if t.ValuePerShare, err = decimal.NewFromString(valuePerShare); err != nil {
		return t, fmt.Errorf("failed to parse value per share: %w", err)
	}
	if t.ValueTotal, err = decimal.NewFromString(valueTotal); err != nil {
		return t, fmt.Errorf("failed to parse value total: %w", err)
	}

	if t.STCG, err = nullDecimal(stcg); err != nil {
		return t, err
	}
	if t.LTCG, err = nullDecimal(ltcg); err != nil {
		return t, err
	}
	if t.STCGTax, err = nullDecimal(stcgTax); err != nil {
		return t, err
	}
	if t.LTCGTax, err = nullDecimal(ltcgTax); err != nil {
		return t, err
	}

	return t, nil
}

func nullDecimal(s sql.NullString) (decimal.Decimal, error) {
	if !s.Valid {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse decimal column: %w", err)
	}

	return d, nil
}
