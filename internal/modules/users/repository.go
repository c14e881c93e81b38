package users

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrProfileNotFound is returned when no profile exists for a user id.
var ErrProfileNotFound = errors.New("profile not found")

// Repository handles profile database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new profile repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "users").Logger(),
	}
}

// Create inserts a new profile record
func (r *Repository) Create(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO profiles
		(id, cash, cash_initial, accounting_method, tax_loss_offsets,
		 tax_rate_stcg, tax_rate_ltcg, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		p.ID,
		p.Cash.StringFixed(2),
		p.CashInitial.StringFixed(2),
		string(p.AccountingMethod),
		boolToInt(p.TaxLossOffsets),
		p.TaxRateSTCG.StringFixed(2),
		p.TaxRateLTCG.StringFixed(2),
		p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	r.log.Info().Str("user_id", p.ID).Msg("Profile created")
	return nil
}

// Get retrieves a profile by user id
func (r *Repository) Get(userID string) (*Profile, error) {
	query := `
		SELECT id, cash, cash_initial, accounting_method, tax_loss_offsets,
		       tax_rate_stcg, tax_rate_ltcg, created_at
		FROM profiles WHERE id = ?
	`

	row := r.db.QueryRow(query, userID)
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// UpdateSettings updates the tax and accounting settings of a profile
func (r *Repository) UpdateSettings(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE profiles
		SET accounting_method = ?, tax_loss_offsets = ?, tax_rate_stcg = ?, tax_rate_ltcg = ?
		WHERE id = ?
	`

	res, err := r.db.Exec(query,
		string(p.AccountingMethod),
		boolToInt(p.TaxLossOffsets),
		p.TaxRateSTCG.StringFixed(2),
		p.TaxRateLTCG.StringFixed(2),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile settings: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// UpdateCashTx sets the cash balance inside an open transaction. Trades
// adjust cash and insert transaction rows atomically.
func (r *Repository) UpdateCashTx(tx *sql.Tx, userID string, cash decimal.Decimal) error {
	res, err := tx.Exec(`UPDATE profiles SET cash = ? WHERE id = ?`, cash.StringFixed(2), userID)
	if err != nil {
		return fmt.Errorf("failed to update cash balance: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// Helper methods

func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	var cash, cashInitial, rateSTCG, rateLTCG, method, createdAt string
	var offsets int

	err := row.Scan(&p.ID, &cash, &cashInitial, &method, &offsets, &rateSTCG, &rateLTCG, &createdAt)
	if err != nil {
		return nil, err
	}

	if p.Cash, err = decimal.NewFromString(cash); err != nil {
		return nil, fmt.Errorf("failed to parse cash: %w", err)
	}
	if p.CashInitial, err = decimal.NewFromString(cashInitial); err != nil {
		return nil, fmt.Errorf("failed to parse initial cash: %w", err)
	}
	if p.TaxRateSTCG, err = decimal.NewFromString(rateSTCG); err != nil {
		return nil, fmt.Errorf("failed to parse STCG rate: %w", err)
	}
	if p.TaxRateLTCG, err = decimal.NewFromString(rateLTCG); err != nil {
		return nil, fmt.Errorf("failed to parse LTCG rate: %w", err)
	}

	p.AccountingMethod = AccountingMethod(method)
	p.TaxLossOffsets = offsets != 0

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		p.CreatedAt = t
	}

	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
