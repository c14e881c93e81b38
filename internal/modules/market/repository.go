package market

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const searchLimit = 5

// Repository handles listings database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new listings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "market").Logger(),
	}
}

// ReplaceAll upserts the full listings table in one transaction
func (r *Repository) ReplaceAll(tx *sql.Tx, listings []Listing) error {
	stmt, err := tx.Prepare(`
		INSERT INTO listings (symbol, name, price, exchange, exchange_short, listing_type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			exchange = excluded.exchange,
			exchange_short = excluded.exchange_short,
			listing_type = excluded.listing_type
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare listings upsert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		if strings.TrimSpace(l.Symbol) == "" {
			continue
		}
		_, err := stmt.Exec(
			strings.ToUpper(l.Symbol),
			l.Name,
			l.Price.String(),
			l.Exchange,
			l.ExchangeShort,
			l.ListingType,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert listing %s: %w", l.Symbol, err)
		}
	}

	return nil
}

// Exists reports whether a symbol is present in the listings table
func (r *Repository) Exists(symbol string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM listings WHERE symbol = ?`, strings.ToUpper(symbol)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check listing: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of listings stored
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// Search finds listings matching a query, best matches first. Short
// queries match symbols; longer queries also match company names. The
// relevance score favors results whose length is closest to the query.
func (r *Repository) Search(query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	pattern := "%" + query + "%"

	var rows *sql.Rows
	var err error
	if len(query) < 5 {
		rows, err = r.db.Query(`
			SELECT symbol, name, exchange_short FROM listings
			WHERE symbol LIKE ? COLLATE NOCASE
			ORDER BY ABS(LENGTH(symbol) - ?), LENGTH(symbol)
			LIMIT ?`,
			pattern, len(query), searchLimit,
		)
	} else {
		rows, err = r.db.Query(`
			SELECT symbol, name, exchange_short FROM listings
			WHERE name LIKE ? COLLATE NOCASE OR symbol LIKE ? COLLATE NOCASE
			ORDER BY
				CASE WHEN name LIKE ? COLLATE NOCASE
					THEN ABS(LENGTH(name) - ?)
					ELSE ABS(LENGTH(symbol) - ?)
				END,
				LENGTH(symbol), LENGTH(name)
			LIMIT ?`,
			pattern, pattern, pattern, len(query), len(query), searchLimit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var res SearchResult
		var name, exchangeShort sql.NullString
		if err := rows.Scan(&res.Symbol, &name, &exchangeShort); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		res.Name = name.String
		res.ExchangeShort = exchangeShort.String
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return results, nil
}

// Get retrieves a single listing by symbol
func (r *Repository) Get(symbol string) (*Listing, error) {
	row := r.db.QueryRow(`
		SELECT symbol, name, price, exchange, exchange_short, listing_type
		FROM listings WHERE symbol = ?`,
		strings.ToUpper(symbol),
	)

	var l Listing
	var name, price, exchange, exchangeShort, listingType sql.NullString
	err := row.Scan(&l.Symbol, &name, &price, &exchange, &exchangeShort, &listingType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	l.Name = name.String
	l.Exchange = exchange.String
	l.ExchangeShort = exchangeShort.String
	l.ListingType = listingType.String
	if price.Valid {
		if d, err := decimal.NewFromString(price.String); err == nil {
			l.Price = d
		}
	}

	return &l, nil
}
