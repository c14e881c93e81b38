package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection
	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{
		conn: conn,
		path: dbPath,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Begin starts a new transaction
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Migrate creates the schema if it does not exist. Statements are
// idempotent so the server can run them on every startup.
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id                TEXT PRIMARY KEY,
			cash              TEXT NOT NULL,
			cash_initial      TEXT NOT NULL,
			accounting_method TEXT NOT NULL DEFAULT 'FIFO',
			tax_loss_offsets  INTEGER NOT NULL DEFAULT 1,
			tax_rate_stcg     TEXT NOT NULL,
			tax_rate_ltcg     TEXT NOT NULL,
			created_at        TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL,
			timestamp          TEXT NOT NULL,
			kind               TEXT NOT NULL,
			symbol             TEXT NOT NULL,
			transaction_shares INTEGER NOT NULL,
			shares_outstanding INTEGER,
			value_per_share    TEXT NOT NULL,
			value_total        TEXT NOT NULL,
			stcg               TEXT,
			ltcg               TEXT,
			stcg_tax           TEXT,
			ltcg_tax           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_symbol ON transactions(user_id, symbol, kind)`,
		`CREATE TABLE IF NOT EXISTS listings (
			symbol         TEXT PRIMARY KEY,
			name           TEXT,
			price          TEXT,
			exchange       TEXT,
			exchange_short TEXT,
			listing_type   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS client_cache (
			source     TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (source, key)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
