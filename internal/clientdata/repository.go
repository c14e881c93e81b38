// Package clientdata provides persistent caching for external API client
// responses. Payloads are stored as JSON blobs with expiration timestamps
// so clients can serve fresh data cache-first and fall back to stale data
// when an upstream API is unavailable.
package clientdata

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository provides cache operations for client data.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store saves data under (source, key) with expiration = now + ttl.
func (r *Repository) Store(source, key string, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO client_cache (source, key, data, expires_at) VALUES (?, ?, ?, ?)`,
		source, key, string(jsonData), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry for %s: %w", source, err)
	}

	return nil
}

// GetIfFresh returns data only if expires_at > now.
// Returns nil, nil if the key doesn't exist or the data has expired.
// Use GetStale to retrieve expired data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(source, key string) (json.RawMessage, error) {
	return r.get(source, key, true)
}

// GetStale returns data regardless of expiration, or nil, nil if absent.
func (r *Repository) GetStale(source, key string) (json.RawMessage, error) {
	return r.get(source, key, false)
}

func (r *Repository) get(source, key string, freshOnly bool) (json.RawMessage, error) {
	query := `SELECT data FROM client_cache WHERE source = ? AND key = ?`
	args := []interface{}{source, key}
	if freshOnly {
		query += ` AND expires_at > ?`
		args = append(args, time.Now().Unix())
	}

	var data string
	err := r.db.QueryRow(query, args...).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry for %s: %w", source, err)
	}

	return json.RawMessage(data), nil
}

// PurgeExpired deletes entries whose expiration passed more than the
// retention window ago. Recently-expired entries are kept so they remain
// available as a stale fallback.
func (r *Repository) PurgeExpired(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()

	res, err := r.db.Exec(`DELETE FROM client_cache WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}
