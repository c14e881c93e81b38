package market

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finsim/brokerage/internal/clients/fmp"
	"github.com/finsim/brokerage/internal/database"
)

// ListingsSource provides the full traded-securities list.
type ListingsSource interface {
	AvailableListings() ([]fmp.TradedListing, error)
}

// RefreshJob refreshes the listings reference table from the market data
// API. Runs on the configured schedule and once at startup when the
// table is empty.
type RefreshJob struct {
	db     *database.DB
	repo   *Repository
	source ListingsSource
	log    zerolog.Logger
}

// NewRefreshJob creates a listings refresh job
func NewRefreshJob(db *database.DB, repo *Repository, source ListingsSource, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		db:     db,
		repo:   repo,
		source: source,
		log:    log.With().Str("job", "listings_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "listings_refresh"
}

// Run fetches the traded list and replaces the listings table
func (j *RefreshJob) Run() error {
	traded, err := j.source.AvailableListings()
	if err != nil {
		return fmt.Errorf("failed to fetch listings: %w", err)
	}

	listings := make([]Listing, 0, len(traded))
	for _, t := range traded {
		listings = append(listings, Listing{
			Symbol:        t.Symbol,
			Name:          t.Name,
			Price:         t.Price,
			Exchange:      t.Exchange,
			ExchangeShort: t.ExchangeShortName,
			ListingType:   t.Type,
		})
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := j.repo.ReplaceAll(tx, listings); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listings refresh: %w", err)
	}

	j.log.Info().Int("count", len(listings)).Msg("Listings refreshed")
	return nil
}
