package clientdata

import (
	"time"

	"github.com/rs/zerolog"
)

// PurgeJob removes long-expired cache entries on a schedule. Entries
// expired less than the retention window ago survive as a stale
// fallback for client requests.
type PurgeJob struct {
	repo      *Repository
	retention time.Duration
	log       zerolog.Logger
}

// NewPurgeJob creates a cache purge job
func NewPurgeJob(repo *Repository, retention time.Duration, log zerolog.Logger) *PurgeJob {
	return &PurgeJob{
		repo:      repo,
		retention: retention,
		log:       log.With().Str("job", "cache_purge").Logger(),
	}
}

// Name returns the job name
func (j *PurgeJob) Name() string {
	return "cache_purge"
}

// Run deletes entries past the retention window
func (j *PurgeJob) Run() error {
	n, err := j.repo.PurgeExpired(j.retention)
	if err != nil {
		return err
	}

	if n > 0 {
		j.log.Info().Int64("purged", n).Msg("Purged expired cache entries")
	}
	return nil
}
