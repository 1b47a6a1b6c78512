package jobs

import (
	"fmt"
	"gorm.io/gorm"
	"time"

	"goodturn-api/repositories"
)

// CacheCleanupJob periodically hard-deletes events whose cache expiry passed
// long ago. Expiry itself is only a soft filter on lookups; this job is the
// separate housekeeping that actually reclaims the rows.
type CacheCleanupJob struct {
	repo      *repositories.EventRepository
	retention time.Duration
	ticker    *time.Ticker
	done      chan bool
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(db *gorm.DB, interval, retention time.Duration) *CacheCleanupJob {
	return &CacheCleanupJob{
		repo:      repositories.NewEventRepository(db),
		retention: retention,
		ticker:    time.NewTicker(interval),
		done:      make(chan bool),
	}
}

// Start begins the cleanup job
func (j *CacheCleanupJob) Start() {
	fmt.Println("Cache cleanup job started")

	go func() {
		// Run immediately on start
		j.cleanup()

		// Then run on schedule
		for {
			select {
			case <-j.ticker.C:
				j.cleanup()
			case <-j.done:
				fmt.Println("Cache cleanup job stopped")
				return
			}
		}
	}()
}

// Stop stops the cleanup job
func (j *CacheCleanupJob) Stop() {
	j.ticker.Stop()
	j.done <- true
}

// cleanup performs the actual cleanup
func (j *CacheCleanupJob) cleanup() {
	cutoff := time.Now().Add(-j.retention)

	deleted, err := j.repo.DeleteExpiredBefore(cutoff)
	if err != nil {
		fmt.Printf("Error during cache cleanup: %v\n", err)
		return
	}

	if deleted > 0 {
		fmt.Printf("Cache cleanup removed %d expired events\n", deleted)
	}
}
