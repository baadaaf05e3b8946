package jobs

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/sectors"
	"sectorindex/pkg/logger"
)

// SectorRefreshJob refreshes the sector membership cache on its own
// cadence, independent of the calculation interval.
type SectorRefreshJob struct {
	cache    *sectors.Cache
	interval time.Duration
	logger   *logger.Logger
}

// NewSectorRefreshJob creates the refresh job.
func NewSectorRefreshJob(cache *sectors.Cache, interval time.Duration, log *logger.Logger) *SectorRefreshJob {
	return &SectorRefreshJob{cache: cache, interval: interval, logger: log}
}

// Name returns the job name.
func (j *SectorRefreshJob) Name() string {
	return "sector_refresh"
}

// Schedule returns the cron schedule derived from the refresh interval.
func (j *SectorRefreshJob) Schedule() string {
	return "@every " + j.interval.String()
}

// Run refreshes the cache.
func (j *SectorRefreshJob) Run(ctx context.Context) error {
	if err := j.cache.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh sector cache: %w", err)
	}
	return nil
}
