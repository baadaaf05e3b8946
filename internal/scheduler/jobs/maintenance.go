package jobs

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

// RetentionJob prunes old tick rows nightly. Daily summaries are kept
// forever; only the per-tick series is bounded.
type RetentionJob struct {
	repo          contracts.IndexRepository
	retentionDays int
	logger        *logger.Logger
}

// NewRetentionJob creates the retention job.
func NewRetentionJob(repo contracts.IndexRepository, retentionDays int, log *logger.Logger) *RetentionJob {
	return &RetentionJob{repo: repo, retentionDays: retentionDays, logger: log}
}

// Name returns the job name.
func (j *RetentionJob) Name() string {
	return "index_retention"
}

// Schedule runs nightly at 23:30, well clear of trading hours.
func (j *RetentionJob) Schedule() string {
	return "0 30 23 * * *"
}

// Run deletes tick rows older than the retention window.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.repo.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune index values: %w", err)
	}

	if deleted > 0 {
		j.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format("2006-01-02"),
		}).Info("Pruned old index values")
	}
	return nil
}
