package jobs

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/session"
	"sectorindex/pkg/logger"
)

// CalculationTickJob drives the session state machine at the configured
// calculation cadence. All session decisions (idle, calculate, EOD) live
// in the machine; this job only supplies the clock.
type CalculationTickJob struct {
	machine  *session.Machine
	interval time.Duration
	logger   *logger.Logger
}

// NewCalculationTickJob creates the tick job.
func NewCalculationTickJob(machine *session.Machine, interval time.Duration, log *logger.Logger) *CalculationTickJob {
	return &CalculationTickJob{machine: machine, interval: interval, logger: log}
}

// Name returns the job name.
func (j *CalculationTickJob) Name() string {
	return "calculation_tick"
}

// Schedule returns the cron schedule derived from the calculation
// interval.
func (j *CalculationTickJob) Schedule() string {
	return "@every " + j.interval.String()
}

// Run performs one session tick.
func (j *CalculationTickJob) Run(ctx context.Context) error {
	now := time.Now()
	if err := j.machine.Tick(ctx, now); err != nil {
		return fmt.Errorf("session tick: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"state":     j.machine.State().String(),
		"timestamp": now.Truncate(time.Minute),
	}).Debug("Session tick completed")

	return nil
}
