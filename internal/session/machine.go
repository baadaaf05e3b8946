package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/internal/index"
	"sectorindex/pkg/config"
	"sectorindex/pkg/logger"
)

// State classifies what the machine should be doing at a given moment.
type State int

const (
	// StateIdle means outside trading hours or a weekend day.
	StateIdle State = iota
	// StateCalculating means within trading hours on a trading day.
	StateCalculating
	// StateDayEndPending means trading has ended today and EOD capture
	// has not yet run.
	StateDayEndPending
	// StateDayEndDone means EOD capture completed for today.
	StateDayEndDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCalculating:
		return "CALCULATING"
	case StateDayEndPending:
		return "DAY_END_PENDING"
	case StateDayEndDone:
		return "DAY_END_DONE"
	default:
		return "UNKNOWN"
	}
}

// Machine is the trading-session state machine. On every scheduler tick it
// classifies the wall clock into exactly one action, drives the realtime
// calculator during the session, runs EOD capture once per trading day,
// and owns the BaselineSnapshot handoff between sessions.
//
// The machine is the only mutator of the baseline, and it mutates at
// exactly two points: cold-start bootstrap on the first-ever calculating
// tick, and the EOD carry-forward. It is designed for a single driving
// actor; Tick must not be invoked concurrently.
type Machine struct {
	trading    config.TradingConfig
	calculator *index.RealtimeCalculator
	market     contracts.MarketCapRepository
	indexes    contracts.IndexRepository
	baselines  contracts.BaselineRepository
	publisher  contracts.Publisher
	hooks      []DayEndHook
	logger     *logger.Logger

	baseline *contracts.BaselineSnapshot
	eodDone  string // date (YYYY-MM-DD) EOD capture last completed for
	state    State
}

// DayEndHook runs after a successful EOD capture (export, notification).
// Hook failures are logged but never roll back the capture.
type DayEndHook func(ctx context.Context, day time.Time, summaries []contracts.DailyIndexSummary) error

// NewMachine creates the session state machine.
func NewMachine(
	trading config.TradingConfig,
	calculator *index.RealtimeCalculator,
	market contracts.MarketCapRepository,
	indexes contracts.IndexRepository,
	baselines contracts.BaselineRepository,
	publisher contracts.Publisher,
	log *logger.Logger,
) *Machine {
	return &Machine{
		trading:    trading,
		calculator: calculator,
		market:     market,
		indexes:    indexes,
		baselines:  baselines,
		publisher:  publisher,
		logger:     log,
		state:      StateIdle,
	}
}

// AddDayEndHook registers a post-capture hook. Not safe to call after the
// machine has started ticking.
func (m *Machine) AddDayEndHook(hook DayEndHook) {
	m.hooks = append(m.hooks, hook)
}

// State returns the state reached by the last Tick.
func (m *Machine) State() State {
	return m.state
}

// Baseline exposes the live baseline for inspection.
func (m *Machine) Baseline() *contracts.BaselineSnapshot {
	return m.baseline
}

// Restore loads the persisted baseline so a restart mid-session resumes
// with the correct intraday reference instead of re-seeding. When the
// baseline store is empty but daily summaries exist, index levels are
// recovered from the latest close.
func (m *Machine) Restore(ctx context.Context) error {
	baseline, err := m.baselines.Load(ctx)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}

	recovered := false
	if baseline.Empty() {
		closes, err := m.indexes.LatestCloseValues(ctx)
		if err != nil {
			return fmt.Errorf("load latest close values: %w", err)
		}
		if len(closes) > 0 {
			baseline.IndexValues = closes
			recovered = true
		}
	}

	m.baseline = baseline
	switch {
	case recovered:
		m.logger.WithField("sectors", len(baseline.IndexValues)).
			Info("Baseline store empty, recovered index levels from latest close")
	case baseline.Empty():
		m.logger.Info("No persisted baseline found, will seed on first calculating tick")
	default:
		m.logger.WithFields(map[string]interface{}{
			"companies":   len(baseline.Caps),
			"sectors":     len(baseline.IndexValues),
			"captured_at": baseline.CapturedAt,
		}).Info("Restored baseline snapshot")
	}
	return nil
}

// Tick classifies "now" and performs the corresponding action. An error
// leaves all progress flags untouched so the next tick retries the same
// action (at-least-once semantics; downstream writes are idempotent by
// timestamp or by day).
func (m *Machine) Tick(ctx context.Context, now time.Time) error {
	state := m.Classify(now)
	m.state = state

	switch state {
	case StateIdle, StateDayEndDone:
		return nil
	case StateCalculating:
		return m.calculate(ctx, now)
	case StateDayEndPending:
		return m.dayEnd(ctx, now)
	default:
		return fmt.Errorf("unhandled session state %v", state)
	}
}

// Classify maps wall-clock time to a session state without side effects.
func (m *Machine) Classify(now time.Time) State {
	if m.trading.IsWeekend(now.Weekday()) {
		return StateIdle
	}

	minutes := now.Hour()*60 + now.Minute()
	start := m.trading.StartTime.Minutes()
	end := m.trading.EndTime.Minutes()

	switch {
	case minutes < start:
		return StateIdle
	case minutes < end:
		return StateCalculating
	case m.eodDone == dateKey(now):
		return StateDayEndDone
	default:
		return StateDayEndPending
	}
}

// calculate runs one intraday tick. The baseline is deliberately not
// replaced here: all intraday movements are measured against the single
// session baseline, not a rolling previous tick.
func (m *Machine) calculate(ctx context.Context, now time.Time) error {
	if m.baseline == nil {
		m.baseline = contracts.NewBaselineSnapshot()
	}
	coldStart := m.baseline.Empty()

	results, err := m.calculator.Calculate(ctx, now, m.baseline)
	if err != nil {
		if errors.Is(err, contracts.ErrNoMarketData) {
			m.logger.WithField("timestamp", now).Warn("No market data for tick, skipping")
			return nil
		}
		return fmt.Errorf("calculate tick: %w", err)
	}

	if err := m.calculator.StoreResults(ctx, results); err != nil {
		return fmt.Errorf("store tick results: %w", err)
	}

	if coldStart {
		if err := m.adoptBaseline(ctx, now, m.calculator.LastSnapshot(), results); err != nil {
			return err
		}
		m.logger.WithField("sectors", len(results)).Info("Bootstrapped baseline from first tick")
	}

	m.publish(ctx, results)
	return nil
}

// dayEnd captures the daily summary, then carries the baseline forward
// from the closing market state so tomorrow's session starts from today's
// close. Repeating the capture after a partial failure is safe: the
// summary insert is idempotent per sector and day.
func (m *Machine) dayEnd(ctx context.Context, now time.Time) error {
	bounds, err := m.indexes.DailyBounds(ctx, now)
	if err != nil {
		return fmt.Errorf("daily bounds: %w", err)
	}

	if len(bounds) == 0 {
		// No ticks recorded today (e.g. started after close); nothing
		// to capture and nothing to carry forward.
		m.logger.WithField("date", dateKey(now)).Warn("No index values recorded today, skipping EOD capture")
		m.eodDone = dateKey(now)
		m.state = StateDayEndDone
		return nil
	}

	if err := m.indexes.SaveDailySummaries(ctx, bounds); err != nil {
		return fmt.Errorf("save daily summaries: %w", err)
	}

	snapshot, err := m.market.GetMarketCaps(ctx, now)
	if err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return fmt.Errorf("closing snapshot at %s: %w", now.Format(time.RFC3339), contracts.ErrNoMarketData)
	}

	next := contracts.NewBaselineSnapshot()
	next.Caps = snapshot
	next.CapturedAt = now
	for code, value := range m.baselineIndexValues() {
		next.IndexValues[code] = value
	}
	for _, s := range bounds {
		next.IndexValues[s.SectorCode] = s.EndIndex
	}

	if err := m.baselines.Save(ctx, next); err != nil {
		return fmt.Errorf("persist baseline: %w", err)
	}

	m.baseline = next
	m.eodDone = dateKey(now)
	m.state = StateDayEndDone

	m.logger.WithFields(map[string]interface{}{
		"date":    dateKey(now),
		"sectors": len(bounds),
	}).Info("EOD capture completed, baseline carried forward")

	for _, hook := range m.hooks {
		if err := hook(ctx, now, bounds); err != nil {
			m.logger.WithError(err).Warn("Day-end hook failed")
		}
	}

	return nil
}

// adoptBaseline installs the first-ever baseline from the cold-start tick
// and persists it so a restart does not re-seed.
func (m *Machine) adoptBaseline(ctx context.Context, now time.Time, snapshot map[string]contracts.MarketCapRecord, results []contracts.SectorIndexValue) error {
	baseline := contracts.NewBaselineSnapshot()
	baseline.Caps = snapshot
	baseline.CapturedAt = now
	for _, v := range results {
		baseline.IndexValues[v.SectorCode] = v.Index
	}

	if err := m.baselines.Save(ctx, baseline); err != nil {
		return fmt.Errorf("persist bootstrap baseline: %w", err)
	}

	m.baseline = baseline
	return nil
}

func (m *Machine) baselineIndexValues() map[string]float64 {
	if m.baseline == nil {
		return nil
	}
	return m.baseline.IndexValues
}

// publish pushes the latest mapping to subscribers; failures never fail
// the tick.
func (m *Machine) publish(ctx context.Context, results []contracts.SectorIndexValue) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishIndices(ctx, results); err != nil {
		m.logger.WithError(err).Warn("Failed to publish latest indices")
	}
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
