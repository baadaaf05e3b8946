package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectorindex/internal/contracts"
	"sectorindex/internal/index"
	"sectorindex/internal/sectors"
	"sectorindex/pkg/config"
	"sectorindex/pkg/logger"
)

// 2026-08-24 is a Monday; weekend is Friday/Saturday.
var (
	monday   = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	friday   = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func testTrading() config.TradingConfig {
	return config.TradingConfig{
		StartTime:   config.ClockTime{Hour: 10, Minute: 0},
		EndTime:     config.ClockTime{Hour: 14, Minute: 31},
		WeekendDays: map[time.Weekday]bool{time.Friday: true, time.Saturday: true},
	}
}

type fakeMarket struct {
	caps map[string]contracts.MarketCapRecord
	err  error
}

func (f *fakeMarket) GetMarketCaps(_ context.Context, _ time.Time) (map[string]contracts.MarketCapRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]contracts.MarketCapRecord, len(f.caps))
	for k, v := range f.caps {
		out[k] = v
	}
	return out, nil
}

type fakeSectorRepo struct {
	table *contracts.SectorTable
}

func (f *fakeSectorRepo) FetchAll(_ context.Context) (*contracts.SectorTable, error) {
	return f.table, nil
}

type fakeIndexRepo struct {
	saved          [][]contracts.SectorIndexValue
	bounds         []contracts.DailyIndexSummary
	summariesSaved int
	saveSummaryErr error
	closes         map[string]float64
	latestCloseErr error
}

func (f *fakeIndexRepo) SaveIndexValues(_ context.Context, values []contracts.SectorIndexValue) error {
	f.saved = append(f.saved, values)
	return nil
}

func (f *fakeIndexRepo) DailyBounds(_ context.Context, _ time.Time) ([]contracts.DailyIndexSummary, error) {
	return f.bounds, nil
}

func (f *fakeIndexRepo) SaveDailySummaries(_ context.Context, _ []contracts.DailyIndexSummary) error {
	if f.saveSummaryErr != nil {
		return f.saveSummaryErr
	}
	f.summariesSaved++
	return nil
}

func (f *fakeIndexRepo) LatestCloseValues(_ context.Context) (map[string]float64, error) {
	if f.latestCloseErr != nil {
		return nil, f.latestCloseErr
	}
	return f.closes, nil
}

func (f *fakeIndexRepo) History(_ context.Context, _ string, _, _ time.Time) ([]contracts.SectorIndexValue, error) {
	return nil, nil
}

func (f *fakeIndexRepo) PruneBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeBaselines struct {
	stored  *contracts.BaselineSnapshot
	saves   int
	saveErr error
}

func (f *fakeBaselines) Load(_ context.Context) (*contracts.BaselineSnapshot, error) {
	if f.stored == nil {
		return contracts.NewBaselineSnapshot(), nil
	}
	return f.stored, nil
}

func (f *fakeBaselines) Save(_ context.Context, b *contracts.BaselineSnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.stored = b
	f.saves++
	return nil
}

type fakePublisher struct {
	published [][]contracts.SectorIndexValue
}

func (f *fakePublisher) PublishIndices(_ context.Context, values []contracts.SectorIndexValue) error {
	f.published = append(f.published, values)
	return nil
}

func sessionTable() *contracts.SectorTable {
	return &contracts.SectorTable{
		Sectors: map[string]contracts.SectorInfo{
			"BANK": {Code: "BANK", Name: "Bank", Active: true},
		},
		Members: map[string][]string{
			"BANK": {"ABBANK", "BRACBANK"},
		},
	}
}

func sessionCaps(ab, brac float64) map[string]contracts.MarketCapRecord {
	return map[string]contracts.MarketCapRecord{
		"ABBANK":   {Company: "ABBANK", FreeFloatMCap: ab},
		"BRACBANK": {Company: "BRACBANK", FreeFloatMCap: brac},
	}
}

type fixture struct {
	machine   *Machine
	market    *fakeMarket
	indexes   *fakeIndexRepo
	baselines *fakeBaselines
	publisher *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	market := &fakeMarket{caps: sessionCaps(200, 100)}
	indexes := &fakeIndexRepo{}
	baselines := &fakeBaselines{}
	publisher := &fakePublisher{}

	log := logger.Nop()
	cache := sectors.NewCache(&fakeSectorRepo{table: sessionTable()}, log)
	require.NoError(t, cache.Refresh(context.Background()))

	engine := index.NewEngine(100.0, log)
	calculator := index.NewRealtimeCalculator(engine, market, cache, indexes, log)
	machine := NewMachine(testTrading(), calculator, market, indexes, baselines, publisher, log)

	return &fixture{
		machine:   machine,
		market:    market,
		indexes:   indexes,
		baselines: baselines,
		publisher: publisher,
	}
}

func TestMachine_Classify(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		now     time.Time
		eodDone string
		want    State
	}{
		{"weekend friday", at(friday, 11, 0), "", StateIdle},
		{"weekend saturday", at(saturday, 11, 0), "", StateIdle},
		{"before open", at(monday, 9, 59), "", StateIdle},
		{"at open", at(monday, 10, 0), "", StateCalculating},
		{"mid session", at(monday, 12, 30), "", StateCalculating},
		{"last minute", at(monday, 14, 30), "", StateCalculating},
		{"at close", at(monday, 14, 31), "", StateDayEndPending},
		{"evening pending", at(monday, 20, 0), "", StateDayEndPending},
		{"evening done", at(monday, 20, 0), "2026-08-24", StateDayEndDone},
		{"next trading day resets", at(monday.AddDate(0, 0, 1), 11, 0), "2026-08-24", StateCalculating},
		{"next evening pending again", at(monday.AddDate(0, 0, 1), 20, 0), "2026-08-24", StateDayEndPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.machine.eodDone = tt.eodDone
			assert.Equal(t, tt.want, f.machine.Classify(tt.now))
		})
	}
}

func TestMachine_Tick_IdleWritesNothing(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.machine.Tick(context.Background(), at(saturday, 11, 0)))

	assert.Equal(t, StateIdle, f.machine.State())
	assert.Empty(t, f.indexes.saved)
	assert.Empty(t, f.publisher.published)
	assert.Zero(t, f.baselines.saves)
}

func TestMachine_Tick_ColdStartAdoptsBaseline(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.machine.Restore(context.Background()))

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 10, 30)))

	assert.Equal(t, StateCalculating, f.machine.State())
	require.Len(t, f.indexes.saved, 1)
	assert.Equal(t, 100.0, f.indexes.saved[0][0].Index)

	// First tick installs and persists the baseline.
	require.NotNil(t, f.baselines.stored)
	assert.Equal(t, 1, f.baselines.saves)
	assert.Len(t, f.baselines.stored.Caps, 2)
	assert.Equal(t, 100.0, f.baselines.stored.IndexValues["BANK"])

	// Second tick chains against the adopted baseline, not re-seed.
	f.market.caps = sessionCaps(220, 110)
	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 10, 31)))
	require.Len(t, f.indexes.saved, 2)
	assert.InDelta(t, 110.0, f.indexes.saved[1][0].Index, 1e-9)
	assert.Equal(t, 1, f.baselines.saves, "baseline must not move intraday")
}

func TestMachine_Tick_ColdStartKeepsRecoveredCloses(t *testing.T) {
	f := newFixture(t)
	f.indexes.closes = map[string]float64{"BANK": 117.5}
	require.NoError(t, f.machine.Restore(context.Background()))

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 10, 30)))

	// The recovered close is the opening level, not the seed.
	require.Len(t, f.indexes.saved, 1)
	assert.Equal(t, 117.5, f.indexes.saved[0][0].Index)
	require.NotNil(t, f.baselines.stored)
	assert.Equal(t, 117.5, f.baselines.stored.IndexValues["BANK"])

	// Chaining continues from the recovered level.
	f.market.caps = sessionCaps(220, 110)
	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 10, 31)))
	require.Len(t, f.indexes.saved, 2)
	assert.InDelta(t, 117.5*1.1, f.indexes.saved[1][0].Index, 1e-9)
}

func TestMachine_Tick_NoMarketDataSkips(t *testing.T) {
	f := newFixture(t)
	f.market.caps = nil

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 11, 0)))

	assert.Empty(t, f.indexes.saved)
	assert.Empty(t, f.publisher.published)
}

func TestMachine_Tick_PublishesAfterStore(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 11, 0)))

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, "BANK", f.publisher.published[0][0].SectorCode)
}

func TestMachine_Tick_DayEndCapturesOnce(t *testing.T) {
	f := newFixture(t)
	f.indexes.bounds = []contracts.DailyIndexSummary{
		contracts.NewDailyIndexSummary("BANK", "Bank", monday, 100.0, 104.0),
	}

	hookRuns := 0
	f.machine.AddDayEndHook(func(_ context.Context, _ time.Time, summaries []contracts.DailyIndexSummary) error {
		hookRuns++
		assert.Len(t, summaries, 1)
		return nil
	})

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 15, 0)))

	assert.Equal(t, StateDayEndDone, f.machine.State())
	assert.Equal(t, 1, f.indexes.summariesSaved)
	assert.Equal(t, 1, hookRuns)

	// Baseline carried forward from the close.
	require.NotNil(t, f.baselines.stored)
	assert.Equal(t, 104.0, f.baselines.stored.IndexValues["BANK"])
	assert.Len(t, f.baselines.stored.Caps, 2)

	// A later tick the same evening is a no-op.
	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 16, 0)))
	assert.Equal(t, StateDayEndDone, f.machine.State())
	assert.Equal(t, 1, f.indexes.summariesSaved)
	assert.Equal(t, 1, hookRuns)
}

func TestMachine_Tick_DayEndFailureRetriesNextTick(t *testing.T) {
	f := newFixture(t)
	f.indexes.bounds = []contracts.DailyIndexSummary{
		contracts.NewDailyIndexSummary("BANK", "Bank", monday, 100.0, 104.0),
	}
	f.indexes.saveSummaryErr = errors.New("db down")

	err := f.machine.Tick(context.Background(), at(monday, 15, 0))
	require.Error(t, err)
	assert.Zero(t, f.indexes.summariesSaved)
	assert.Zero(t, f.baselines.saves)

	// Flag was not advanced, so the next tick retries the capture.
	assert.Equal(t, StateDayEndPending, f.machine.Classify(at(monday, 15, 1)))

	f.indexes.saveSummaryErr = nil
	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 15, 1)))
	assert.Equal(t, StateDayEndDone, f.machine.State())
	assert.Equal(t, 1, f.indexes.summariesSaved)
}

func TestMachine_Tick_DayEndHookFailureDoesNotBlockCapture(t *testing.T) {
	f := newFixture(t)
	f.indexes.bounds = []contracts.DailyIndexSummary{
		contracts.NewDailyIndexSummary("BANK", "Bank", monday, 100.0, 104.0),
	}
	f.machine.AddDayEndHook(func(_ context.Context, _ time.Time, _ []contracts.DailyIndexSummary) error {
		return errors.New("export disk full")
	})

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 15, 0)))
	assert.Equal(t, StateDayEndDone, f.machine.State())
}

func TestMachine_Tick_DayEndWithNoRows(t *testing.T) {
	f := newFixture(t)
	f.indexes.bounds = nil

	require.NoError(t, f.machine.Tick(context.Background(), at(monday, 15, 0)))

	assert.Equal(t, StateDayEndDone, f.machine.State())
	assert.Zero(t, f.indexes.summariesSaved)
	assert.Zero(t, f.baselines.saves, "nothing to carry forward")
}

func TestMachine_Restore(t *testing.T) {
	t.Run("empty store falls back to latest close", func(t *testing.T) {
		f := newFixture(t)
		f.indexes.closes = map[string]float64{"BANK": 117.5}

		require.NoError(t, f.machine.Restore(context.Background()))

		b := f.machine.Baseline()
		require.NotNil(t, b)
		assert.True(t, b.Empty())
		assert.Equal(t, 117.5, b.IndexValues["BANK"])
	})

	t.Run("persisted baseline wins", func(t *testing.T) {
		f := newFixture(t)
		stored := contracts.NewBaselineSnapshot()
		stored.Caps = sessionCaps(180, 90)
		stored.IndexValues["BANK"] = 130.0
		f.baselines.stored = stored

		require.NoError(t, f.machine.Restore(context.Background()))

		b := f.machine.Baseline()
		require.NotNil(t, b)
		assert.False(t, b.Empty())
		assert.Equal(t, 130.0, b.IndexValues["BANK"])
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "CALCULATING", StateCalculating.String())
	assert.Equal(t, "DAY_END_PENDING", StateDayEndPending.String())
	assert.Equal(t, "DAY_END_DONE", StateDayEndDone.String())
}
