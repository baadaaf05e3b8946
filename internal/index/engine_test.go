package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

var testTime = time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)

func testTable() *contracts.SectorTable {
	return &contracts.SectorTable{
		Sectors: map[string]contracts.SectorInfo{
			"BANK": {Code: "BANK", Name: "Bank", Active: true},
			"PHRM": {Code: "PHRM", Name: "Pharmaceuticals", Active: true},
		},
		Members: map[string][]string{
			"BANK": {"ABBANK", "BRACBANK"},
			"PHRM": {"SQURPHARMA"},
		},
	}
}

func mcap(company string, freeFloatMCap float64) contracts.MarketCapRecord {
	return contracts.MarketCapRecord{Company: company, FreeFloatMCap: freeFloatMCap}
}

func baselineWith(caps map[string]contracts.MarketCapRecord, values map[string]float64) *contracts.BaselineSnapshot {
	b := contracts.NewBaselineSnapshot()
	b.Caps = caps
	for code, v := range values {
		b.IndexValues[code] = v
	}
	b.CapturedAt = testTime.Add(-24 * time.Hour)
	return b
}

func TestEngine_Compute_ChainLink(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	current := map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 200),
		"BRACBANK":   mcap("BRACBANK", 130),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}
	baseline := baselineWith(map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 180),
		"BRACBANK":   mcap("BRACBANK", 120),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}, map[string]float64{"BANK": 100.0, "PHRM": 250.0})

	results, err := engine.Compute(current, baseline, testTable(), testTime)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Sorted by sector code: BANK first.
	bank := results[0]
	assert.Equal(t, "BANK", bank.SectorCode)
	assert.Equal(t, 100.0, bank.PrevIndex)
	assert.InDelta(t, 110.0, bank.Index, 1e-9) // 100 * 330/300
	assert.InDelta(t, 0.10, bank.TotalReturn, 1e-9)
	assert.Equal(t, 2, bank.NumCompanies)

	phrm := results[1]
	assert.Equal(t, "PHRM", phrm.SectorCode)
	assert.InDelta(t, 250.0, phrm.Index, 1e-9) // unchanged caps hold the level
	assert.InDelta(t, 0.0, phrm.TotalReturn, 1e-9)
}

func TestEngine_Compute_Deterministic(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	current := map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 210),
		"BRACBANK":   mcap("BRACBANK", 95),
		"SQURPHARMA": mcap("SQURPHARMA", 480),
	}
	baseline := baselineWith(map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 200),
		"BRACBANK":   mcap("BRACBANK", 100),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}, map[string]float64{"BANK": 100.0, "PHRM": 100.0})

	first, err := engine.Compute(current, baseline, testTable(), testTime)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := engine.Compute(current, baseline, testTable(), testTime)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_Compute_ColdStartSeedsAllSectors(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	current := map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 200),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}

	results, err := engine.Compute(current, contracts.NewBaselineSnapshot(), testTable(), testTime)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, v := range results {
		assert.Equal(t, 100.0, v.Index, v.SectorCode)
		assert.Equal(t, 100.0, v.PrevIndex, v.SectorCode)
		assert.Zero(t, v.TotalReturn, v.SectorCode)
	}
}

func TestEngine_Compute_ColdStartUsesRecoveredLevels(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	// A baseline with index levels but no caps (restored from the latest
	// close after the baseline store was wiped) must open each sector at
	// its recovered level, not the seed.
	current := map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 200),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}
	baseline := contracts.NewBaselineSnapshot()
	baseline.IndexValues["BANK"] = 117.5
	require.True(t, baseline.Empty())

	results, err := engine.Compute(current, baseline, testTable(), testTime)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 117.5, results[0].Index)
	assert.Equal(t, 117.5, results[0].PrevIndex)
	assert.Equal(t, 100.0, results[1].Index, "sector without history still seeds")
}

func TestEngine_Compute_ExcludesUnmatchedCompanies(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	// NEWBANK trades today but has no baseline entry; it must not skew the
	// ratio in either direction.
	table := testTable()
	table.Members["BANK"] = append(table.Members["BANK"], "NEWBANK")

	current := map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 180),
		"BRACBANK":   mcap("BRACBANK", 120),
		"NEWBANK":    mcap("NEWBANK", 1000),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}
	baseline := baselineWith(map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 180),
		"BRACBANK":   mcap("BRACBANK", 120),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}, map[string]float64{"BANK": 150.0, "PHRM": 100.0})

	results, err := engine.Compute(current, baseline, table, testTime)
	require.NoError(t, err)

	bank := results[0]
	assert.InDelta(t, 150.0, bank.Index, 1e-9)
	assert.Equal(t, 2, bank.NumCompanies)
}

func TestEngine_Compute_ZeroBaselineHoldsPrevious(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	// Baseline has caps but none overlap the BANK members, so that sector's
	// aggregate is zero and the level holds.
	current := map[string]contracts.MarketCapRecord{
		"ABBANK":     mcap("ABBANK", 300),
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}
	baseline := baselineWith(map[string]contracts.MarketCapRecord{
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}, map[string]float64{"BANK": 123.45, "PHRM": 100.0})

	results, err := engine.Compute(current, baseline, testTable(), testTime)
	require.NoError(t, err)

	bank := results[0]
	assert.Equal(t, 123.45, bank.Index)
	assert.Equal(t, 123.45, bank.PrevIndex)
	assert.Zero(t, bank.NumCompanies)
	assert.Zero(t, bank.TotalReturn)
}

func TestEngine_Compute_SeedFallbackForNewSector(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())

	// PHRM has baseline caps but no recorded level; it starts from seed.
	current := map[string]contracts.MarketCapRecord{
		"SQURPHARMA": mcap("SQURPHARMA", 550),
	}
	baseline := baselineWith(map[string]contracts.MarketCapRecord{
		"SQURPHARMA": mcap("SQURPHARMA", 500),
	}, map[string]float64{"BANK": 140.0})

	results, err := engine.Compute(current, baseline, testTable(), testTime)
	require.NoError(t, err)

	phrm := results[1]
	assert.Equal(t, 100.0, phrm.PrevIndex)
	assert.InDelta(t, 110.0, phrm.Index, 1e-9) // 100 * 550/500
}

func TestEngine_Compute_Errors(t *testing.T) {
	engine := NewEngine(100.0, logger.Nop())
	baseline := baselineWith(map[string]contracts.MarketCapRecord{
		"ABBANK": mcap("ABBANK", 100),
	}, nil)

	tests := []struct {
		name     string
		current  map[string]contracts.MarketCapRecord
		baseline *contracts.BaselineSnapshot
		table    *contracts.SectorTable
		wantErr  error
	}{
		{
			name:     "empty snapshot",
			current:  map[string]contracts.MarketCapRecord{},
			baseline: baseline,
			table:    testTable(),
			wantErr:  contracts.ErrNoMarketData,
		},
		{
			name:     "nil table",
			current:  map[string]contracts.MarketCapRecord{"ABBANK": mcap("ABBANK", 100)},
			baseline: baseline,
			table:    nil,
			wantErr:  contracts.ErrSectorCacheEmpty,
		},
		{
			name:     "empty table",
			current:  map[string]contracts.MarketCapRecord{"ABBANK": mcap("ABBANK", 100)},
			baseline: baseline,
			table:    &contracts.SectorTable{Sectors: map[string]contracts.SectorInfo{}},
			wantErr:  contracts.ErrSectorCacheEmpty,
		},
		{
			name:     "membership references unknown sector",
			current:  map[string]contracts.MarketCapRecord{"ABBANK": mcap("ABBANK", 100)},
			baseline: baseline,
			table: &contracts.SectorTable{
				Sectors: map[string]contracts.SectorInfo{"BANK": {Code: "BANK", Name: "Bank"}},
				Members: map[string][]string{"GHOST": {"ABBANK"}},
			},
			wantErr: contracts.ErrUnknownSector,
		},
		{
			name:     "negative market cap",
			current:  map[string]contracts.MarketCapRecord{"ABBANK": mcap("ABBANK", -5)},
			baseline: baseline,
			table: &contracts.SectorTable{
				Sectors: map[string]contracts.SectorInfo{"BANK": {Code: "BANK", Name: "Bank"}},
				Members: map[string][]string{"BANK": {"ABBANK"}},
			},
			wantErr: contracts.ErrNegativeMarketCap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Compute(tt.current, tt.baseline, tt.table, testTime)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewEngine_SeedFallback(t *testing.T) {
	assert.Equal(t, DefaultSeed, NewEngine(0, logger.Nop()).Seed())
	assert.Equal(t, DefaultSeed, NewEngine(-1, logger.Nop()).Seed())
	assert.Equal(t, 1000.0, NewEngine(1000, logger.Nop()).Seed())
}
