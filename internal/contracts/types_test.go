package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMarketCapRecord(t *testing.T) {
	ts := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)
	rec := NewMarketCapRecord("ABBANK", 12.5, ts, 1_000_000, 40)

	assert.Equal(t, 12_500_000.0, rec.MarketCap)
	assert.Equal(t, 5_000_000.0, rec.FreeFloatMCap)
	assert.Equal(t, "ABBANK", rec.Company)
	assert.Equal(t, ts, rec.Timestamp)
}

func TestBaselineSnapshot_Empty(t *testing.T) {
	var nilBaseline *BaselineSnapshot
	assert.True(t, nilBaseline.Empty())
	assert.True(t, NewBaselineSnapshot().Empty())

	b := NewBaselineSnapshot()
	b.Caps["ABBANK"] = MarketCapRecord{Company: "ABBANK"}
	assert.False(t, b.Empty())
}

func TestBaselineSnapshot_IndexValue(t *testing.T) {
	b := NewBaselineSnapshot()
	b.IndexValues["BANK"] = 117.5

	assert.Equal(t, 117.5, b.IndexValue("BANK", 100))
	assert.Equal(t, 100.0, b.IndexValue("PHRM", 100))

	var nilBaseline *BaselineSnapshot
	assert.Equal(t, 100.0, nilBaseline.IndexValue("BANK", 100))
}

func TestSectorTable_CodesSorted(t *testing.T) {
	table := &SectorTable{
		Sectors: map[string]SectorInfo{
			"PHRM": {Code: "PHRM"},
			"BANK": {Code: "BANK"},
			"FUEL": {Code: "FUEL"},
		},
	}

	assert.Equal(t, []string{"BANK", "FUEL", "PHRM"}, table.Codes())
}

func TestNewDailyIndexSummary(t *testing.T) {
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	s := NewDailyIndexSummary("BANK", "Bank", day, 100, 104)
	assert.InDelta(t, 0.04, s.DailyReturn, 1e-9)

	// Zero start level clamps instead of dividing by zero.
	s = NewDailyIndexSummary("BANK", "Bank", day, 0, 104)
	assert.Zero(t, s.DailyReturn)
}
