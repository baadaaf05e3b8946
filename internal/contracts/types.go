package contracts

import (
	"sort"
	"time"
)

// SectorInfo describes one sector as defined by the exchange.
type SectorInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// SectorTable is the atomically swapped unit of the sector membership
// cache: active sector definitions plus sector -> constituent companies.
// It is immutable once published; a refresh replaces the whole table.
type SectorTable struct {
	Sectors map[string]SectorInfo `json:"sectors"`
	Members map[string][]string   `json:"members"`
}

// Codes returns the active sector codes in sorted order.
func (t *SectorTable) Codes() []string {
	codes := make([]string, 0, len(t.Sectors))
	for code := range t.Sectors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// MarketCapRecord is one company's market state at a point in time.
// Records are produced fresh each cycle and never mutated.
type MarketCapRecord struct {
	Company       string    `json:"company"`
	LTP           float64   `json:"ltp"`
	Timestamp     time.Time `json:"timestamp"`
	TotalShares   float64   `json:"total_shares"`
	FreeFloatPct  float64   `json:"free_float_pct"`
	MarketCap     float64   `json:"market_cap"`
	FreeFloatMCap float64   `json:"free_float_mcap"`
}

// NewMarketCapRecord derives the market cap fields from price and share
// structure. Free-float percentage is expressed as 0-100.
func NewMarketCapRecord(company string, ltp float64, ts time.Time, totalShares, freeFloatPct float64) MarketCapRecord {
	marketCap := ltp * totalShares
	return MarketCapRecord{
		Company:       company,
		LTP:           ltp,
		Timestamp:     ts,
		TotalShares:   totalShares,
		FreeFloatPct:  freeFloatPct,
		MarketCap:     marketCap,
		FreeFloatMCap: marketCap * freeFloatPct / 100,
	}
}

// BaselineSnapshot is the fixed reference an intraday session's chain-link
// ratios are measured against: company market caps as of the last session
// boundary, plus the index level each sector closed at. Exactly one
// BaselineSnapshot is live at a time; the session state machine owns it and
// replaces it wholesale at session boundaries.
type BaselineSnapshot struct {
	Caps        map[string]MarketCapRecord `json:"caps"`
	IndexValues map[string]float64         `json:"index_values"`
	CapturedAt  time.Time                  `json:"captured_at"`
}

// NewBaselineSnapshot creates an empty baseline.
func NewBaselineSnapshot() *BaselineSnapshot {
	return &BaselineSnapshot{
		Caps:        make(map[string]MarketCapRecord),
		IndexValues: make(map[string]float64),
	}
}

// Empty reports whether the baseline carries no market caps, i.e. the
// system has never completed a session boundary (true cold start).
func (b *BaselineSnapshot) Empty() bool {
	return b == nil || len(b.Caps) == 0
}

// IndexValue returns the recorded level for a sector, falling back to the
// seed level when the sector has no history yet.
func (b *BaselineSnapshot) IndexValue(sectorCode string, seed float64) float64 {
	if b == nil {
		return seed
	}
	if v, ok := b.IndexValues[sectorCode]; ok {
		return v
	}
	return seed
}

// SectorIndexValue is one sector's computed index level at one calculation
// tick. Rows are append-only.
type SectorIndexValue struct {
	SectorCode   string    `json:"sector_code"`
	SectorName   string    `json:"sector_name"`
	Timestamp    time.Time `json:"timestamp"`
	PrevIndex    float64   `json:"prev_index"`
	Index        float64   `json:"index"`
	TotalReturn  float64   `json:"total_return"`
	NumCompanies int       `json:"num_companies"`
}

// DailyIndexSummary is the once-per-day EOD capture for one sector.
type DailyIndexSummary struct {
	SectorCode  string    `json:"sector_code"`
	SectorName  string    `json:"sector_name"`
	Date        time.Time `json:"date"`
	StartIndex  float64   `json:"start_index"`
	EndIndex    float64   `json:"end_index"`
	DailyReturn float64   `json:"daily_return"`
}

// NewDailyIndexSummary builds a summary from the day's opening and closing
// index levels. The daily return clamps to 0 when the start level is 0
// instead of raising a division error.
func NewDailyIndexSummary(code, name string, date time.Time, startIndex, endIndex float64) DailyIndexSummary {
	var ret float64
	if startIndex != 0 {
		ret = endIndex/startIndex - 1
	}
	return DailyIndexSummary{
		SectorCode:  code,
		SectorName:  name,
		Date:        date,
		StartIndex:  startIndex,
		EndIndex:    endIndex,
		DailyReturn: ret,
	}
}
