package index

import (
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

// DefaultSeed is the index level a sector starts at when it has no
// recorded history.
const DefaultSeed = 100.0

// Engine computes chain-linked free-float market-cap-weighted sector
// indices. Compute is a pure function of its inputs: identical snapshots,
// baseline, and membership always yield identical output.
type Engine struct {
	seed   float64
	logger *logger.Logger
}

// NewEngine creates an engine with the given seed level.
func NewEngine(seed float64, log *logger.Logger) *Engine {
	if seed <= 0 {
		seed = DefaultSeed
	}
	return &Engine{seed: seed, logger: log}
}

// Seed returns the configured starting index level.
func (e *Engine) Seed() float64 {
	return e.seed
}

// Compute produces a new index value for every active sector in the table.
//
// For each sector the aggregate free-float market cap is summed over
// constituents present in both the current snapshot and the baseline with
// a positive cap on both sides; the new level is the baseline's level for
// that sector multiplied by current/baseline aggregate. Companies present
// on only one side are excluded from both sums, so a new listing starts
// contributing only after it has appeared in a baseline. A sector whose
// baseline aggregate is zero holds its previous level.
//
// When the baseline carries no market caps, every active sector opens at
// its last recorded level (seeded at the configured starting level when
// it has none) and the caller is expected to adopt the current snapshot
// as the first baseline.
func (e *Engine) Compute(
	current map[string]contracts.MarketCapRecord,
	baseline *contracts.BaselineSnapshot,
	table *contracts.SectorTable,
	now time.Time,
) ([]contracts.SectorIndexValue, error) {
	if len(current) == 0 {
		return nil, contracts.ErrNoMarketData
	}
	if table == nil || len(table.Sectors) == 0 {
		return nil, contracts.ErrSectorCacheEmpty
	}

	for sectorCode := range table.Members {
		if _, ok := table.Sectors[sectorCode]; !ok {
			return nil, fmt.Errorf("sector %s: %w", sectorCode, contracts.ErrUnknownSector)
		}
	}

	if baseline.Empty() {
		return e.seedAll(current, baseline, table, now), nil
	}

	results := make([]contracts.SectorIndexValue, 0, len(table.Sectors))
	for _, code := range table.Codes() {
		info := table.Sectors[code]

		value, err := e.computeSector(code, info.Name, current, baseline, table.Members[code], now)
		if err != nil {
			return nil, err
		}
		results = append(results, value)
	}

	return results, nil
}

// computeSector chain-links one sector.
func (e *Engine) computeSector(
	code, name string,
	current map[string]contracts.MarketCapRecord,
	baseline *contracts.BaselineSnapshot,
	members []string,
	now time.Time,
) (contracts.SectorIndexValue, error) {
	var currentTotal, baselineTotal float64
	matched := 0

	for _, company := range members {
		cur, inCurrent := current[company]
		base, inBaseline := baseline.Caps[company]
		if !inCurrent || !inBaseline {
			continue
		}

		if cur.FreeFloatMCap < 0 || base.FreeFloatMCap < 0 {
			return contracts.SectorIndexValue{}, fmt.Errorf(
				"sector %s company %s: %w", code, company, contracts.ErrNegativeMarketCap)
		}
		if cur.FreeFloatMCap == 0 || base.FreeFloatMCap == 0 {
			continue
		}

		currentTotal += cur.FreeFloatMCap
		baselineTotal += base.FreeFloatMCap
		matched++
	}

	prev := baseline.IndexValue(code, e.seed)
	value := contracts.SectorIndexValue{
		SectorCode:   code,
		SectorName:   name,
		Timestamp:    now,
		PrevIndex:    prev,
		NumCompanies: matched,
	}

	if baselineTotal == 0 {
		// No comparable constituents: hold the previous level.
		value.Index = prev
		value.NumCompanies = 0
		return value, nil
	}

	value.Index = prev * (currentTotal / baselineTotal)
	if prev != 0 {
		value.TotalReturn = value.Index/prev - 1
	}

	return value, nil
}

// seedAll handles the cold start: with no baseline caps the ratio is
// uniformly 1 and every active sector opens at its last recorded level,
// or the seed level when it has none. The baseline may carry index
// values without caps when levels were recovered from the latest close.
func (e *Engine) seedAll(
	current map[string]contracts.MarketCapRecord,
	baseline *contracts.BaselineSnapshot,
	table *contracts.SectorTable,
	now time.Time,
) []contracts.SectorIndexValue {
	results := make([]contracts.SectorIndexValue, 0, len(table.Sectors))
	for _, code := range table.Codes() {
		info := table.Sectors[code]

		priced := 0
		for _, company := range table.Members[code] {
			if rec, ok := current[company]; ok && rec.FreeFloatMCap > 0 {
				priced++
			}
		}

		level := baseline.IndexValue(code, e.seed)
		results = append(results, contracts.SectorIndexValue{
			SectorCode:   code,
			SectorName:   info.Name,
			Timestamp:    now,
			PrevIndex:    level,
			Index:        level,
			NumCompanies: priced,
		})
	}

	e.logger.WithField("sectors", len(results)).Info("Seeded sector indices from cold start")
	return results
}
