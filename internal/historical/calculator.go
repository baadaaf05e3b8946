package historical

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/internal/index"
	"sectorindex/pkg/logger"
)

// Config bounds a historical recalculation.
type Config struct {
	From time.Time
	To   time.Time
	Step time.Duration
}

// Calculator replays the chained index series over a stored range of
// ticks. Unlike the realtime calculator, which measures every intraday
// tick against one session baseline, the replay rolls its baseline
// forward step by step: each interval is chained onto the previous one,
// which is how a contiguous multi-day series is reconstructed.
//
// Calculator implements contracts.Calculator; the now argument to
// Calculate is ignored in favor of the configured range.
type Calculator struct {
	engine  *index.Engine
	market  contracts.MarketCapRepository
	sectors contracts.SectorRepository
	repo    contracts.IndexRepository
	cfg     Config
	logger  *logger.Logger
}

// NewCalculator creates a historical replay calculator.
func NewCalculator(
	engine *index.Engine,
	market contracts.MarketCapRepository,
	sectorRepo contracts.SectorRepository,
	repo contracts.IndexRepository,
	cfg Config,
	log *logger.Logger,
) *Calculator {
	if cfg.Step <= 0 {
		cfg.Step = time.Minute
	}
	return &Calculator{
		engine:  engine,
		market:  market,
		sectors: sectorRepo,
		repo:    repo,
		cfg:     cfg,
		logger:  log,
	}
}

// Calculate replays the configured range. The membership table is fetched
// once up front so the whole replay sees one consistent mapping. A nil or
// empty starting baseline is bootstrapped from the snapshot at the start
// of the range.
func (c *Calculator) Calculate(ctx context.Context, _ time.Time, baseline *contracts.BaselineSnapshot) ([]contracts.SectorIndexValue, error) {
	if !c.cfg.To.After(c.cfg.From) {
		return nil, fmt.Errorf("historical range end %s must be after start %s",
			c.cfg.To.Format(time.RFC3339), c.cfg.From.Format(time.RFC3339))
	}

	table, err := c.sectors.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sector table: %w", err)
	}

	if baseline == nil {
		baseline = contracts.NewBaselineSnapshot()
	}
	if baseline.Empty() {
		caps, err := c.market.GetMarketCaps(ctx, c.cfg.From)
		if err != nil {
			return nil, fmt.Errorf("bootstrap snapshot at %s: %w", c.cfg.From.Format(time.RFC3339), err)
		}
		if len(caps) == 0 {
			return nil, fmt.Errorf("bootstrap snapshot at %s: %w",
				c.cfg.From.Format(time.RFC3339), contracts.ErrNoMarketData)
		}

		closes, err := c.repo.LatestCloseValues(ctx)
		if err != nil {
			return nil, fmt.Errorf("latest close values: %w", err)
		}

		baseline = contracts.NewBaselineSnapshot()
		baseline.Caps = caps
		baseline.CapturedAt = c.cfg.From
		for code, value := range closes {
			baseline.IndexValues[code] = value
		}
	}

	var all []contracts.SectorIndexValue
	steps := 0

	for ts := c.cfg.From.Add(c.cfg.Step); !ts.After(c.cfg.To); ts = ts.Add(c.cfg.Step) {
		current, err := c.market.GetMarketCaps(ctx, ts)
		if err != nil {
			return nil, fmt.Errorf("snapshot at %s: %w", ts.Format(time.RFC3339), err)
		}
		if len(current) == 0 {
			c.logger.WithField("timestamp", ts).Warn("No market data in historical step, skipping")
			continue
		}

		results, err := c.engine.Compute(current, baseline, table, ts)
		if err != nil {
			return nil, fmt.Errorf("compute at %s: %w", ts.Format(time.RFC3339), err)
		}
		all = append(all, results...)
		steps++

		// Roll the baseline forward: next interval chains onto this one.
		next := contracts.NewBaselineSnapshot()
		next.Caps = current
		next.CapturedAt = ts
		for code, value := range baseline.IndexValues {
			next.IndexValues[code] = value
		}
		for _, v := range results {
			next.IndexValues[v.SectorCode] = v.Index
		}
		baseline = next

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"from":  c.cfg.From,
		"to":    c.cfg.To,
		"steps": steps,
		"rows":  len(all),
	}).Info("Historical recalculation completed")

	return all, nil
}

// StoreResults persists the replayed series.
func (c *Calculator) StoreResults(ctx context.Context, results []contracts.SectorIndexValue) error {
	return c.repo.SaveIndexValues(ctx, results)
}
