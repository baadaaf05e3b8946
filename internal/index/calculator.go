package index

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/internal/sectors"
	"sectorindex/pkg/logger"
)

// RealtimeCalculator is the live-session implementation of
// contracts.Calculator: it fetches the market snapshot for "now", runs the
// chain-linking engine against the supplied session baseline, and writes
// results through the index repository. It performs no retries of its own;
// persistence failures propagate to the session state machine.
type RealtimeCalculator struct {
	engine  *Engine
	market  contracts.MarketCapRepository
	sectors *sectors.Cache
	repo    contracts.IndexRepository
	logger  *logger.Logger

	lastSnapshot map[string]contracts.MarketCapRecord
}

// NewRealtimeCalculator creates the live calculator.
func NewRealtimeCalculator(
	engine *Engine,
	market contracts.MarketCapRepository,
	cache *sectors.Cache,
	repo contracts.IndexRepository,
	log *logger.Logger,
) *RealtimeCalculator {
	return &RealtimeCalculator{
		engine:  engine,
		market:  market,
		sectors: cache,
		repo:    repo,
		logger:  log,
	}
}

// Calculate computes one tick. The timestamp is truncated to the minute so
// a retried tick re-derives the same rows from the same snapshot.
func (c *RealtimeCalculator) Calculate(ctx context.Context, now time.Time, baseline *contracts.BaselineSnapshot) ([]contracts.SectorIndexValue, error) {
	ts := now.Truncate(time.Minute)

	table, err := c.sectors.Get()
	if err != nil {
		return nil, err
	}

	snapshot, err := c.market.GetMarketCaps(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("fetch market snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("snapshot at %s: %w", ts.Format(time.RFC3339), contracts.ErrNoMarketData)
	}
	c.lastSnapshot = snapshot

	results, err := c.engine.Compute(snapshot, baseline, table, ts)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"timestamp": ts,
		"sectors":   len(results),
		"companies": len(snapshot),
	}).Debug("Calculated sector indices")

	return results, nil
}

// StoreResults persists one tick's rows.
func (c *RealtimeCalculator) StoreResults(ctx context.Context, results []contracts.SectorIndexValue) error {
	return c.repo.SaveIndexValues(ctx, results)
}

// LastSnapshot returns the market snapshot used by the most recent
// Calculate call. The session state machine reads it when adopting a
// cold-start baseline so snapshot and seeded levels stay consistent.
func (c *RealtimeCalculator) LastSnapshot() map[string]contracts.MarketCapRecord {
	return c.lastSnapshot
}
