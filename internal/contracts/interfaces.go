package contracts

import (
	"context"
	"time"
)

// MarketCapRepository provides the market snapshot: the most recent
// last-traded price at-or-before a timestamp per company, joined with the
// current share structure. Companies with no data before the timestamp are
// omitted.
type MarketCapRepository interface {
	GetMarketCaps(ctx context.Context, asOf time.Time) (map[string]MarketCapRecord, error)
}

// SectorRepository is the bulk source of sector definitions and
// memberships.
type SectorRepository interface {
	FetchAll(ctx context.Context) (*SectorTable, error)
}

// IndexRepository is the result sink for computed index values and daily
// summaries.
type IndexRepository interface {
	// SaveIndexValues appends one tick's rows in a single transaction;
	// partial writes are never visible.
	SaveIndexValues(ctx context.Context, values []SectorIndexValue) error

	// DailyBounds returns, per sector, the first and last index values
	// recorded on the given calendar day.
	DailyBounds(ctx context.Context, day time.Time) ([]DailyIndexSummary, error)

	// SaveDailySummaries inserts EOD rows; a summary already present for
	// the same sector and day is left untouched.
	SaveDailySummaries(ctx context.Context, summaries []DailyIndexSummary) error

	// LatestCloseValues returns the most recent end-of-day index level
	// per sector, for seeding after a restart.
	LatestCloseValues(ctx context.Context) (map[string]float64, error)

	// History returns a sector's tick series within a time range.
	History(ctx context.Context, sectorCode string, from, to time.Time) ([]SectorIndexValue, error)

	// PruneBefore removes tick rows older than the cutoff and reports
	// how many were deleted.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BaselineRepository persists the live BaselineSnapshot so a process
// restart mid-session resumes with the correct intraday reference.
type BaselineRepository interface {
	Load(ctx context.Context) (*BaselineSnapshot, error)
	Save(ctx context.Context, baseline *BaselineSnapshot) error
}

// Calculator is the capability shared by index calculator variants.
// The realtime calculator computes one tick against the session baseline;
// the historical calculator replays a stored range. Extension happens via
// additional implementations, not inheritance.
type Calculator interface {
	Calculate(ctx context.Context, now time.Time, baseline *BaselineSnapshot) ([]SectorIndexValue, error)
	StoreResults(ctx context.Context, results []SectorIndexValue) error
}

// Publisher receives the latest computed mapping after each successful
// tick. Publish failures are reported but never fail the tick.
type Publisher interface {
	PublishIndices(ctx context.Context, values []SectorIndexValue) error
}
