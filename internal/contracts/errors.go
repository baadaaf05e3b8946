package contracts

import "errors"

// Error taxonomy for the calculation pipeline. Persistence and
// configuration errors bubble to the caller; transient absence of a single
// company's data is handled inside the engine and never reaches here.
var (
	// ErrNoMarketData means the snapshot provider returned no usable
	// rows for the requested timestamp.
	ErrNoMarketData = errors.New("no market data available")

	// ErrSectorCacheEmpty means the membership cache has never been
	// successfully refreshed.
	ErrSectorCacheEmpty = errors.New("sector cache not loaded")

	// ErrUnknownSector means a membership row references a sector code
	// absent from the sector definitions; this indicates upstream data
	// corruption and fails the tick rather than being silently zeroed.
	ErrUnknownSector = errors.New("membership references unknown sector")

	// ErrNegativeMarketCap means an active sector produced a negative
	// aggregate free-float market cap.
	ErrNegativeMarketCap = errors.New("negative free-float market cap")
)
