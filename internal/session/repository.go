package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/database"
)

// BaselineRepository persists the live BaselineSnapshot. The store always
// holds exactly one snapshot: Save truncates and rewrites both tables in
// one transaction, mirroring the replace-not-merge ownership of the
// snapshot itself.
type BaselineRepository struct {
	db *database.DB
}

// NewBaselineRepository creates a baseline persistence repository.
func NewBaselineRepository(db *database.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// Load reads the persisted baseline. An empty store yields an empty
// snapshot, not an error.
func (r *BaselineRepository) Load(ctx context.Context) (*contracts.BaselineSnapshot, error) {
	baseline := contracts.NewBaselineSnapshot()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT company, ltp, ts, total_shares, free_float_pct, market_cap, free_float_mcap
		FROM baseline_market_caps
	`)
	if err != nil {
		return nil, fmt.Errorf("query baseline market caps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec contracts.MarketCapRecord
		if err := rows.Scan(&rec.Company, &rec.LTP, &rec.Timestamp,
			&rec.TotalShares, &rec.FreeFloatPct, &rec.MarketCap, &rec.FreeFloatMCap); err != nil {
			return nil, fmt.Errorf("scan baseline market cap: %w", err)
		}
		baseline.Caps[rec.Company] = rec
		if rec.Timestamp.After(baseline.CapturedAt) {
			baseline.CapturedAt = rec.Timestamp
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baseline market caps: %w", err)
	}

	valueRows, err := r.db.Pool.Query(ctx,
		`SELECT sector_code, index_value FROM baseline_index_values`)
	if err != nil {
		return nil, fmt.Errorf("query baseline index values: %w", err)
	}
	defer valueRows.Close()

	for valueRows.Next() {
		var code string
		var value float64
		if err := valueRows.Scan(&code, &value); err != nil {
			return nil, fmt.Errorf("scan baseline index value: %w", err)
		}
		baseline.IndexValues[code] = value
	}
	if err := valueRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baseline index values: %w", err)
	}

	return baseline, nil
}

// Save replaces the persisted baseline wholesale.
func (r *BaselineRepository) Save(ctx context.Context, baseline *contracts.BaselineSnapshot) error {
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE baseline_market_caps`); err != nil {
			return fmt.Errorf("truncate baseline market caps: %w", err)
		}
		if _, err := tx.Exec(ctx, `TRUNCATE baseline_index_values`); err != nil {
			return fmt.Errorf("truncate baseline index values: %w", err)
		}

		batch := &pgx.Batch{}
		for _, rec := range baseline.Caps {
			batch.Queue(`
				INSERT INTO baseline_market_caps
					(company, ltp, ts, total_shares, free_float_pct, market_cap, free_float_mcap)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				rec.Company, rec.LTP, rec.Timestamp,
				rec.TotalShares, rec.FreeFloatPct, rec.MarketCap, rec.FreeFloatMCap,
			)
		}

		capturedAt := baseline.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = time.Now()
		}
		for code, value := range baseline.IndexValues {
			batch.Queue(`
				INSERT INTO baseline_index_values (sector_code, index_value, captured_at)
				VALUES ($1, $2, $3)`,
				code, value, capturedAt,
			)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}
	return nil
}
