package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// statements are applied in order; each is idempotent.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS sectors (
		sector_code TEXT PRIMARY KEY,
		sector_name TEXT NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS sector_members (
		sector_code TEXT NOT NULL REFERENCES sectors (sector_code),
		company     TEXT NOT NULL,
		PRIMARY KEY (sector_code, company)
	)`,

	`CREATE TABLE IF NOT EXISTS market_ticks (
		company TEXT NOT NULL,
		ltp     DOUBLE PRECISION NOT NULL,
		ltp_at  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_market_ticks_company_ts
		ON market_ticks (company, ltp_at DESC)`,

	`CREATE TABLE IF NOT EXISTS share_info (
		company        TEXT PRIMARY KEY,
		total_shares   DOUBLE PRECISION NOT NULL,
		free_float_pct DOUBLE PRECISION NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sector_index_values (
		sector_code   TEXT NOT NULL,
		sector_name   TEXT NOT NULL,
		ts            TIMESTAMPTZ NOT NULL,
		prev_index    DOUBLE PRECISION NOT NULL,
		index_value   DOUBLE PRECISION NOT NULL,
		total_return  DOUBLE PRECISION NOT NULL,
		num_companies INTEGER NOT NULL,
		PRIMARY KEY (sector_code, ts)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sector_index_values_ts
		ON sector_index_values (ts)`,

	`CREATE TABLE IF NOT EXISTS daily_index_summaries (
		sector_code  TEXT NOT NULL,
		sector_name  TEXT NOT NULL,
		summary_date DATE NOT NULL,
		start_index  DOUBLE PRECISION NOT NULL,
		end_index    DOUBLE PRECISION NOT NULL,
		daily_return DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (sector_code, summary_date)
	)`,

	`CREATE TABLE IF NOT EXISTS baseline_market_caps (
		company        TEXT PRIMARY KEY,
		ltp            DOUBLE PRECISION NOT NULL,
		ts             TIMESTAMPTZ NOT NULL,
		total_shares   DOUBLE PRECISION NOT NULL,
		free_float_pct DOUBLE PRECISION NOT NULL,
		market_cap     DOUBLE PRECISION NOT NULL,
		free_float_mcap DOUBLE PRECISION NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS baseline_index_values (
		sector_code TEXT PRIMARY KEY,
		index_value DOUBLE PRECISION NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply creates all tables and indexes the service needs. Safe to run
// repeatedly.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
