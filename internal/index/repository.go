package index

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/database"
)

// Repository implements contracts.IndexRepository on PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new index result repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SaveIndexValues appends one tick's rows inside a single transaction so a
// failed tick leaves no partial per-sector results behind. Rows landing on
// an already-recorded (sector, timestamp) slot are left untouched, so a
// retried tick or a sub-minute calculation interval never fails the batch.
func (r *Repository) SaveIndexValues(ctx context.Context, values []contracts.SectorIndexValue) error {
	if len(values) == 0 {
		return nil
	}

	query := `
		INSERT INTO sector_index_values
			(sector_code, sector_name, ts, prev_index, index_value, total_return, num_companies)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sector_code, ts) DO NOTHING
	`

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, v := range values {
			batch.Queue(query,
				v.SectorCode, v.SectorName, v.Timestamp,
				v.PrevIndex, v.Index, v.TotalReturn, v.NumCompanies,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save index values: %w", err)
	}
	return nil
}

// DailyBounds returns, per sector, the first and last index values
// recorded on the given calendar day.
func (r *Repository) DailyBounds(ctx context.Context, day time.Time) ([]contracts.DailyIndexSummary, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT f.sector_code, f.sector_name, f.index_value, l.index_value
		FROM (
			SELECT DISTINCT ON (sector_code) sector_code, sector_name, index_value
			FROM sector_index_values
			WHERE ts >= $1 AND ts < $2
			ORDER BY sector_code, ts ASC
		) f
		JOIN (
			SELECT DISTINCT ON (sector_code) sector_code, index_value
			FROM sector_index_values
			WHERE ts >= $1 AND ts < $2
			ORDER BY sector_code, ts DESC
		) l ON l.sector_code = f.sector_code
		ORDER BY f.sector_code
	`

	rows, err := r.db.Pool.Query(ctx, query, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("query daily bounds: %w", err)
	}
	defer rows.Close()

	var summaries []contracts.DailyIndexSummary
	for rows.Next() {
		var code, name string
		var start, end float64
		if err := rows.Scan(&code, &name, &start, &end); err != nil {
			return nil, fmt.Errorf("scan daily bounds: %w", err)
		}
		summaries = append(summaries, contracts.NewDailyIndexSummary(code, name, dayStart, start, end))
	}
	return summaries, rows.Err()
}

// SaveDailySummaries inserts EOD rows idempotently: a summary already
// present for the same sector and day is left untouched, so a retried EOD
// capture produces no duplicates.
func (r *Repository) SaveDailySummaries(ctx context.Context, summaries []contracts.DailyIndexSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_index_summaries
			(sector_code, sector_name, summary_date, start_index, end_index, daily_return)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sector_code, summary_date) DO NOTHING
	`

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range summaries {
			batch.Queue(query,
				s.SectorCode, s.SectorName, s.Date,
				s.StartIndex, s.EndIndex, s.DailyReturn,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("save daily summaries: %w", err)
	}
	return nil
}

// LatestCloseValues returns the most recent end-of-day index level per
// sector, used to seed index levels after a restart.
func (r *Repository) LatestCloseValues(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (sector_code) sector_code, end_index
		FROM daily_index_summaries
		ORDER BY sector_code, summary_date DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest close values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var code string
		var value float64
		if err := rows.Scan(&code, &value); err != nil {
			return nil, fmt.Errorf("scan latest close values: %w", err)
		}
		values[code] = value
	}
	return values, rows.Err()
}

// History returns a sector's tick series within a time range, oldest
// first.
func (r *Repository) History(ctx context.Context, sectorCode string, from, to time.Time) ([]contracts.SectorIndexValue, error) {
	query := `
		SELECT sector_code, sector_name, ts, prev_index, index_value, total_return, num_companies
		FROM sector_index_values
		WHERE sector_code = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, sectorCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("query index history: %w", err)
	}
	defer rows.Close()

	var values []contracts.SectorIndexValue
	for rows.Next() {
		var v contracts.SectorIndexValue
		if err := rows.Scan(&v.SectorCode, &v.SectorName, &v.Timestamp,
			&v.PrevIndex, &v.Index, &v.TotalReturn, &v.NumCompanies); err != nil {
			return nil, fmt.Errorf("scan index history: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// DailySummaries returns the EOD rows for a calendar day.
func (r *Repository) DailySummaries(ctx context.Context, day time.Time) ([]contracts.DailyIndexSummary, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	query := `
		SELECT sector_code, sector_name, summary_date, start_index, end_index, daily_return
		FROM daily_index_summaries
		WHERE summary_date = $1
		ORDER BY sector_code
	`

	rows, err := r.db.Pool.Query(ctx, query, dayStart)
	if err != nil {
		return nil, fmt.Errorf("query daily summaries: %w", err)
	}
	defer rows.Close()

	var summaries []contracts.DailyIndexSummary
	for rows.Next() {
		var s contracts.DailyIndexSummary
		if err := rows.Scan(&s.SectorCode, &s.SectorName, &s.Date,
			&s.StartIndex, &s.EndIndex, &s.DailyReturn); err != nil {
			return nil, fmt.Errorf("scan daily summaries: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// PruneBefore removes tick rows older than the cutoff.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sector_index_values WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune index values: %w", err)
	}
	return tag.RowsAffected(), nil
}
