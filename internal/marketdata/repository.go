package marketdata

import (
	"context"
	"fmt"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/database"
	"sectorindex/pkg/logger"
)

// Repository implements contracts.MarketCapRepository on PostgreSQL: the
// most recent last-traded price at-or-before a timestamp per company,
// joined with the current share structure.
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new market data repository.
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{db: db, logger: log}
}

// GetMarketCaps returns one MarketCapRecord per company with a tick
// at-or-before asOf. Companies without price data before that time are
// omitted; rows with a non-positive price or share count are skipped with
// a warning, since they would corrupt the aggregate.
func (r *Repository) GetMarketCaps(ctx context.Context, asOf time.Time) (map[string]contracts.MarketCapRecord, error) {
	query := `
		SELECT t.company, t.ltp, t.ltp_at, s.total_shares, s.free_float_pct
		FROM (
			SELECT DISTINCT ON (company) company, ltp, ltp_at
			FROM market_ticks
			WHERE ltp_at <= $1
			ORDER BY company, ltp_at DESC
		) t
		JOIN share_info s ON s.company = t.company
	`

	var caps map[string]contracts.MarketCapRecord
	err := r.db.Retry(ctx, 3, time.Second, func() error {
		rows, err := r.db.Pool.Query(ctx, query, asOf)
		if err != nil {
			return fmt.Errorf("query market caps: %w", err)
		}
		defer rows.Close()

		caps = make(map[string]contracts.MarketCapRecord)
		for rows.Next() {
			var company string
			var ltp, totalShares, freeFloatPct float64
			var ts time.Time
			if err := rows.Scan(&company, &ltp, &ts, &totalShares, &freeFloatPct); err != nil {
				return fmt.Errorf("scan market cap row: %w", err)
			}

			if ltp <= 0 {
				r.logger.WithFields(map[string]interface{}{
					"company": company, "ltp": ltp,
				}).Warn("Skipping company with invalid LTP")
				continue
			}
			if totalShares <= 0 {
				r.logger.WithFields(map[string]interface{}{
					"company": company, "total_shares": totalShares,
				}).Warn("Skipping company with invalid share count")
				continue
			}

			caps[company] = contracts.NewMarketCapRecord(company, ltp, ts, totalShares, freeFloatPct)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return caps, nil
}
