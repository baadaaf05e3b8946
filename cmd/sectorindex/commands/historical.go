package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sectorindex/internal/export"
	"sectorindex/internal/historical"
	"sectorindex/internal/index"
	"sectorindex/internal/marketdata"
	"sectorindex/internal/sectors"
	"sectorindex/pkg/config"
	"sectorindex/pkg/database"
	"sectorindex/pkg/logger"
)

var (
	historicalFrom string
	historicalTo   string
	historicalStep time.Duration
	historicalCSV  bool
)

// historicalCmd represents the historical command
var historicalCmd = &cobra.Command{
	Use:   "historical",
	Short: "Recalculate the index series over a stored tick range",
	Long: `Replays the chained index series over stored market ticks. Each
step chains onto the previous one, so the output is a contiguous
series across day boundaries.

Accepts dates (YYYY-MM-DD) or RFC3339 timestamps.

Example:
  go run ./cmd/sectorindex historical --from 2026-08-01 --to 2026-08-15
  go run ./cmd/sectorindex historical --from 2026-08-01 --to 2026-08-02 --step 5m --csv`,
	RunE: runHistorical,
}

func init() {
	historicalCmd.Flags().StringVar(&historicalFrom, "from", "", "range start (required)")
	historicalCmd.Flags().StringVar(&historicalTo, "to", "", "range end (required)")
	historicalCmd.Flags().DurationVar(&historicalStep, "step", time.Minute, "replay step")
	historicalCmd.Flags().BoolVar(&historicalCSV, "csv", false, "also write the series to a CSV file")
	historicalCmd.MarkFlagRequired("from")
	historicalCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(historicalCmd)
}

func parseRangeBound(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func runHistorical(cmd *cobra.Command, args []string) error {
	from, err := parseRangeBound(historicalFrom)
	if err != nil {
		return fmt.Errorf("parse --from: %w", err)
	}
	to, err := parseRangeBound(historicalTo)
	if err != nil {
		return fmt.Errorf("parse --to: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	engine := index.NewEngine(cfg.Index.Seed, log)
	calc := historical.NewCalculator(
		engine,
		marketdata.NewRepository(db, log),
		sectors.NewRepository(db),
		index.NewRepository(db),
		historical.Config{From: from, To: to, Step: historicalStep},
		log,
	)

	ctx := context.Background()

	fmt.Printf("Replaying %s to %s (step %s)...\n", from.Format(time.RFC3339), to.Format(time.RFC3339), historicalStep)

	results, err := calc.Calculate(ctx, time.Time{}, nil)
	if err != nil {
		return fmt.Errorf("historical calculation: %w", err)
	}
	if err := calc.StoreResults(ctx, results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}

	fmt.Printf("Stored %d index values\n", len(results))

	if historicalCSV {
		exporter := export.NewExporter(cfg.Export.Dir, log)
		name := fmt.Sprintf("historical_%s_%s.csv", from.Format("20060102"), to.Format("20060102"))
		path, err := exporter.WriteHistoryCSV(name, results)
		if err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Printf("CSV written to %s\n", path)
	}

	return nil
}
