package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sectorindex/internal/index"
	"sectorindex/internal/marketdata"
	"sectorindex/internal/sectors"
	"sectorindex/internal/session"
	"sectorindex/pkg/config"
	"sectorindex/pkg/database"
	"sectorindex/pkg/logger"
)

var calculateAt string

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Run a single calculation tick",
	Long: `Runs one tick of the session state machine against the current
wall clock (or --at) and exits. Useful for smoke testing the pipeline
without starting the scheduler.

Example:
  go run ./cmd/sectorindex calculate
  go run ./cmd/sectorindex calculate --at "2026-08-30T11:30:00+06:00"`,
	RunE: runCalculate,
}

func init() {
	calculateCmd.Flags().StringVar(&calculateAt, "at", "", "tick timestamp (RFC3339, default now)")
	rootCmd.AddCommand(calculateCmd)
}

func runCalculate(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if calculateAt != "" {
		t, err := time.Parse(time.RFC3339, calculateAt)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		now = t
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

	marketRepo := marketdata.NewRepository(db, log)
	sectorRepo := sectors.NewRepository(db)
	indexRepo := index.NewRepository(db)
	baselineRepo := session.NewBaselineRepository(db)

	sectorCache := sectors.NewCache(sectorRepo, log)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := sectorCache.Refresh(ctx); err != nil {
		return fmt.Errorf("load sector cache: %w", err)
	}

	engine := index.NewEngine(cfg.Index.Seed, log)
	calculator := index.NewRealtimeCalculator(engine, marketRepo, sectorCache, indexRepo, log)
	machine := session.NewMachine(cfg.Trading, calculator, marketRepo, indexRepo, baselineRepo, nil, log)

	if err := machine.Restore(ctx); err != nil {
		return fmt.Errorf("restore baseline: %w", err)
	}

	fmt.Printf("Tick at %s → state %s\n", now.Format(time.RFC3339), machine.Classify(now))

	if err := machine.Tick(ctx, now); err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	fmt.Printf("Tick completed, final state: %s\n", machine.State())
	return nil
}
