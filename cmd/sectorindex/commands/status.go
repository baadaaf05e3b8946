package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"sectorindex/internal/index"
	"sectorindex/internal/session"
	"sectorindex/pkg/config"
	"sectorindex/pkg/database"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database health and latest index levels",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	health, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}

	fmt.Println("Database:")
	fmt.Printf("  healthy:       %v\n", health.Healthy)
	fmt.Printf("  response time: %s\n", health.ResponseTime)
	fmt.Printf("  connections:   %d/%d (idle %d)\n", health.TotalConns, health.MaxConns, health.IdleConns)

	baseline, err := session.NewBaselineRepository(db).Load(ctx)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}

	fmt.Println()
	if baseline.Empty() {
		fmt.Println("Baseline: none (cold start pending)")
	} else {
		fmt.Printf("Baseline: %d companies, captured %s\n",
			len(baseline.Caps), baseline.CapturedAt.Format(time.RFC3339))
	}

	closes, err := index.NewRepository(db).LatestCloseValues(ctx)
	if err != nil {
		return fmt.Errorf("latest close values: %w", err)
	}

	fmt.Println()
	if len(closes) == 0 {
		fmt.Println("No daily summaries recorded yet")
		return nil
	}

	codes := make([]string, 0, len(closes))
	for code := range closes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Println("Latest closing index levels:")
	for _, code := range codes {
		fmt.Printf("  %-12s %10.4f\n", code, closes[code])
	}

	return nil
}
