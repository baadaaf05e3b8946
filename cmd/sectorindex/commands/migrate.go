package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sectorindex/internal/schema"
	"sectorindex/pkg/config"
	"sectorindex/pkg/database"
	"sectorindex/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create database tables",
	Long: `Applies the service schema: sector and membership tables, market
tick and share structure tables, index value and summary tables, and
the persisted baseline tables. Safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := schema.Apply(ctx, db.Pool); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	log.Info("Schema applied")
	fmt.Println("Schema applied")
	return nil
}
