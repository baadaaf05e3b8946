package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sectorindex/internal/api"
	"sectorindex/internal/api/handlers"
	"sectorindex/internal/contracts"
	"sectorindex/internal/export"
	"sectorindex/internal/index"
	"sectorindex/internal/marketdata"
	"sectorindex/internal/notify"
	"sectorindex/internal/publish"
	"sectorindex/internal/scheduler"
	"sectorindex/internal/scheduler/jobs"
	"sectorindex/internal/sectors"
	"sectorindex/internal/session"
	"sectorindex/pkg/config"
	"sectorindex/pkg/database"
	"sectorindex/pkg/logger"
	"sectorindex/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the index calculation service",
	Long: `Runs the full service: the scheduler drives the session state
machine on the calculation interval, the sector membership cache
refreshes in the background, and the HTTP/WebSocket API serves the
computed values.

The service shuts down cleanly on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	log.WithFields(map[string]interface{}{
		"env":           cfg.Env,
		"port":          cfg.Port,
		"session":       fmt.Sprintf("%s-%s", cfg.Trading.StartTime, cfg.Trading.EndTime),
		"calc_interval": cfg.Trading.CalcInterval,
	}).Info("Starting sector index service")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 4. Connect to Redis (no-op client when disabled)
	rdb, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	// 5. Create repositories
	marketRepo := marketdata.NewRepository(db, log)
	sectorRepo := sectors.NewRepository(db)
	indexRepo := index.NewRepository(db)
	baselineRepo := session.NewBaselineRepository(db)

	// 6. Sector membership cache, filled before the first tick
	sectorCache := sectors.NewCache(sectorRepo, log)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = sectorCache.Refresh(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("initial sector cache load: %w", err)
	}

	// 7. Engine and realtime calculator
	engine := index.NewEngine(cfg.Index.Seed, log)
	calculator := index.NewRealtimeCalculator(engine, marketRepo, sectorCache, indexRepo, log)

	// 8. Publishers: in-memory latest store, websocket hub, optional Redis mirror
	latest := publish.NewLatestStore()
	hub := api.NewHub(log)
	pubs := publish.NewMulti(latest, hub)
	if rdb.Enabled() {
		pubs = publish.NewMulti(latest, hub, publish.NewRedisPublisher(rdb))
	}

	// 9. Session state machine
	machine := session.NewMachine(cfg.Trading, calculator, marketRepo, indexRepo, baselineRepo, pubs, log)

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = machine.Restore(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("restore baseline: %w", err)
	}

	// 10. Day-end hooks
	if cfg.Export.Enabled {
		exporter := export.NewExporter(cfg.Export.Dir, log)
		machine.AddDayEndHook(func(_ context.Context, day time.Time, summaries []contracts.DailyIndexSummary) error {
			var caps map[string]contracts.MarketCapRecord
			if b := machine.Baseline(); b != nil {
				caps = b.Caps
			}
			_, err := exporter.WriteDailyWorkbook(day, summaries, caps)
			return err
		})
	}
	if notifier := notify.NewNotifier(cfg.Webhook, log); notifier != nil {
		machine.AddDayEndHook(notifier.NotifyDayEnd)
	}

	// 11. Scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewCalculationTickJob(machine, cfg.Trading.CalcInterval, log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewSectorRefreshJob(sectorCache, cfg.Trading.RefreshInterval, log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewRetentionJob(indexRepo, cfg.Index.RetentionDays, log)); err != nil {
		return err
	}
	sched.Start()

	// 12. HTTP server
	indexHandler := handlers.NewIndexHandler(latest, indexRepo, indexRepo, log)
	router := api.NewRouter(indexHandler, hub, log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		log.WithError(err).Error("HTTP server failed")
	}

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	log.Info("Service stopped")
	return nil
}
