package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nonprofit-tech/casevault/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long-running background workers, like the export link janitor.`,
}

// Export cleanup worker command
var cleanupWorkerCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the export janitor on an interval",
	Long:  `Periodically remove expired export links and orphaned export files until interrupted`,
	Run: func(cmd *cobra.Command, args []string) {
		startCleanupWorker()
	},
}

var cleanupInterval time.Duration

func startCleanupWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize orm layer: %v\n", err)
		os.Exit(1)
	}

	broker, err := newExportBroker(cfg, db, gdb, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build export broker: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting export cleanup worker", "interval", cleanupInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	runOnce := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		report, err := broker.Cleanup(ctx, false)
		if err != nil {
			logger.Error("export cleanup pass failed", "error", err)
			return
		}
		logger.Info("export cleanup pass complete",
			"expired_removed", report.ExpiredRemoved,
			"orphans_removed", report.OrphansRemoved)
	}

	runOnce()
	for {
		select {
		case <-ticker.C:
			runOnce()
		case sig := <-sigChan:
			logger.Info("received signal, shutting down cleanup worker", "signal", sig)
			return
		}
	}
}

func init() {
	cleanupWorkerCmd.Flags().DurationVar(&cleanupInterval, "interval", time.Hour, "time between cleanup passes")

	workerCmd.AddCommand(cleanupWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
