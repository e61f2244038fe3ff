package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	accessPostgres "github.com/nonprofit-tech/casevault/internal/access/postgres"
	"github.com/nonprofit-tech/casevault/internal/core/events"
	"github.com/nonprofit-tech/casevault/internal/export"
	exportPostgres "github.com/nonprofit-tech/casevault/internal/export/postgres"
	"github.com/nonprofit-tech/casevault/pkg/logger"
	"gorm.io/gorm"
)

var (
	cleanupCmd = &cobra.Command{
		RunE:  runCleanup,
		Use:   "cleanup",
		Short: "Remove expired export links and orphaned export files",
	}
	cleanupDryRun bool
)

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report what would be removed without deleting anything")
}

func runCleanup(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		return fmt.Errorf("failed to initialize orm layer: %w", err)
	}

	broker, err := newExportBroker(cfg, db, gdb, logger.LoggerWrapper())
	if err != nil {
		return err
	}

	report, err := broker.Cleanup(context.Background(), cleanupDryRun)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if report.DryRun {
		fmt.Println("dry run, nothing was deleted")
	}
	fmt.Printf("expired links removed: %d\norphaned files removed: %d\n", report.ExpiredRemoved, report.OrphansRemoved)
	return nil
}

// newExportBroker builds a broker for offline commands. The event bus here
// is process-local, so elevated-export notifications never fire from these
// paths; only lifecycle operations do.
func newExportBroker(cfg *internal.Config, db *sqlx.DB, gdb *gorm.DB, log *slog.Logger) (*export.Broker, error) {
	store, err := export.NewDiskStore(cfg.Export.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open export storage: %w", err)
	}

	evaluator := access.NewEvaluator(accessPostgres.NewAccessRepository(gdb), log)
	notifier := export.NewEventNotifier(events.NewEventBus(log))

	return export.NewBroker(
		exportPostgres.NewExportRepository(gdb),
		store,
		evaluator,
		notifier,
		export.BrokerConfig{
			LinkTTL:       cfg.Export.LinkTTLOrDefault(),
			ElevatedDelay: cfg.Export.ElevatedDelayOrDefault(),
			GracePeriod:   cfg.Export.GracePeriodOrDefault(),
		},
		log,
	), nil
}
