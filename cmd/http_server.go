package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	accessPostgres "github.com/nonprofit-tech/casevault/internal/access/postgres"
	"github.com/nonprofit-tech/casevault/internal/auth"
	authPostgres "github.com/nonprofit-tech/casevault/internal/auth/postgres"
	"github.com/nonprofit-tech/casevault/internal/client"
	clientPostgres "github.com/nonprofit-tech/casevault/internal/client/postgres"
	"github.com/nonprofit-tech/casevault/internal/core/events"
	"github.com/nonprofit-tech/casevault/internal/crypto"
	"github.com/nonprofit-tech/casevault/internal/export"
	exportPostgres "github.com/nonprofit-tech/casevault/internal/export/postgres"
	"github.com/nonprofit-tech/casevault/internal/program"
	programPostgres "github.com/nonprofit-tech/casevault/internal/program/postgres"
	"github.com/nonprofit-tech/casevault/internal/report"
	"github.com/nonprofit-tech/casevault/internal/transport"
	"github.com/nonprofit-tech/casevault/internal/transport/rest"
	"github.com/nonprofit-tech/casevault/internal/user"
	userPostgres "github.com/nonprofit-tech/casevault/internal/user/postgres"
	"github.com/nonprofit-tech/casevault/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm layer: %w", err)
	}

	fieldKey, err := config.Security.GetFieldKey()
	if err != nil {
		return nil, fmt.Errorf("invalid field encryption key: %w", err)
	}
	cipher, err := crypto.NewFieldCipher(fieldKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build field cipher: %w", err)
	}

	store, err := export.NewDiskStore(config.Export.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open export storage: %w", err)
	}

	evaluator := access.NewEvaluator(accessPostgres.NewAccessRepository(gdb), log)

	// User lookup rides sqlx directly; everything row-shaped and
	// domain-owned goes through gorm repositories.
	userRepo := userPostgres.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(gdb), tokenGen, config.Security.BCryptCost)
	authHandler := auth.NewHandler(authService)

	baseHandler := transport.NewBaseHandler(log)

	programRepo := programPostgres.NewProgramRepository(gdb)
	programService := program.NewService(programRepo, evaluator, log)
	programHandler := program.NewHandler(baseHandler, programService)

	clientRepo := clientPostgres.NewClientRepository(gdb, cipher)
	clientService := client.NewService(clientRepo, programRepo, evaluator, cipher, log)
	clientHandler := client.NewHandler(baseHandler, clientService)

	suppressor := report.NewSuppressor(config.Privacy.ThresholdOrDefault())
	builder := report.NewBuilder(clientRepo, clientRepo, programRepo, evaluator, suppressor, log)

	bus := events.NewEventBus(log)
	registerExportSubscribers(bus, userService, log)

	broker := export.NewBroker(
		exportPostgres.NewExportRepository(gdb),
		store,
		evaluator,
		export.NewEventNotifier(bus),
		export.BrokerConfig{
			LinkTTL:       config.Export.LinkTTLOrDefault(),
			ElevatedDelay: config.Export.ElevatedDelayOrDefault(),
			GracePeriod:   config.Export.GracePeriodOrDefault(),
		},
		log,
	)
	exportHandler := export.NewHandler(baseHandler, broker, builder, clientRepo)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, authHandler, userHandler, clientHandler, programHandler, exportHandler, log)

	return &Dependencies{
		Config: config,
		Logger: log,
		DB:     db,
		Router: router,
	}, nil
}

// registerExportSubscribers fans elevated-export events out to the people
// who review them. Delivery is best effort; a failed lookup only logs.
func registerExportSubscribers(bus *events.EventBus, users *user.Service, log *slog.Logger) {
	bus.Subscribe(export.EventElevatedExportCreated, func(ctx context.Context, event events.Event) error {
		admins, err := users.ActiveAdmins(ctx)
		if err != nil {
			return fmt.Errorf("resolve admin recipients: %w", err)
		}
		payload, _ := event.Payload().(map[string]interface{})
		for _, admin := range admins {
			log.Info("elevated export pending review",
				"recipient_id", admin.ID,
				"recipient_email", admin.Email,
				"link_id", payload["link_id"],
				"kind", payload["kind"],
				"creator_id", payload["creator_id"],
			)
		}
		return nil
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the already-open pgx pool so both access paths
// share one set of connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
}
