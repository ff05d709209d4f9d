package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/wisercms/wiser-api/config"
	"github.com/wisercms/wiser-api/internal/handlers"
	"github.com/wisercms/wiser-api/internal/repositories/history"
	"github.com/wisercms/wiser-api/internal/repositories/idmapping"
	"github.com/wisercms/wiser-api/internal/repositories/linksettings"
	"github.com/wisercms/wiser-api/internal/repositories/tenant"
	"github.com/wisercms/wiser-api/pkg/branches"
	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/events"
	"github.com/wisercms/wiser-api/pkg/kafka"
	"github.com/wisercms/wiser-api/pkg/logging"
	"github.com/wisercms/wiser-api/pkg/middleware"
	"github.com/wisercms/wiser-api/pkg/redis"
	"github.com/wisercms/wiser-api/pkg/routes/health"
	"github.com/wisercms/wiser-api/pkg/secrets"
	"github.com/wisercms/wiser-api/pkg/startup"
	"github.com/wisercms/wiser-api/pkg/tracing"
	"github.com/wisercms/wiser-api/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, flushLogs, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer flushLogs()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		flushLogs()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	if cfg.TracingEnabled {
		shutdown, err := initTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	mainDB, err := database.Connect(ctx, database.ConnectionInfo{
		Host:         cfg.DatabaseHost,
		Port:         cfg.DatabasePort,
		Username:     cfg.DatabaseUserName,
		Password:     cfg.DatabasePassword,
		DatabaseName: cfg.DatabaseName,
	}, database.ConnectConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer mainDB.Close()

	if err := migrate(cfg, logger, mainDB); err != nil {
		return err
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	encryptor := secrets.NewEncryptor(cfg.TenantEncryptionKey)
	tenants := tenant.NewRepository(mainDB, encryptor, logger)

	branchService := branches.NewService(
		branches.Config{
			ExcludedEntityTypes: cfg.BranchExcludedEntityTypes,
			SkipCopyTables:      cfg.BranchSkipCopyTables,
			MergeLockTTL:        cfg.MergeLockTTL,
			Connect: database.ConnectConfig{
				MaxOpenConns:    cfg.TenantMaxOpenConns,
				MaxIdleConns:    cfg.TenantMaxIdleConns,
				ConnMaxLifetime: cfg.TenantConnMaxLifetime,
			},
			Retry: database.RetryConfig{
				MaxAttempts:       cfg.DatabaseRetryMaxAttempts,
				ConnectionBackoff: cfg.DatabaseRetryConnectionBackoff,
			},
		},
		tenants,
		history.NewRepository(logger),
		idmapping.NewRepository(logger),
		linksettings.NewRepository(logger),
		database.NewSchemaService(logger),
		redis.NewLocker(redisClient, cfg.AppName),
		events.NewEmitter(producer, logger),
		logger,
	)

	e := buildServer(cfg, logger, mainDB, redisClient, branchService)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&serverDependency{e: e, cfg: cfg, logger: logger})
	if err := boot.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return boot.Stop(shutdownCtx)
}

func buildServer(cfg config.Config, logger ectologger.Logger, mainDB database.DB, redisClient *redis.Client, branchService *branches.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(mainDB, redisClient, version)
	checker.RegisterRoutes(e)
	checker.SetReady(true)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewBranchHandler(branchService, logger).RegisterRoutes(api)

	return e
}

func migrate(cfg config.Config, logger ectologger.Logger, db database.DB) error {
	driver, err := migratemysql.WithInstance(db.Unsafe().DB, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return migrations.Migrate(cfg.DatabaseName, driver)
}

func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if cfg.TracingOTLPProtocol == "console" {
		// Discards spans but keeps span/trace IDs flowing into logs locally.
		exporter = &exporters.ConsoleExporter{}
	} else {
		var err error
		exporter, err = exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: true,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))
	return provider.Shutdown, nil
}

// version is stamped at build time.
var version = "dev"

// serverDependency runs the HTTP listener under the startup coordinator.
type serverDependency struct {
	e      *echo.Echo
	cfg    config.Config
	logger ectologger.Logger
}

func (d *serverDependency) GetName() string     { return "http-server" }
func (d *serverDependency) DependsOn() []string { return nil }

func (d *serverDependency) Start(ctx context.Context) error {
	d.e.Server.ReadTimeout = time.Duration(d.cfg.HttpServerReadTimeoutSeconds) * time.Second
	d.e.Server.WriteTimeout = time.Duration(d.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	d.e.Server.IdleTimeout = time.Duration(d.cfg.HttpServerIdleTimeoutSeconds) * time.Second
	d.e.Server.ReadHeaderTimeout = time.Duration(d.cfg.ReadHeaderTimeoutSeconds) * time.Second
	d.e.Server.MaxHeaderBytes = d.cfg.MaxHeaderBytes

	go func() {
		if err := d.e.Start(fmt.Sprintf(":%d", d.cfg.Port)); err != nil && err != http.ErrServerClosed {
			d.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()
	return nil
}

func (d *serverDependency) Stop(ctx context.Context) error {
	return d.e.Shutdown(ctx)
}
