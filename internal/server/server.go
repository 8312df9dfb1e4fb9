// Package server assembles the service: config, logging, postgres,
// migrations, tracing, dependency injection, the kafka ingest loop and the
// HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/repositories/amcmaster"
	"github.com/Ramsey-B/aster/internal/repositories/amcstaging"
	"github.com/Ramsey-B/aster/internal/repositories/rawsource"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/routes"
	"github.com/Ramsey-B/aster/pkg/routes/health"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/workflow"
)

// Version is stamped at build time.
var Version = "dev"

// Server owns every long-lived component of the service.
type Server struct {
	cfg      config.Config
	logger   ectologger.Logger
	db       *sqlx.DB
	echo     *echo.Echo
	consumer *kafka.Consumer
	producer *kafka.Producer
	checker  *health.Checker
	tp       *sdktrace.TracerProvider
}

// NewLogger builds the process logger: structured JSON lines on stdout.
func NewLogger(cfg config.Config) ectologger.Logger {
	enc := json.NewEncoder(os.Stdout)
	if cfg.PrettyLogs {
		enc.SetIndent("", "  ")
	}
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		_ = enc.Encode(msg)
	})
}

// New wires the full service from config. The database is connected and
// migrated before anything else starts.
func New(ctx context.Context, cfg config.Config, logger ectologger.Logger) (*Server, error) {
	db, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := migrateSchema(cfg, logger, db); err != nil {
		db.Close()
		return nil, err
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	dbInstance := database.NewDatabaseInstance(db, logger)
	masters := amcmaster.NewRepository(dbInstance, logger)
	staging := amcstaging.NewRepository(dbInstance, logger)
	raw := rawsource.NewRepository(dbInstance, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	emitter := events.NewEmitter(producer, logger)

	service := resolver.NewService(logger, masters, staging, emitter, cfg.DirectResolveMinimum)
	builder := workflow.NewBuilder(logger, raw, service, masters, staging, cfg.AutoApproveThreshold)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(cfg, logger, resolveHandler(service))
	}

	if err := registerDependencies(cfg, logger, masters, staging, service, builder); err != nil {
		db.Close()
		return nil, err
	}

	checker := health.NewChecker(db, consumerHealth(consumer), Version)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes
	routes.RegisterAll(e, logger, checker)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		echo:     e,
		consumer: consumer,
		producer: producer,
		checker:  checker,
		tp:       tp,
	}, nil
}

// Start runs the kafka ingest loop and the HTTP listener. Blocks until the
// listener stops.
func (s *Server) Start(ctx context.Context) error {
	if s.consumer != nil {
		if err := s.consumer.Start(ctx); err != nil {
			return err
		}
	}

	s.checker.SetReady(true)
	s.logger.WithFields(map[string]any{"port": s.cfg.Port}).Info("Server starting")

	err := s.echo.Start(fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops components in reverse start order.
func (s *Server) Shutdown(ctx context.Context) error {
	s.checker.SetReady(false)

	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shut down HTTP server")
	}
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.WithError(err).Error("Failed to stop kafka consumer")
		}
	}
	if err := s.producer.Close(); err != nil {
		s.logger.WithError(err).Error("Failed to close kafka producer")
	}
	if err := s.tp.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shut down tracer provider")
	}
	return s.db.Close()
}

func connect(ctx context.Context, cfg config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

	var db *sqlx.DB
	var err error
	for attempt := 1; attempt <= cfg.DatabaseReconnectRetryCount; attempt++ {
		db, err = sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
		if err == nil {
			break
		}
		logger.WithError(err).Warnf("Database connection attempt %d/%d failed", attempt, cfg.DatabaseReconnectRetryCount)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	return db, nil
}

func migrateSchema(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func registerDependencies(cfg config.Config, logger ectologger.Logger, masters *amcmaster.Repository, staging *amcstaging.Repository, service *resolver.Service, builder *workflow.Builder) error {
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.RegisterInstance[config.Config](container, cfg); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*amcmaster.Repository](container, masters); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*amcstaging.Repository](container, staging); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*resolver.Service](container, service); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*workflow.Builder](container, builder)
}

// resolveHandler adapts the resolver to the kafka message handler. Messages
// without a usable reference are dropped; resolution errors propagate so the
// message is redelivered.
func resolveHandler(service *resolver.Service) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.IncomingMessage) error {
		ref, ok := msg.ToRawReference()
		if !ok {
			return nil
		}
		_, err := service.Resolve(ctx, ref)
		return err
	}
}

func consumerHealth(c *kafka.Consumer) interface{ Health() bool } {
	if c == nil {
		return nil
	}
	return c
}
