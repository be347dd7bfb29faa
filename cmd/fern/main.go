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
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/inspectionrecord"
	"github.com/Ramsey-B/fern/internal/repositories/matchreport"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/grouping"
	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/policy"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	entityroutes "github.com/Ramsey-B/fern/pkg/routes/entity"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/reconciliation"
	"github.com/Ramsey-B/fern/pkg/routes/records"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const version = "0.1.0"

type dependency struct {
	name  string
	deps  []string
	start func(context.Context) error
	stop  func(context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.deps }

func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func newLogger(cfg config.Config) (ectologger.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db          database.DB
		producer    *kafka.Producer
		consumer    *kafka.Consumer
		graphClient *graph.Client
		checker     *health.Checker
	)

	e := echo.New()
	e.HideBanner = true

	manager := startup.NewManager(log, cfg.StartupMaxAttempts)

	manager.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			var err error
			db, err = database.Connect(ctx, database.Config{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				Username:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, log)
			if err != nil {
				return err
			}
			return database.Migrate(db, cfg.DatabaseName, cfg.DatabaseMigrationFolderPath, log)
		},
		stop: func(ctx context.Context) error {
			return db.Close()
		},
	})

	manager.AddDependency(&dependency{
		name: "services",
		deps: []string{"database"},
		start: func(ctx context.Context) error {
			entityRepo := entityrepo.NewRepository(db, log)
			recordRepo := inspectionrecord.NewRepository(db, log)
			reportRepo := matchreport.NewRepository(db, log)

			policyFile, err := policy.Load(cfg.PolicyFilePath)
			if err != nil {
				return fmt.Errorf("failed to load policy file: %w", err)
			}

			var matchPolicy matching.Policy = policy.AllowAll{}
			if len(policyFile.ProviderRegions) > 0 {
				matchPolicy = policy.NewJurisdiction(policyFile.ProviderRegions)
			}

			historyCfg := history.DefaultConfig()
			historyCfg.HistoryLimit = cfg.HistoryLimit
			historyCfg.ClosureWindowMonths = cfg.ClosureWindowMonths
			if len(policyFile.ClosurePhrases) > 0 {
				historyCfg.ClosurePhrases = policyFile.ClosurePhrases
			}

			engine := matching.NewEngine(log, history.NewBuilder(historyCfg), matchPolicy, matching.EngineConfig{
				MinScore:           cfg.MatchMinScore,
				MaxMatchesPerGroup: cfg.MatchMaxPerGroup,
				WorkerCount:        cfg.MatchWorkerCount,
			})

			reconciler := reconcile.NewReconciler(log, reconcile.Config{
				SamplesPerTier: cfg.SamplesPerTier,
			})

			var emitter processor.EventEmitter
			if len(cfg.KafkaBrokers) > 0 {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, log)
				emitter = events.NewEmitter(producer, log)
			}

			var provenanceService *graph.ProvenanceService
			var provenance processor.ProvenanceRecorder
			if cfg.GraphDBEnabled {
				graphClient, err = graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, log)
				if err != nil {
					return err
				}
				if err := graphClient.VerifyConnectivity(ctx); err != nil {
					return fmt.Errorf("graph database unreachable: %w", err)
				}
				provenanceService = graph.NewProvenanceService(graphClient, log)
				provenance = provenanceService
			}

			proc := processor.NewProcessor(log, entityRepo, recordRepo, reportRepo, grouping.New(), engine, reconciler, emitter, provenance)

			if cfg.KafkaConsumerEnabled {
				consumer = kafka.NewConsumer(cfg, log, proc.ProcessMessage)
			}

			container, err := ectoinject.NewDIDefaultContainer()
			if err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[ectologger.Logger](container, log); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*entityrepo.Repository](container, entityRepo); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*inspectionrecord.Repository](container, recordRepo); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*matchreport.Repository](container, reportRepo); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*processor.Processor](container, proc); err != nil {
				return err
			}
			if provenanceService != nil {
				if err := ectoinject.RegisterInstance[*graph.ProvenanceService](container, provenanceService); err != nil {
					return err
				}
			}
			if err := ectoinject.SetDefaultContainer(container.GetContainerID()); err != nil {
				return err
			}

			e.HTTPErrorHandler = middleware.Error(log)
			e.Use(otelecho.Middleware(cfg.AppName))
			e.Use(middleware.Context())
			e.Use(middleware.Logger(log))
			e.Use(echomw.Recover())
			e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
				AllowOrigins: cfg.AllowOrigins,
				AllowMethods: cfg.AllowMethods,
			}))

			var consumerCheck interface{ Health() bool }
			if consumer != nil {
				consumerCheck = consumer
			}
			checker = health.NewChecker(db.Unsafe(), consumerCheck, version)
			checker.RegisterRoutes(e)

			api := e.Group("/api/v1")
			reconciliation.Register(api.Group("/reconciliation"))
			entityroutes.Register(api.Group("/entities"))
			records.Register(api.Group("/records"))

			return nil
		},
		stop: func(ctx context.Context) error {
			if producer != nil {
				if err := producer.Close(); err != nil {
					log.WithError(err).Warn("Failed to close producer")
				}
			}
			if graphClient != nil {
				if err := graphClient.Close(ctx); err != nil {
					log.WithError(err).Warn("Failed to close graph client")
				}
			}
			return nil
		},
	})

	manager.AddDependency(&dependency{
		name: "kafka-consumer",
		deps: []string{"services"},
		start: func(ctx context.Context) error {
			if consumer == nil {
				return nil
			}
			return consumer.Start(ctx)
		},
		stop: func(ctx context.Context) error {
			if consumer == nil {
				return nil
			}
			return consumer.Stop()
		},
	})

	manager.AddDependency(&dependency{
		name: "http-server",
		deps: []string{"services"},
		start: func(ctx context.Context) error {
			e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
			e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
			e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
			e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
			e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

			go func() {
				if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
					log.WithError(err).Error("HTTP server stopped unexpectedly")
				}
			}()
			return nil
		},
		stop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})

	if err := manager.Start(ctx); err != nil {
		log.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	checker.SetReady(true)
	log.WithFields(map[string]any{
		"app":  cfg.AppName,
		"port": cfg.Port,
	}).Info("Service started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}
