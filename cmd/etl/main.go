package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sparkify/datalake-etl/internal/adapter"
	"github.com/sparkify/datalake-etl/internal/config"
	"github.com/sparkify/datalake-etl/internal/domain"
	"github.com/sparkify/datalake-etl/internal/logger"
	"github.com/sparkify/datalake-etl/internal/messaging"
	"github.com/sparkify/datalake-etl/internal/metrics"
	"github.com/sparkify/datalake-etl/internal/pipeline"
	"github.com/sparkify/datalake-etl/internal/providers/jetstream"
	"github.com/sparkify/datalake-etl/internal/ratelimit"
	"github.com/sparkify/datalake-etl/internal/session"
	"github.com/sparkify/datalake-etl/internal/store"
	"github.com/sparkify/datalake-etl/internal/webhook"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (defaults to dl.cfg)")
	envPath    = flag.String("env", "config/", "Path to environment files")
	history    = flag.Int("history", 0, "Print the given number of recent runs from the run ledger and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadETLConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Cancel the run on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Log.Debug,
		Service:         "etl",
		SentryDSN:       cfg.Log.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "etl",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	clock := adapter.NewClock()
	runID := pipeline.NewRunID(clock.Now())
	logger.InfoCtx(ctx, "Starting ETL",
		zap.String("runID", runID),
		zap.String("inputRoot", cfg.Pipeline.InputRoot),
		zap.String("outputRoot", cfg.Pipeline.OutputRoot),
	)

	// Initialize execution context provider
	provider := session.NewProvider(session.Config{
		RunID: runID,
		AWS: adapter.S3Options{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SessionToken:    cfg.AWS.SessionToken,
			Endpoint:        cfg.AWS.Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		},
		GCSCredentialsFile: cfg.GCS.CredentialsFile,
		GCSEndpoint:        cfg.GCS.Endpoint,
		ReaderConcurrency:  cfg.Reader.Concurrency,
		ReaderMaxLineBytes: cfg.Reader.MaxLineBytes,
		Compression:        cfg.Output.Compression,
		MaxRowsPerFile:     cfg.Output.MaxRowsPerFile,
		RequestRate: ratelimit.Config{
			RequestsPerSecond: cfg.Reader.RequestsPerSecond,
			Burst:             cfg.Reader.RequestBurst,
		},
	}, session.DefaultFactories())

	// Connect to the run ledger database when configured
	var ledger store.RunStore
	if cfg.Database.Enabled() {
		db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
		}
		if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
			logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
		}
		if err := store.Migrate(db); err != nil {
			logger.FatalCtx(ctx, "Failed to migrate run ledger", zap.Error(err))
		}
		ledger = store.NewPGStore(db)
		logger.InfoCtx(ctx, "Connected to run ledger", zap.String("dbname", cfg.Database.DBName))
	}

	// Run notifications
	var publishers []messaging.Publisher
	if cfg.NATS.URL != "" {
		natsPublisher, err := jetstream.NewPublisher(jetstream.Config{
			URL:            cfg.NATS.URL,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, adapter.NewNatsJetStream(), adapter.NewJSON())
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		publishers = append(publishers, natsPublisher)
	}
	if cfg.Webhook.URL != "" {
		publishers = append(publishers, webhook.NewPublisher(webhook.Config{
			URL:    cfg.Webhook.URL,
			Secret: cfg.Webhook.Secret,
		}, adapter.NewHTTPClient(cfg.Webhook.Timeout), adapter.NewJSON(), clock))
		logger.InfoCtx(ctx, "Run webhook enabled", zap.String("url", cfg.Webhook.URL))
	}
	publisher := messaging.Fanout(publishers...)

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		InputRoot:  cfg.Pipeline.InputRoot,
		OutputRoot: cfg.Pipeline.OutputRoot,
		Pipeline: pipeline.Config{
			SongDataPattern: cfg.Pipeline.SongDataPattern,
			LogDataPattern:  cfg.Pipeline.LogDataPattern,
			SongPlayPage:    cfg.Pipeline.SongPlayPage,
			Location:        cfg.Pipeline.Location(),
			IDStrategy:      cfg.Pipeline.SongplayIDStrategy,
			Partitioned:     cfg.Output.Partitioned,
		},
	}, provider, ledger, publisher, clock)

	if *history > 0 {
		runs, err := runner.History(ctx, *history)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to read run history", zap.Error(err))
		}
		printHistory(os.Stdout, runs)
		publisher.Close()
		return
	}

	_, runErr := runner.Run(ctx)

	// Push run metrics before tearing down
	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			logger.Warn("Failed to push metrics", zap.Error(err), zap.String("url", cfg.Metrics.PushgatewayURL))
		}
		cancel()
	}

	publisher.Close()
	if s, err := provider.Session(context.Background()); err == nil {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close storage clients", zap.Error(err))
		}
	}

	if runErr != nil {
		logger.FatalCtx(ctx, "ETL failed", zap.Error(runErr))
	}
	logger.InfoCtx(ctx, "ETL finished", zap.String("runID", runID))
}

func printHistory(w io.Writer, runs []*domain.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tSTARTED\tDURATION\tSONGPLAYS\tERROR")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			run.RunID,
			run.Status,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Duration().Round(time.Second),
			run.Tables[domain.TableSongPlays].Rows,
			run.Error)
	}
	tw.Flush()
}
