package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cloudpubsub "cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/takiuddin/nameharvest/internal/api"
	"github.com/takiuddin/nameharvest/internal/checkpoint"
	"github.com/takiuddin/nameharvest/internal/clock/system"
	"github.com/takiuddin/nameharvest/internal/config"
	"github.com/takiuddin/nameharvest/internal/extractor"
	collyfetcher "github.com/takiuddin/nameharvest/internal/fetcher/colly"
	"github.com/takiuddin/nameharvest/internal/harvest"
	"github.com/takiuddin/nameharvest/internal/logging"
	"github.com/takiuddin/nameharvest/internal/metrics"
	"github.com/takiuddin/nameharvest/internal/pipeline"
	"github.com/takiuddin/nameharvest/internal/progress"
	pubsubpublisher "github.com/takiuddin/nameharvest/internal/publisher/pubsub"
	"github.com/takiuddin/nameharvest/internal/sink"
	gcsuploader "github.com/takiuddin/nameharvest/internal/uploader/gcs"
)

const shutdownGrace = 5 * time.Second

// newHarvestCmd creates the 'harvest' subcommand, which runs one full
// harvest of every configured category to completion.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs one full harvest of the configured listing site",
		Long: `Harvests every configured category concurrently: discovers the
page range, fans pages out to a bounded worker pool, retries failures
once, and finalizes the CSV, SQLite, and JSON artifacts.`,
		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := system.New()
	runID := uuid.NewString()
	artifacts, err := artifactPaths(cfg.Storage.OutputDir, clk.Now().Format("20060102_150405"))
	if err != nil {
		return err
	}

	snk, err := sink.New(sink.Config{
		CSVPath:    artifacts.CSV,
		SQLitePath: artifacts.SQLite,
		Schema:     schemaFromConfig(cfg.Storage.Table),
	}, logger.Named("sink"))
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer func() {
		if cerr := snk.Close(); cerr != nil {
			logger.Warn("sink close failed", zap.Error(cerr))
		}
	}()

	recorder := progress.NewRecorder(runID, clk)
	deps := pipeline.Deps{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:      cfg.HTTP.UserAgent,
			Timeout:        cfg.Timeout(),
			MaxRetries:     cfg.HTTP.MaxRetries,
			BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
			BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
		}, logger.Named("fetcher")),
		Extractor: extractor.New(cfg.Source.BaseURL, selectorsFromConfig(cfg.Selectors)),
		Sink:      snk,
		Recorder:  recorder,
		Tracker:   checkpoint.New(artifacts.Checkpoint, logger.Named("checkpoint")),
		Clock:     clk,
		Logger:    logger,
	}

	pub, pubCleanup, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer pubCleanup()
	deps.Publisher = pub

	upl, uplCleanup, err := buildUploader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init uploader: %w", err)
	}
	defer uplCleanup()
	deps.Uploader = upl

	stopServer := startStatusServer(cfg, recorder, logger)
	defer stopServer()

	summary, err := pipeline.New(cfg, runID, artifacts, deps).Run(ctx)
	if err != nil {
		return fmt.Errorf("harvest run: %w", err)
	}

	logger.Info("harvest complete",
		zap.String("run_id", summary.RunID),
		zap.Int("total_records", summary.TotalRecords),
		zap.Duration("elapsed", summary.Elapsed),
		zap.String("csv", summary.Artifacts.CSV),
		zap.String("json", summary.Artifacts.JSON),
		zap.String("sqlite", summary.Artifacts.SQLite),
	)
	return nil
}

// artifactPaths creates the output directory and lays out the
// timestamped artifact file names inside it.
func artifactPaths(dir, stamp string) (harvest.ArtifactPaths, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return harvest.ArtifactPaths{}, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return harvest.ArtifactPaths{
		CSV:        filepath.Join(dir, fmt.Sprintf("muslim_names_%s.csv", stamp)),
		JSON:       filepath.Join(dir, fmt.Sprintf("muslim_names_%s.json", stamp)),
		SQLite:     filepath.Join(dir, fmt.Sprintf("muslim_names_%s.db", stamp)),
		Checkpoint: filepath.Join(dir, fmt.Sprintf("progress_%s.json", stamp)),
	}, nil
}

func schemaFromConfig(sc config.SchemaConfig) sink.Schema {
	schema := sink.Schema{Name: sc.Name}
	for _, col := range sc.Columns {
		schema.Columns = append(schema.Columns, sink.Column{
			Name:       col.Name,
			Definition: col.Definition,
		})
	}
	for _, idx := range sc.Indexes {
		schema.Indexes = append(schema.Indexes, sink.Index{
			Name:   idx.Name,
			Column: idx.Column,
		})
	}
	return schema
}

func selectorsFromConfig(sc config.SelectorConfig) extractor.Selectors {
	return extractor.Selectors{
		RowClass:          sc.RowClass,
		MaleAnchorClass:   sc.MaleAnchorClass,
		FemaleAnchorClass: sc.FemaleAnchorClass,
		SecondaryClass:    sc.SecondaryClass,
		PaginationStyle:   sc.PaginationStyle,
	}
}

// buildPublisher returns the Pub/Sub publisher when a topic is
// configured, or nil to disable publishing.
func buildPublisher(ctx context.Context, cfg config.Config) (harvest.Publisher, func(), error) {
	if cfg.Publish.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := cloudpubsub.NewClient(ctx, cfg.Publish.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.Publish.TopicName)
	cleanup := func() {
		topic.Stop()
		_ = client.Close()
	}
	return pubsubpublisher.New(topic), cleanup, nil
}

// buildUploader returns the GCS uploader when a bucket is configured,
// or nil to disable uploads.
func buildUploader(ctx context.Context, cfg config.Config) (harvest.Uploader, func(), error) {
	if cfg.Upload.GCSBucket == "" {
		return nil, func() {}, nil
	}
	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("storage client: %w", err)
	}
	upl, err := gcsuploader.New(client, gcsuploader.Config{
		Bucket: cfg.Upload.GCSBucket,
		Prefix: cfg.Upload.Prefix,
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return upl, func() { _ = client.Close() }, nil
}

// startStatusServer serves /healthz, /progress, and /metrics while the
// harvest runs. The returned stop function shuts it down gracefully.
func startStatusServer(cfg config.Config, recorder *progress.Recorder, logger *zap.Logger) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(recorder, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
