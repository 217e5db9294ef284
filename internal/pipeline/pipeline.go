// Package pipeline wires the harvesting components into one end-to-end
// run: both categories harvested concurrently, joined before the final
// checkpoint save and document finalize, then summarized for the CLI and
// the upload/publish collaborators.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/takiuddin/nameharvest/internal/checkpoint"
	"github.com/takiuddin/nameharvest/internal/config"
	"github.com/takiuddin/nameharvest/internal/harvest"
	"github.com/takiuddin/nameharvest/internal/orchestrator"
	"github.com/takiuddin/nameharvest/internal/progress"
)

// collaboratorTimeout bounds the post-run publish and upload calls,
// which must still run after cancellation.
const collaboratorTimeout = 30 * time.Second

// Deps bundles the pipeline's collaborators. Publisher and Uploader are
// optional; everything else is required.
type Deps struct {
	Fetcher   harvest.Fetcher
	Extractor harvest.Extractor
	Sink      harvest.RecordSink
	Recorder  *progress.Recorder
	Tracker   *checkpoint.Tracker
	Publisher harvest.Publisher
	Uploader  harvest.Uploader
	Clock     harvest.Clock
	Logger    *zap.Logger
}

// Pipeline drives one harvest run.
type Pipeline struct {
	cfg       config.Config
	deps      Deps
	orch      *orchestrator.Orchestrator
	runID     string
	artifacts harvest.ArtifactPaths
}

// New constructs a Pipeline for one run over the given artifact paths.
func New(cfg config.Config, runID string, artifacts harvest.ArtifactPaths, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	orch := orchestrator.New(
		deps.Fetcher,
		deps.Extractor,
		deps.Sink,
		deps.Recorder,
		orchestrator.Config{
			Workers:          cfg.Harvest.Workers,
			DefaultPageCount: cfg.Harvest.DefaultPageCount,
			MaxPages:         cfg.Harvest.MaxPages,
			RetryDelay:       cfg.RetryDelay(),
		},
		deps.Logger.Named("orchestrator"),
	)
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		orch:      orch,
		runID:     runID,
		artifacts: artifacts,
	}
}

// Run executes the harvest to completion and returns the summary. A
// discovery failure in one category degrades that category to zero
// completed pages without touching the other; a finalize failure is a
// run-level error since there is no later chance to write the snapshot.
// On cancellation, whatever was collected is still finalized and
// checkpointed; partial output is a reported outcome, not a failure.
func (p *Pipeline) Run(ctx context.Context) (harvest.RunSummary, error) {
	start := p.deps.Clock.Now()
	p.deps.Logger.Info("starting harvest run",
		zap.String("run_id", p.runID),
		zap.Int("workers", p.cfg.Harvest.Workers),
	)

	stopTicker := p.startCheckpointTicker(ctx)
	defer stopTicker()

	results := make(map[harvest.Category]harvest.CategoryResult, len(harvest.Categories))
	var mu sync.Mutex

	var g errgroup.Group
	for _, category := range harvest.Categories {
		category := category
		listingURL, ok := p.categoryURL(category)
		if !ok {
			p.deps.Logger.Warn("no listing path configured for category",
				zap.String("category", string(category)),
			)
			continue
		}
		g.Go(func() error {
			res, err := p.orch.HarvestCategory(ctx, category, listingURL)
			if err != nil {
				var df *harvest.DiscoveryFailure
				if !errors.As(err, &df) {
					return err
				}
				p.deps.Logger.Error("category discovery failed",
					zap.String("category", string(category)),
					zap.Error(err),
				)
				res = harvest.CategoryResult{Category: category}
			}
			mu.Lock()
			results[category] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return harvest.RunSummary{}, fmt.Errorf("category harvest: %w", err)
	}
	stopTicker()

	prog := p.deps.Recorder.Snapshot()
	if err := p.deps.Tracker.Save(prog); err != nil {
		p.deps.Logger.Error("final checkpoint save failed", zap.Error(err))
	}

	if err := p.deps.Sink.Finalize(p.artifacts.JSON); err != nil {
		return harvest.RunSummary{}, fmt.Errorf("finalize document snapshot: %w", err)
	}

	summary := p.buildSummary(results, p.deps.Clock.Now().Sub(start))
	p.deps.Logger.Info("harvest run finished",
		zap.String("run_id", p.runID),
		zap.Int("total_records", summary.TotalRecords),
		zap.Duration("elapsed", summary.Elapsed),
	)

	p.notifyCollaborators(ctx, &summary)
	return summary, nil
}

func (p *Pipeline) categoryURL(category harvest.Category) (string, bool) {
	path, ok := p.cfg.Source.CategoryPaths[string(category)]
	if !ok || path == "" {
		return "", false
	}
	return p.cfg.Source.BaseURL + path, true
}

func (p *Pipeline) buildSummary(
	results map[harvest.Category]harvest.CategoryResult,
	elapsed time.Duration,
) harvest.RunSummary {
	completed := make(map[harvest.Category]int, len(results))
	for category, res := range results {
		completed[category] = len(res.CompletedPages)
	}
	return harvest.RunSummary{
		RunID:             p.runID,
		TotalRecords:      p.deps.Sink.TotalCount(),
		RecordsByCategory: p.deps.Sink.CountByCategory(),
		CompletedPages:    completed,
		Elapsed:           elapsed,
		Artifacts:         p.artifacts,
	}
}

// notifyCollaborators publishes the completion event and uploads the
// finished artifacts. Both are best-effort: failures are logged, never
// fatal, and both still run after cancellation on a detached context.
func (p *Pipeline) notifyCollaborators(ctx context.Context, summary *harvest.RunSummary) {
	if p.deps.Publisher == nil && p.deps.Uploader == nil {
		return
	}
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), collaboratorTimeout)
	defer cancel()

	if p.deps.Publisher != nil {
		id, err := p.deps.Publisher.Publish(detached, p.cfg.Publish.TopicName, summary)
		if err != nil {
			p.deps.Logger.Error("publish run summary failed", zap.Error(err))
		} else {
			p.deps.Logger.Info("published run summary", zap.String("message_id", id))
		}
	}

	if p.deps.Uploader != nil {
		uris, err := p.deps.Uploader.Upload(detached, []string{
			p.artifacts.CSV,
			p.artifacts.JSON,
			p.artifacts.SQLite,
		})
		if err != nil {
			p.deps.Logger.Error("artifact upload failed", zap.Error(err))
			return
		}
		summary.UploadedURIs = uris
		p.deps.Logger.Info("artifacts uploaded", zap.Strings("uris", uris))
	}
}

// startCheckpointTicker saves periodic snapshots when a cadence is
// configured. The returned stop function is idempotent.
func (p *Pipeline) startCheckpointTicker(ctx context.Context) func() {
	interval := p.cfg.CheckpointInterval()
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.deps.Tracker.Save(p.deps.Recorder.Snapshot()); err != nil {
					p.deps.Logger.Warn("periodic checkpoint save failed", zap.Error(err))
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
