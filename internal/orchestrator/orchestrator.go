// Package orchestrator runs the per-category page-harvest protocol:
// discover the page range from page 1, dispatch a bounded worker pool
// over it, collect outcomes, then give failed pages one synchronous
// retry after a delay. Terminal on pool drain plus retry pass.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/takiuddin/nameharvest/internal/harvest"
	"github.com/takiuddin/nameharvest/internal/metrics"
	"github.com/takiuddin/nameharvest/internal/progress"
)

// Config controls the harvest protocol per run.
type Config struct {
	// Workers bounds the per-category pool.
	Workers int
	// DefaultPageCount is the fallback page bound when the pagination
	// marker is missing or unparseable.
	DefaultPageCount int
	// MaxPages, when > 0, clamps the discovered page count.
	MaxPages int
	// RetryDelay is the fixed wait before each retry-pass attempt.
	RetryDelay time.Duration
}

// Orchestrator coordinates fetch, extract, and persist for one or more
// categories. A single Orchestrator is shared by the concurrently
// running category harvests; all of its collaborators are safe for that.
type Orchestrator struct {
	fetcher   harvest.Fetcher
	extractor harvest.Extractor
	sink      harvest.RecordSink
	recorder  *progress.Recorder
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	fetcher harvest.Fetcher,
	extractor harvest.Extractor,
	sink harvest.RecordSink,
	recorder *progress.Recorder,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DefaultPageCount <= 0 {
		cfg.DefaultPageCount = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
	}
}

// HarvestCategory runs the full protocol for one category listing. A
// page-1 fetch failure is fatal for this category only and surfaces as a
// *harvest.DiscoveryFailure; everything past discovery degrades to
// permanently-failed pages instead of errors.
func (o *Orchestrator) HarvestCategory(
	ctx context.Context,
	category harvest.Category,
	listingURL string,
) (harvest.CategoryResult, error) {
	log := o.logger.With(zap.String("category", string(category)))
	log.Info("starting category harvest", zap.String("url", listingURL))

	body, err := o.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return harvest.CategoryResult{Category: category},
			&harvest.DiscoveryFailure{Category: category, Err: err}
	}

	_, total := o.extractor.Extract(body, category)
	if total == 0 {
		log.Warn("pagination marker missing, falling back to default page count",
			zap.Int("default", o.cfg.DefaultPageCount),
		)
		total = o.cfg.DefaultPageCount
	}
	if o.cfg.MaxPages > 0 && total > o.cfg.MaxPages {
		total = o.cfg.MaxPages
	}

	log.Info("dispatching pages",
		zap.Int("pages", total),
		zap.Int("workers", o.cfg.Workers),
	)

	outcomes := o.runPool(ctx, category, listingURL, total)

	result := harvest.CategoryResult{Category: category, TotalPages: total}
	var failed []int
	for _, out := range outcomes {
		if out.Success {
			result.CompletedPages = append(result.CompletedPages, out.Page)
			result.Records += out.Records
		} else {
			failed = append(failed, out.Page)
		}
	}

	o.retryPass(ctx, category, listingURL, failed, &result, log)

	sort.Ints(result.CompletedPages)
	log.Info("category harvest finished",
		zap.Int("completed", len(result.CompletedPages)),
		zap.Int("permanently_failed", len(result.FailedPages)),
		zap.Int("records", result.Records),
	)
	return result, nil
}

// runPool fans total page tasks out to a bounded worker pool and blocks
// until it drains. Cancellation stops dispatching new tasks; in-flight
// fetches run to completion or time out.
func (o *Orchestrator) runPool(
	ctx context.Context,
	category harvest.Category,
	listingURL string,
	total int,
) []harvest.PageOutcome {
	tasks := make(chan harvest.PageTask)
	outcomes := make(chan harvest.PageOutcome, total)

	workers := o.cfg.Workers
	if workers > total {
		workers = total
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				outcomes <- o.harvestPage(ctx, task)
			}
		}()
	}

feed:
	for page := 1; page <= total; page++ {
		task := harvest.PageTask{
			Page:     page,
			Category: category,
			URL:      pageURL(listingURL, page),
		}
		select {
		case tasks <- task:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()
	close(outcomes)

	collected := make([]harvest.PageOutcome, 0, total)
	for out := range outcomes {
		collected = append(collected, out)
	}
	return collected
}

// retryPass re-runs each failed page once, synchronously, after a fixed
// delay. Pages failing both attempts are permanently failed: logged,
// dropped, and never allowed to block the category's completion.
func (o *Orchestrator) retryPass(
	ctx context.Context,
	category harvest.Category,
	listingURL string,
	failed []int,
	result *harvest.CategoryResult,
	log *zap.Logger,
) {
	if len(failed) == 0 {
		return
	}
	sort.Ints(failed)
	log.Info("retrying failed pages", zap.Ints("pages", failed))

	for _, page := range failed {
		if ctx.Err() != nil || sleepCtx(ctx, o.cfg.RetryDelay) != nil {
			result.FailedPages = append(result.FailedPages, page)
			continue
		}
		metrics.ObserveRetry(string(category))
		out := o.harvestPage(ctx, harvest.PageTask{
			Page:     page,
			Category: category,
			URL:      pageURL(listingURL, page),
		})
		if out.Success {
			result.CompletedPages = append(result.CompletedPages, out.Page)
			result.Records += out.Records
			log.Info("retry succeeded", zap.Int("page", page))
		} else {
			result.FailedPages = append(result.FailedPages, page)
			log.Error("page permanently failed", zap.Int("page", page))
		}
	}
}

// harvestPage performs fetch, extract, persist for one task. A page with
// zero extracted records is still successful when the fetch succeeded. A
// persistence failure is reported but does not fail the page: re-running
// the batch would duplicate rows in the representations that committed.
func (o *Orchestrator) harvestPage(ctx context.Context, task harvest.PageTask) harvest.PageOutcome {
	start := time.Now()

	body, err := o.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		o.logger.Warn("page fetch failed",
			zap.String("category", string(task.Category)),
			zap.Int("page", task.Page),
			zap.Error(err),
		)
		metrics.ObservePage(string(task.Category), false, time.Since(start))
		return harvest.PageOutcome{Page: task.Page}
	}

	records, _ := o.extractor.Extract(body, task.Category)
	if len(records) > 0 {
		if err := o.sink.SaveBatch(records, task.Page, task.Category); err != nil {
			o.logger.Error("persist batch failed",
				zap.String("category", string(task.Category)),
				zap.Int("page", task.Page),
				zap.Error(err),
			)
		}
	}

	if o.recorder != nil {
		o.recorder.PageCompleted(task.Category, task.Page, len(records))
	}
	metrics.ObservePage(string(task.Category), true, time.Since(start))
	metrics.ObserveRecords(string(task.Category), len(records))
	return harvest.PageOutcome{Page: task.Page, Records: len(records), Success: true}
}

// pageURL builds the URL variant for one page; page 1 is the bare
// listing URL.
func pageURL(listingURL string, page int) string {
	if page == 1 {
		return listingURL
	}
	return fmt.Sprintf("%s?page=%d", listingURL, page)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
