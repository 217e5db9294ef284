package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/takiuddin/nameharvest/internal/harvest"
	"github.com/takiuddin/nameharvest/internal/progress"
)

const listingURL = "https://example.com/boy-names"

type fakeFetcher struct {
	mu         sync.Mutex
	failures   map[string]int
	failAlways map[string]bool
	calls      map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		failures:   make(map[string]int),
		failAlways: make(map[string]bool),
		calls:      make(map[string]int),
	}
}

// Fetch echoes the URL as the body so the extractor can key off it.
func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failAlways[url] {
		return nil, &harvest.FetchFailure{URL: url, LastErr: errors.New("permanent outage")}
	}
	if f.failures[url] > 0 {
		f.failures[url]--
		return nil, &harvest.FetchFailure{URL: url, LastErr: errors.New("transient outage")}
	}
	return []byte(url), nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) distinctURLs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeExtractor struct {
	totalPages int
	recordsFor func(url string, category harvest.Category) []harvest.Record
}

func (e *fakeExtractor) Extract(content []byte, category harvest.Category) ([]harvest.Record, int) {
	url := string(content)
	var records []harvest.Record
	if e.recordsFor != nil {
		records = e.recordsFor(url, category)
	} else {
		records = []harvest.Record{{Name: url, Category: category}}
	}
	total := 0
	if !strings.Contains(url, "?page=") {
		total = e.totalPages
	}
	return records, total
}

type fakeSink struct {
	mu      sync.Mutex
	batches map[int]int
	records []harvest.Record
	saveErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{batches: make(map[int]int)}
}

func (s *fakeSink) SaveBatch(records []harvest.Record, page int, _ harvest.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[page]++
	s.records = append(s.records, records...)
	return s.saveErr
}

func (s *fakeSink) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeSink) CountByCategory() map[harvest.Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[harvest.Category]int)
	for _, r := range s.records {
		counts[r.Category]++
	}
	return counts
}

func (s *fakeSink) Finalize(string) error { return nil }

func (s *fakeSink) batchCount(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches[page]
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(0, 0).UTC() }

func testOrchestrator(f harvest.Fetcher, e harvest.Extractor, s harvest.RecordSink, cfg Config) *Orchestrator {
	return New(f, e, s, progress.NewRecorder("test-run", fixedClock{}), cfg, nil)
}

func TestHarvestCategoryAllPagesSucceed(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	sink := newFakeSink()
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 3}, sink, Config{
		Workers: 2, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, 3, result.TotalPages)
	require.Equal(t, []int{1, 2, 3}, result.CompletedPages)
	require.Empty(t, result.FailedPages)
	require.Equal(t, 3, result.Records)

	// One batch per page, no duplicates.
	for page := 1; page <= 3; page++ {
		require.Equal(t, 1, sink.batchCount(page), "page %d", page)
	}
}

func TestRetryPassRecoversTransientFailure(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failures[listingURL+"?page=2"] = 1
	sink := newFakeSink()
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 3}, sink, Config{
		Workers: 2, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2, 3}, result.CompletedPages)
	require.Empty(t, result.FailedPages)
	require.Equal(t, 2, fetcher.callCount(listingURL+"?page=2"))
	require.Equal(t, 1, sink.batchCount(2))
}

func TestPageFailsBothAttempts(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failAlways[listingURL+"?page=2"] = true
	sink := newFakeSink()
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 3}, sink, Config{
		Workers: 2, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, []int{1, 3}, result.CompletedPages)
	require.Equal(t, []int{2}, result.FailedPages)
	require.Zero(t, sink.batchCount(2))
}

func TestZeroRecordPageStillCompletes(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	sink := newFakeSink()
	extractor := &fakeExtractor{
		totalPages: 2,
		recordsFor: func(url string, category harvest.Category) []harvest.Record {
			if strings.HasSuffix(url, "?page=2") {
				return nil
			}
			return []harvest.Record{{Name: url, Category: category}}
		},
	}
	o := testOrchestrator(fetcher, extractor, sink, Config{
		Workers: 1, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, result.CompletedPages)
	require.Empty(t, result.FailedPages)
	require.Zero(t, sink.batchCount(2), "empty page never reaches the sink")
}

func TestDiscoveryFailureIsFatalForCategory(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.failAlways[listingURL] = true
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 3}, newFakeSink(), Config{
		Workers: 2, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)

	var df *harvest.DiscoveryFailure
	require.ErrorAs(t, err, &df)
	require.Equal(t, harvest.CategoryMale, df.Category)
	require.Empty(t, result.CompletedPages)
}

func TestPaginationFallback(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 0}, newFakeSink(), Config{
		Workers: 2, DefaultPageCount: 4, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, 4, result.TotalPages)
	require.Len(t, result.CompletedPages, 4)
	// Listing URL plus pages 2..4; page 1 reuses the listing URL.
	require.Equal(t, 4, fetcher.distinctURLs())
}

func TestMaxPagesClampsDiscovery(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 50}, newFakeSink(), Config{
		Workers: 4, DefaultPageCount: 10, MaxPages: 3, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, 3, result.TotalPages)
	require.Equal(t, []int{1, 2, 3}, result.CompletedPages)
}

func TestPersistFailureDoesNotFailPage(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	sink := newFakeSink()
	sink.saveErr = errors.New("disk full")
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 2}, sink, Config{
		Workers: 1, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(context.Background(), harvest.CategoryMale, listingURL)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2}, result.CompletedPages)
	require.Empty(t, result.FailedPages)
}

func TestCancellationStopsDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := newFakeFetcher()
	o := testOrchestrator(fetcher, &fakeExtractor{totalPages: 20}, newFakeSink(), Config{
		Workers: 2, DefaultPageCount: 10, RetryDelay: time.Millisecond,
	})

	result, err := o.HarvestCategory(ctx, harvest.CategoryMale, listingURL)
	require.NoError(t, err)
	require.LessOrEqual(t, len(result.CompletedPages)+len(result.FailedPages), 20)
}
