package harvest

import (
	"context"
	"time"
)

// Fetcher retrieves one page body. Implementations own timeout, header
// defaults and transient-status retries; exhausted retries come back as a
// *FetchFailure value.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor parses one page's content into category-tagged records plus
// the total-page-count hint found in pagination markup. Pure function of
// its input; totalPages is 0 when the marker is missing or unparseable.
type Extractor interface {
	Extract(content []byte, category Category) (records []Record, totalPages int)
}

// RecordSink durably commits batches across every output representation.
// SaveBatch must be safe under concurrent invocation from pool workers;
// TotalCount is linearizable with respect to SaveBatch. Finalize writes
// the full in-memory sequence once, after all workers have joined.
type RecordSink interface {
	SaveBatch(records []Record, page int, category Category) error
	TotalCount() int
	CountByCategory() map[Category]int
	Finalize(path string) error
}

// Publisher pushes run completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Uploader ships finished artifacts to a dataset host and returns their
// destination URIs.
type Uploader interface {
	Upload(ctx context.Context, paths []string) ([]string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
