// Package progress tracks live run progress for checkpoints and the
// status server.
package progress

import (
	"sort"
	"sync"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

// Recorder accumulates completed pages and record counts as outcomes
// arrive, out of order, from pool workers in both categories. Safe for
// concurrent use; snapshots are detached copies.
type Recorder struct {
	mu        sync.Mutex
	runID     string
	clock     harvest.Clock
	completed map[harvest.Category][]int
	records   int
}

// NewRecorder builds a Recorder for one run.
func NewRecorder(runID string, clock harvest.Clock) *Recorder {
	return &Recorder{
		runID:     runID,
		clock:     clock,
		completed: make(map[harvest.Category][]int, len(harvest.Categories)),
	}
}

// PageCompleted records one successfully harvested page.
func (r *Recorder) PageCompleted(category harvest.Category, page int, records int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed[category] = append(r.completed[category], page)
	r.records += records
}

// Snapshot returns the current progress with page lists sorted ascending
// and stamped with the clock time.
func (r *Recorder) Snapshot() harvest.RunProgress {
	r.mu.Lock()
	defer r.mu.Unlock()

	pages := make(map[harvest.Category][]int, len(r.completed))
	for cat, list := range r.completed {
		copied := append([]int(nil), list...)
		sort.Ints(copied)
		pages[cat] = copied
	}
	return harvest.RunProgress{
		RunID:          r.runID,
		CompletedPages: pages,
		TotalRecords:   r.records,
		LastUpdated:    r.clock.Now(),
	}
}
