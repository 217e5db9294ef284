// Package harvest defines core types shared across the harvesting pipeline.
package harvest

import (
	"time"
)

// Category classifies a listing into one of the fixed source partitions.
type Category string

// The source publishes exactly two listings; the set is configuration,
// never discovered at runtime.
const (
	CategoryMale   Category = "male"
	CategoryFemale Category = "female"
)

// Categories enumerates every known category in dispatch order.
var Categories = []Category{CategoryMale, CategoryFemale}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryMale, CategoryFemale:
		return true
	}
	return false
}

// Record is one harvested name entry. Immutable once created; the sink
// owns it after persistence. Field order fixes the row-store column order.
type Record struct {
	Name     string   `csv:"english_name" json:"english_name"`
	Arabic   string   `csv:"arabic_name" json:"arabic_name"`
	Meaning  string   `csv:"meaning" json:"meaning"`
	URL      string   `csv:"url" json:"url"`
	Category Category `csv:"gender" json:"gender"`
}

// PageTask identifies one listing page to fetch. Created by the
// orchestrator when expanding a category's page range, consumed exactly
// once by a pool worker.
type PageTask struct {
	Page     int
	Category Category
	URL      string
}

// PageOutcome is the transient result of attempting one PageTask.
type PageOutcome struct {
	Page    int
	Records int
	Success bool
}

// CategoryResult summarizes one category's harvest after pool drain and
// the retry pass.
type CategoryResult struct {
	Category       Category
	TotalPages     int
	CompletedPages []int
	FailedPages    []int
	Records        int
}

// RunProgress is the checkpoint snapshot persisted by the tracker.
type RunProgress struct {
	RunID          string             `json:"run_id"`
	CompletedPages map[Category][]int `json:"completed_pages"`
	TotalRecords   int                `json:"total_records"`
	LastUpdated    time.Time          `json:"last_updated"`
}

// ArtifactPaths names the durable outputs of one run.
type ArtifactPaths struct {
	CSV        string `json:"csv"`
	JSON       string `json:"json"`
	SQLite     string `json:"sqlite"`
	Checkpoint string `json:"checkpoint"`
}

// RunSummary is the driver's final report, consumed by the CLI and the
// upload collaborator.
type RunSummary struct {
	RunID             string            `json:"run_id"`
	TotalRecords      int               `json:"total_records"`
	RecordsByCategory map[Category]int  `json:"records_by_category"`
	CompletedPages    map[Category]int  `json:"completed_pages"`
	Elapsed           time.Duration     `json:"elapsed"`
	Artifacts         ArtifactPaths     `json:"artifacts"`
	UploadedURIs      []string          `json:"uploaded_uris,omitempty"`
}
