// Package sink persists record batches across three representations: a
// CSV row store, a SQLite tabular export, and an in-memory mirror that
// backs count queries and the finalize-time JSON document snapshot.
//
// A single mutex serializes writes so interleaved batches from pool
// workers cannot corrupt each other; persistence, not parsing, is the
// serialization point. Each representation fails independently: a CSV
// flush error does not stop the SQLite insert for the same batch, and a
// failed batch never leaves partial SQLite rows thanks to the per-batch
// transaction.
package sink

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

// Pragmas applied at open; WAL keeps concurrent readers cheap while the
// single writer appends.
const sqlitePragmas = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;
`

// Config captures the artifact paths and tabular schema for one run.
type Config struct {
	CSVPath    string
	SQLitePath string
	Schema     Schema
}

// Sink is the thread-safe multi-representation writer. Construct with
// New, feed batches with SaveBatch, snapshot with Finalize, and always
// Close to release the file and database handles.
type Sink struct {
	mu        sync.Mutex
	csvFile   *os.File
	csvWriter *gocsv.SafeCSVWriter
	db        *sql.DB
	schema    Schema
	records   []harvest.Record
	closed    bool
	logger    *zap.Logger
}

// New opens both write handles and prepares the artifacts: CSV header
// row first, SQLite table plus secondary indexes. An invalid configured
// schema is logged and replaced by the default, never fatal.
func New(cfg Config, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	schema := cfg.Schema
	if err := schema.Validate(); err != nil {
		logger.Warn("configured table schema invalid, using default",
			zap.Error(err),
		)
		schema = DefaultSchema()
	}

	csvFile, err := os.Create(cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("create csv %s: %w", cfg.CSVPath, err)
	}
	csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(csvFile))
	if err := gocsv.MarshalCSV(&[]harvest.Record{}, csvWriter); err != nil {
		_ = csvFile.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		_ = csvFile.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		_ = csvFile.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}
	if err := initTable(db, schema); err != nil {
		_ = csvFile.Close()
		_ = db.Close()
		return nil, err
	}

	return &Sink{
		csvFile:   csvFile,
		csvWriter: csvWriter,
		db:        db,
		schema:    schema,
		records:   make([]harvest.Record, 0, 256),
		logger:    logger,
	}, nil
}

func initTable(db *sql.DB, schema Schema) error {
	if _, err := db.Exec(sqlitePragmas); err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Name, err)
	}
	for _, stmt := range schema.createIndexSQL() {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// SaveBatch commits one page's records to every representation. Safe for
// concurrent invocation; per-representation failures are combined and
// reported without blocking the sibling representations. Empty batches
// are a no-op; emptiness is data, not failure.
func (s *Sink) SaveBatch(records []harvest.Record, page int, category harvest.Category) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sink is closed")
	}

	s.records = append(s.records, records...)

	var errs error
	if err := s.writeCSV(records); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("csv: %w", err))
	}
	if err := s.writeSQLite(records); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sqlite: %w", err))
	}

	if errs != nil {
		s.logger.Error("batch persisted with representation failures",
			zap.Int("page", page),
			zap.String("category", string(category)),
			zap.Error(errs),
		)
		return errs
	}

	s.logger.Info("saved batch",
		zap.Int("records", len(records)),
		zap.Int("page", page),
		zap.String("category", string(category)),
		zap.Int("total", len(s.records)),
	)
	return nil
}

func (s *Sink) writeCSV(records []harvest.Record) error {
	if err := gocsv.MarshalCSVWithoutHeaders(&records, s.csvWriter); err != nil {
		return err
	}
	s.csvWriter.Flush()
	return s.csvWriter.Error()
}

// writeSQLite inserts the batch inside one transaction so a failure
// leaves no partial rows from this batch and touches nothing committed
// earlier.
func (s *Sink) writeSQLite(records []harvest.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (english_name, arabic_name, meaning, url, gender) VALUES (?, ?, ?, ?, ?)",
		s.schema.Name,
	)
	stmt, err := tx.Prepare(insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.Exec(r.Name, r.Arabic, r.Meaning, r.URL, string(r.Category)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record %q: %w", r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Finalize writes the full in-memory record sequence as one complete
// JSON snapshot. Byte-deterministic for the same sequence, so re-running
// it is idempotent. Called once, after all workers have joined.
func (s *Sink) Finalize(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	s.logger.Info("finalized document snapshot",
		zap.Int("records", len(s.records)),
		zap.String("path", path),
	)
	return nil
}

// TotalCount returns the number of records mirrored so far. Linearizable
// with respect to SaveBatch: every batch committed before the call is
// reflected.
func (s *Sink) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// CountByCategory returns per-category record counts for the summary.
func (s *Sink) CountByCategory() map[harvest.Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[harvest.Category]int, len(harvest.Categories))
	for _, r := range s.records {
		counts[r.Category]++
	}
	return counts
}

// Close flushes and releases both write handles. Safe to call more than
// once; runs on every exit path including cancellation.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs error
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("flush csv: %w", err))
	}
	if err := s.csvFile.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close csv: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("close sqlite: %w", err))
	}
	return errs
}
