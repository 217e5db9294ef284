// Package checkpoint persists run progress snapshots for observability
// and future resumption.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

// Tracker writes and reads the checkpoint artifact. Each Save overwrites
// the previous snapshot; the artifact is never appended to.
type Tracker struct {
	path   string
	logger *zap.Logger
}

// New builds a Tracker writing to path.
func New(path string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{path: path, logger: logger}
}

// Save persists the snapshot, replacing any previous one.
func (t *Tracker) Save(p harvest.RunProgress) error {
	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := os.WriteFile(t.path, payload, 0o600); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", t.path, err)
	}
	t.logger.Debug("checkpoint saved",
		zap.String("path", t.path),
		zap.Int("total_records", p.TotalRecords),
	)
	return nil
}

// Load returns the last snapshot, or (nil, nil) when none has been
// written yet. The current run never consumes its own snapshot; the
// contract exists for inspection and future resumption.
func (t *Tracker) Load() (*harvest.RunProgress, error) {
	payload, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", t.path, err)
	}
	var p harvest.RunProgress
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", t.path, err)
	}
	return &p, nil
}

// Path returns the checkpoint artifact location.
func (t *Tracker) Path() string {
	return t.path
}
