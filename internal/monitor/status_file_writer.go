package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"objectwatch/internal/status"
)

// StatusFileWriter replaces a single JSON file with the latest snapshot on
// every cycle. Readers polling the file never observe a partial write.
type StatusFileWriter struct {
	path string
}

// NewStatusFileWriter writes the placeholder snapshot to path so readers
// have something to show before the first cycle.
func NewStatusFileWriter(path, targetClass string) (*StatusFileWriter, error) {
	w := &StatusFileWriter{path: path}
	if err := w.WriteStatus(status.Placeholder(targetClass)); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *StatusFileWriter) Name() string { return "status_file" }

// Path returns the file being maintained.
func (w *StatusFileWriter) Path() string { return w.path }

// WriteStatus encodes s to a temporary file in the same directory and
// renames it over the target.
func (w *StatusFileWriter) WriteStatus(s status.Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".status-*.json")
	if err != nil {
		return fmt.Errorf("create temp status: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write temp status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close temp status: %w", err)
	}
	if err := os.Rename(name, w.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace status: %w", err)
	}
	return nil
}
