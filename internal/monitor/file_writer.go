package monitor

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"objectwatch/internal/status"
)

// FileWriter appends snapshots and alerts to JSONL files.
type FileWriter struct {
	mu         sync.Mutex
	statusFile *os.File
	alertFile  *os.File
	statusEnc  *json.Encoder
	alertEnc   *json.Encoder
}

// NewFileWriter creates a FileWriter. alertPath may be empty to skip the
// alert log.
func NewFileWriter(statusPath, alertPath string) (*FileWriter, error) {
	sf, err := os.Create(statusPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{statusFile: sf, statusEnc: json.NewEncoder(sf)}
	if alertPath != "" {
		af, err := os.Create(alertPath)
		if err != nil {
			sf.Close()
			return nil, err
		}
		fw.alertFile = af
		fw.alertEnc = json.NewEncoder(af)
	}
	return fw, nil
}

func (f *FileWriter) Name() string { return "file" }

// WriteStatus logs a single snapshot.
func (f *FileWriter) WriteStatus(s status.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusEnc.Encode(s)
}

// WriteAlert logs a single alert, if enabled.
func (f *FileWriter) WriteAlert(a status.AlertRow) error {
	if f.alertEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alertEnc.Encode(a)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var errs []error
	if f.statusFile != nil {
		errs = append(errs, f.statusFile.Close())
	}
	if f.alertFile != nil {
		errs = append(errs, f.alertFile.Close())
	}
	return errors.Join(errs...)
}
