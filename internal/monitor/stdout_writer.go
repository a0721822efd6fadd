package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"objectwatch/internal/status"
)

// StdoutWriter prints a plain status line whenever the status message or the
// counts change, and one line per alert.
type StdoutWriter struct {
	out  io.Writer
	mu   sync.Mutex
	last string
}

// NewStdoutWriter creates a StdoutWriter writing to os.Stdout.
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{out: os.Stdout}
}

func (w *StdoutWriter) Name() string { return "stdout" }

// WriteStatus prints the snapshot summary if it differs from the last one.
func (w *StdoutWriter) WriteStatus(s status.Snapshot) error {
	line := fmt.Sprintf("%s present=%d missing=%d capacity=%d", s.StatusMessage, s.PresentCount, s.MissingCount, s.TotalCapacity)
	w.mu.Lock()
	defer w.mu.Unlock()
	if line == w.last {
		return nil
	}
	w.last = line
	_, err := fmt.Fprintf(w.out, "[%s] frame=%d %s\n", s.Timestamp.Format(time.RFC3339), s.Frame, line)
	return err
}

// WriteAlert prints one alert line.
func (w *StdoutWriter) WriteAlert(a status.AlertRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.out, "[%s] ALERT %s: %s\n", a.Timestamp.Format(time.RFC3339), a.Kind, a)
	return err
}

// JSONStdoutWriter prints every snapshot and alert as one JSON document per line.
type JSONStdoutWriter struct {
	out io.Writer
	mu  sync.Mutex
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) Name() string { return "stdout_json" }

func (w *JSONStdoutWriter) WriteStatus(s status.Snapshot) error {
	return w.emit(s)
}

func (w *JSONStdoutWriter) WriteAlert(a status.AlertRow) error {
	return w.emit(struct {
		Type string `json:"type"`
		status.AlertRow
	}{"alert", a})
}

func (w *JSONStdoutWriter) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
