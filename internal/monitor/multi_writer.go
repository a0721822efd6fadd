package monitor

import (
	"errors"
	"fmt"

	"objectwatch/internal/metrics"
	"objectwatch/internal/status"
)

// MultiWriter fans snapshots and alerts out to several writers. A failing
// writer does not stop the others; failures are counted per writer and
// returned joined.
type MultiWriter struct {
	statusWriters []StatusWriter
	alertWriters  []AlertWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(sws []StatusWriter, aws []AlertWriter) *MultiWriter {
	return &MultiWriter{statusWriters: sws, alertWriters: aws}
}

func (mw *MultiWriter) Name() string { return "multi" }

// Len reports how many writers are attached.
func (mw *MultiWriter) Len() (statusWriters, alertWriters int) {
	return len(mw.statusWriters), len(mw.alertWriters)
}

// WriteStatus sends a snapshot to all status writers.
func (mw *MultiWriter) WriteStatus(s status.Snapshot) error {
	var errs []error
	for _, w := range mw.statusWriters {
		if err := w.WriteStatus(s); err != nil {
			countWriterError(w, err)
			errs = append(errs, fmt.Errorf("%s: %w", writerName(w), err))
		}
	}
	return errors.Join(errs...)
}

// WriteAlert sends an alert to all alert writers.
func (mw *MultiWriter) WriteAlert(a status.AlertRow) error {
	return mw.WriteAlerts([]status.AlertRow{a})
}

// WriteAlerts sends alerts to all alert writers, using batch if supported.
func (mw *MultiWriter) WriteAlerts(rows []status.AlertRow) error {
	var errs []error
	for _, w := range mw.alertWriters {
		if bw, ok := w.(batchAlertWriter); ok {
			if err := bw.WriteAlerts(rows); err != nil {
				countWriterError(w, err)
				errs = append(errs, fmt.Errorf("%s: %w", writerName(w), err))
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteAlert(r); err != nil {
				countWriterError(w, err)
				errs = append(errs, fmt.Errorf("%s: %w", writerName(w), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every attached writer that holds resources.
func (mw *MultiWriter) Close() error {
	seen := make(map[any]bool)
	var errs []error
	closeOnce := func(w any) {
		c, ok := w.(interface{ Close() error })
		if !ok || seen[w] {
			return
		}
		seen[w] = true
		errs = append(errs, c.Close())
	}
	for _, w := range mw.statusWriters {
		closeOnce(w)
	}
	for _, w := range mw.alertWriters {
		closeOnce(w)
	}
	return errors.Join(errs...)
}

type named interface{ Name() string }

func writerName(w any) string {
	if n, ok := w.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", w)
}

// countWriterError records a publish failure. MultiWriter counts its own
// members, so its joined error is not counted twice.
func countWriterError(w any, err error) {
	if err == nil {
		return
	}
	if _, ok := w.(*MultiWriter); ok {
		return
	}
	metrics.WriterErrors.WithLabelValues(writerName(w)).Inc()
}
