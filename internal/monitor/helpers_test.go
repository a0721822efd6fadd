package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/logging"
	"objectwatch/internal/status"
	"objectwatch/internal/track"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(i int) time.Time { return t0.Add(time.Duration(i) * 100 * time.Millisecond) }

func bottle(x, y float64) detect.Raw {
	return detect.Raw{Class: "bottle", Confidence: 0.9, X1: x - 10, Y1: y - 20, X2: x + 10, Y2: y + 20}
}

func frame(i int, raws ...detect.Raw) detect.Frame {
	return detect.Frame{Seq: int64(i), Timestamp: at(i), Detections: raws}
}

func testFilter() detect.Filter {
	return detect.Filter{TargetClass: "bottle", MinConfidence: 0.5, NMSThreshold: detect.DefaultNMSThreshold}
}

func quietCtx() context.Context {
	return logging.NewContext(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestMonitor(src Source, opts ...Option) *Monitor {
	tr := track.New(track.DefaultParams(),
		track.WithSessionID("s1"),
		track.WithTargetClass("bottle"),
		track.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(tr, testFilter(), src, opts...)
}

type collector struct {
	mu       sync.Mutex
	statuses []status.Snapshot
	alerts   []status.AlertRow
	err      error
}

func (c *collector) WriteStatus(s status.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
	return c.err
}

func (c *collector) WriteAlert(a status.AlertRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return c.err
}

type batchCollector struct {
	collector
	batches int
}

func (b *batchCollector) WriteAlerts(rows []status.AlertRow) error {
	b.batches++
	b.alerts = append(b.alerts, rows...)
	return nil
}

type failingWriter struct{ name string }

func (f failingWriter) Name() string                      { return f.name }
func (f failingWriter) WriteStatus(status.Snapshot) error { return io.ErrClosedPipe }
func (f failingWriter) WriteAlert(status.AlertRow) error  { return io.ErrClosedPipe }

type fakeDispatcher struct {
	got  []status.AlertRow
	full bool
}

func (d *fakeDispatcher) Dispatch(a status.AlertRow) bool {
	if d.full {
		return false
	}
	d.got = append(d.got, a)
	return true
}
