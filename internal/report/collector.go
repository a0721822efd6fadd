// Package report summarises a tracking run and renders its timeline.
package report

import (
	"sync"
	"time"

	"objectwatch/internal/status"
)

// Point is the per-frame sample kept for the timeline.
type Point struct {
	Frame    int64
	Time     time.Time
	Tracked  int
	Present  int
	Missing  int
	Capacity int
	Moved    bool
}

// Collector records per-frame points and alerts. With a limit it keeps only
// the newest points.
type Collector struct {
	mu     sync.Mutex
	limit  int
	points []Point
	alerts []status.AlertRow
}

// NewCollector keeps at most limit points; zero keeps all.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

func (c *Collector) Name() string { return "report" }

func (c *Collector) WriteStatus(s status.Snapshot) error {
	p := Point{
		Frame:    s.Frame,
		Time:     s.Timestamp,
		Tracked:  len(s.Instances),
		Present:  s.PresentCount,
		Missing:  s.MissingCount,
		Capacity: s.TotalCapacity,
		Moved:    s.MovementDetected,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = append(c.points, p)
	if c.limit > 0 && len(c.points) > c.limit {
		c.points = append([]Point(nil), c.points[len(c.points)-c.limit:]...)
	}
	return nil
}

func (c *Collector) WriteAlert(a status.AlertRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	if c.limit > 0 && len(c.alerts) > c.limit {
		c.alerts = append([]status.AlertRow(nil), c.alerts[len(c.alerts)-c.limit:]...)
	}
	return nil
}

// Points returns a copy of the recorded points.
func (c *Collector) Points() []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Point(nil), c.points...)
}

// Alerts returns a copy of the recorded alerts.
func (c *Collector) Alerts() []status.AlertRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]status.AlertRow(nil), c.alerts...)
}

// Summary summarises what has been collected so far.
func (c *Collector) Summary() Summary {
	return Summarize(c.Points(), c.Alerts())
}
