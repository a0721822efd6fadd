// Monitor loop driving tracking cycles from a frame source
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/logging"
	"objectwatch/internal/metrics"
	"objectwatch/internal/status"
	"objectwatch/internal/timeutil"
	"objectwatch/internal/track"
)

// StatusWriter publishes the snapshot of every cycle.
type StatusWriter interface {
	WriteStatus(status.Snapshot) error
}

// AlertWriter publishes alerts.
type AlertWriter interface {
	WriteAlert(status.AlertRow) error
}

// Optional: alert writers may support batch mode
type batchAlertWriter interface {
	WriteAlerts([]status.AlertRow) error
}

// FrameWriter records raw detector frames before they are tracked.
type FrameWriter interface {
	WriteFrame(detect.Frame) error
}

// Source yields detector frames. It returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (detect.Frame, error)
}

// Dispatcher takes alerts for side-effect sinks without blocking.
type Dispatcher interface {
	Dispatch(status.AlertRow) bool
}

// DefaultHistory is the number of recent alerts kept for the HTTP API.
const DefaultHistory = 200

// Monitor runs one tracking cycle per source frame and fans the result out.
type Monitor struct {
	tracker  *track.Tracker
	filter   detect.Filter
	source   Source
	status   StatusWriter
	alerts   AlertWriter
	frames   FrameWriter
	dispatch Dispatcher
	clock    timeutil.Clock
	interval time.Duration
	history  int

	// cycle serializes whole cycles against Close.
	cycle  sync.Mutex
	closed bool

	mu      sync.RWMutex
	pending *track.Params
	latest  status.Snapshot
	have    bool
	recent  []status.AlertRow
	subs    map[chan status.Snapshot]struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithStatusWriter(w StatusWriter) Option { return func(m *Monitor) { m.status = w } }
func WithAlertWriter(w AlertWriter) Option   { return func(m *Monitor) { m.alerts = w } }
func WithFrameWriter(w FrameWriter) Option   { return func(m *Monitor) { m.frames = w } }
func WithDispatcher(d Dispatcher) Option     { return func(m *Monitor) { m.dispatch = d } }
func WithClock(c timeutil.Clock) Option      { return func(m *Monitor) { m.clock = c } }
func WithHistory(n int) Option               { return func(m *Monitor) { m.history = n } }

// WithInterval paces cycles with a ticker. Sources that block until a frame
// arrives need no pacing.
func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

// New creates a monitor over tracker and source.
func New(tracker *track.Tracker, filter detect.Filter, source Source, opts ...Option) *Monitor {
	m := &Monitor{
		tracker: tracker,
		filter:  filter,
		source:  source,
		clock:   timeutil.RealClock{},
		history: DefaultHistory,
		subs:    make(map[chan status.Snapshot]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run processes frames until the source is exhausted or ctx is done. Cycles
// are never interrupted midway.
func (m *Monitor) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("starting monitor", "target", m.filter.TargetClass, "interval", m.interval, "session", m.tracker.SessionID())

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := m.clock.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				log.Info("stopping monitor")
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			log.Info("stopping monitor")
			return nil
		}

		frame, err := m.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("frame source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				log.Info("stopping monitor")
				return nil
			}
			return fmt.Errorf("frame source: %w", err)
		}
		m.Process(ctx, frame)
	}
}

// Process runs one cycle for frame and publishes its result. After Close it
// does nothing and returns a zero Result.
func (m *Monitor) Process(ctx context.Context, frame detect.Frame) track.Result {
	m.cycle.Lock()
	defer m.cycle.Unlock()
	if m.closed {
		return track.Result{}
	}
	log := logging.FromContext(ctx)

	now := frame.Timestamp
	if now.IsZero() {
		now = m.clock.Now()
		frame.Timestamp = now
	}
	if m.frames != nil {
		if err := m.frames.WriteFrame(frame); err != nil {
			log.Error("frame record failed", "seq", frame.Seq, "err", err)
		}
	}

	m.mu.Lock()
	if m.pending != nil {
		m.tracker.SetParams(*m.pending)
		m.pending = nil
	}
	m.mu.Unlock()

	dets, st := m.filter.Apply(frame.Detections)
	metrics.ObserveFilter(st)
	if st.Malformed > 0 {
		log.Debug("dropped malformed detections", "seq", frame.Seq, "count", st.Malformed)
	}

	start := time.Now()
	res := m.tracker.Step(now, dets)
	metrics.ObserveCycle(res, time.Since(start))

	for _, a := range res.Alerts {
		log.Warn("ALERT", "kind", a.Kind, "identity", a.IdentityID, "frame", a.Frame, "detail", a.String())
		if m.dispatch != nil {
			if !m.dispatch.Dispatch(a) {
				log.Warn("alert queue full, dropped", "kind", a.Kind, "identity", a.IdentityID)
			}
		}
	}
	m.publish(ctx, res)
	m.remember(res)
	return res
}

func (m *Monitor) publish(ctx context.Context, res track.Result) {
	log := logging.FromContext(ctx)
	if m.status != nil {
		if err := m.status.WriteStatus(res.Snapshot); err != nil {
			countWriterError(m.status, err)
			log.Error("status write failed", "frame", res.Snapshot.Frame, "err", err)
		}
	}
	if m.alerts == nil || len(res.Alerts) == 0 {
		return
	}
	// Batch support if writer implements WriteAlerts
	if bw, ok := m.alerts.(batchAlertWriter); ok {
		if err := bw.WriteAlerts(res.Alerts); err != nil {
			countWriterError(m.alerts, err)
			log.Error("alert batch write failed", "err", err)
		}
		return
	}
	for _, a := range res.Alerts {
		if err := m.alerts.WriteAlert(a); err != nil {
			countWriterError(m.alerts, err)
			log.Error("alert write failed", "identity", a.IdentityID, "err", err)
		}
	}
}

func (m *Monitor) remember(res track.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = res.Snapshot
	m.have = true
	m.recent = append(m.recent, res.Alerts...)
	if over := len(m.recent) - m.history; over > 0 {
		m.recent = append([]status.AlertRow(nil), m.recent[over:]...)
	}
	for ch := range m.subs {
		select {
		case ch <- res.Snapshot:
		default:
		}
	}
}

// Close waits for an in-flight cycle and stops publishing: writers and the
// dispatcher are not touched again, so the caller may release them.
func (m *Monitor) Close() {
	m.cycle.Lock()
	defer m.cycle.Unlock()
	m.closed = true
}

// SetParams queues new thresholds for the next cycle.
func (m *Monitor) SetParams(p track.Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = &p
}

// Latest returns the most recent snapshot, or false before the first cycle.
func (m *Monitor) Latest() (status.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.have
}

// RecentAlerts returns up to n of the newest alerts, oldest first. n <= 0
// returns all kept alerts.
func (m *Monitor) RecentAlerts(n int) []status.AlertRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if n > 0 && len(m.recent) > n {
		start = len(m.recent) - n
	}
	return append([]status.AlertRow(nil), m.recent[start:]...)
}

// Subscribe returns a channel receiving every new snapshot. Slow receivers
// miss snapshots instead of stalling the loop. Call cancel to unsubscribe.
func (m *Monitor) Subscribe(buffer int) (<-chan status.Snapshot, func()) {
	ch := make(chan status.Snapshot, max(buffer, 1))
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}

// TargetClass is the class the monitor tracks.
func (m *Monitor) TargetClass() string { return m.filter.TargetClass }
