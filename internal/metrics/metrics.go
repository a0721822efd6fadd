// Package metrics exports Prometheus instruments for the tracking loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"objectwatch/internal/detect"
	"objectwatch/internal/track"
)

var (
	// FramesTotal counts completed tracking cycles.
	FramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objectwatch_frames_total",
		Help: "Tracking cycles completed",
	})

	// DetectionsTotal counts raw detector records by filter outcome.
	// Labels: "accepted", "malformed", "other_class", "low_confidence", "suppressed"
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objectwatch_detections_total",
		Help: "Detector records by filter outcome",
	}, []string{"outcome"})

	// AlertsTotal counts alerts by kind.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objectwatch_alerts_total",
		Help: "Alerts raised by kind",
	}, []string{"kind"})

	// AlertsDropped counts alerts the dispatcher discarded.
	// Labels: "queue_full", "rate_limited"
	AlertsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objectwatch_alerts_dropped_total",
		Help: "Alerts not delivered to sinks",
	}, []string{"reason"})

	// SinkErrors counts failed alert sink calls.
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objectwatch_alert_sink_errors_total",
		Help: "Alert sink failures",
	}, []string{"sink"})

	// WriterErrors counts failed status or alert publishes.
	WriterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objectwatch_writer_errors_total",
		Help: "Status and alert publish failures",
	}, []string{"writer"})

	// IdentityEvents counts lifecycle events.
	// Labels: "matched", "resumed", "created", "revived", "relocated", "pruned"
	IdentityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "objectwatch_identity_events_total",
		Help: "Identity lifecycle events",
	}, []string{"event"})

	// InvariantViolations counts tracking invariant violations.
	InvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "objectwatch_invariant_violations_total",
		Help: "Tracking invariant violations",
	})

	Capacity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objectwatch_capacity",
		Help: "Largest simultaneous detection count this session",
	})

	Present = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objectwatch_present",
		Help: "Identities matched in the last cycle",
	})

	Missing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "objectwatch_missing",
		Help: "Identities with a fired missing alert",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "objectwatch_cycle_duration_seconds",
		Help:    "Time spent in one tracking cycle",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})
)

// ObserveFilter records the outcome of one detection filter pass.
func ObserveFilter(st detect.Stats) {
	DetectionsTotal.WithLabelValues("accepted").Add(float64(st.Accepted))
	DetectionsTotal.WithLabelValues("malformed").Add(float64(st.Malformed))
	DetectionsTotal.WithLabelValues("other_class").Add(float64(st.OtherClass))
	DetectionsTotal.WithLabelValues("low_confidence").Add(float64(st.LowScore))
	DetectionsTotal.WithLabelValues("suppressed").Add(float64(st.Suppressed))
}

// ObserveCycle records one tracking cycle.
func ObserveCycle(res track.Result, took time.Duration) {
	FramesTotal.Inc()
	CycleDuration.Observe(took.Seconds())
	for _, a := range res.Alerts {
		AlertsTotal.WithLabelValues(a.Kind).Inc()
	}
	s := res.Stats
	IdentityEvents.WithLabelValues("matched").Add(float64(s.Matched))
	IdentityEvents.WithLabelValues("resumed").Add(float64(s.Resumed))
	IdentityEvents.WithLabelValues("created").Add(float64(s.Created))
	IdentityEvents.WithLabelValues("revived").Add(float64(s.Revived))
	IdentityEvents.WithLabelValues("relocated").Add(float64(s.Relocated))
	IdentityEvents.WithLabelValues("pruned").Add(float64(s.Pruned))
	InvariantViolations.Add(float64(s.Violations))
	Capacity.Set(float64(res.Snapshot.TotalCapacity))
	Present.Set(float64(res.Snapshot.PresentCount))
	Missing.Set(float64(res.Snapshot.MissingCount))
}
