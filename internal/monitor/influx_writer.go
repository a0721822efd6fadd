package monitor

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"objectwatch/internal/status"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxWriter writes one point per snapshot and per alert through the
// blocking write API.
type InfluxWriter struct {
	client  influxdb2.Client
	api     pointWriter
	timeout time.Duration
}

// NewInfluxWriter connects to an InfluxDB v2 server.
func NewInfluxWriter(url, token, org, bucket string) *InfluxWriter {
	client := influxdb2.NewClient(url, token)
	var writeAPI api.WriteAPIBlocking = client.WriteAPIBlocking(org, bucket)
	return &InfluxWriter{client: client, api: writeAPI, timeout: 5 * time.Second}
}

func (w *InfluxWriter) Name() string { return "influx" }

func (w *InfluxWriter) WriteStatus(s status.Snapshot) error {
	p := influxdb2.NewPointWithMeasurement("object_status").
		AddTag("session_id", s.SessionID).
		AddTag("target_class", s.TargetClass).
		AddField("frame", s.Frame).
		AddField("object_present", s.ObjectPresent).
		AddField("movement_detected", s.MovementDetected).
		AddField("status_message", s.StatusMessage).
		AddField("total_capacity", s.TotalCapacity).
		AddField("present_count", s.PresentCount).
		AddField("missing_count", s.MissingCount).
		SetTime(s.Timestamp)
	return w.write(p)
}

func (w *InfluxWriter) WriteAlert(a status.AlertRow) error {
	return w.WriteAlerts([]status.AlertRow{a})
}

func (w *InfluxWriter) WriteAlerts(rows []status.AlertRow) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, a := range rows {
		points = append(points, influxdb2.NewPointWithMeasurement("object_alerts").
			AddTag("session_id", a.SessionID).
			AddTag("kind", a.Kind).
			AddField("alert_id", a.ID).
			AddField("identity_id", a.IdentityID).
			AddField("x", a.Position.X).
			AddField("y", a.Position.Y).
			AddField("displacement", a.Displacement).
			AddField("missing_for_seconds", a.MissingFor).
			AddField("frame", a.Frame).
			SetTime(a.Timestamp))
	}
	return w.write(points...)
}

func (w *InfluxWriter) write(points ...*write.Point) error {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (w *InfluxWriter) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}
