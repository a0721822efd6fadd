package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"objectwatch/internal/logging"
	"objectwatch/internal/status"
)

// Default GreptimeDB table names.
const (
	DefaultStatusTable = "object_status"
	DefaultAlertTable  = "object_alerts"
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes snapshots and alerts to GreptimeDB via the
// ingester client. Tables are created on first write by the server.
type GreptimeDBWriter struct {
	client      greptimeClient
	statusTable string
	alertTable  string
	timeout     time.Duration
	log         *slog.Logger
}

// NewGreptimeDBWriter connects to host:port and targets database.
func NewGreptimeDBWriter(host string, port int, database, statusTable, alertTable string) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if statusTable == "" {
		statusTable = DefaultStatusTable
	}
	if alertTable == "" {
		alertTable = DefaultAlertTable
	}
	return &GreptimeDBWriter{
		client:      client,
		statusTable: statusTable,
		alertTable:  alertTable,
		timeout:     5 * time.Second,
		log:         logging.New(),
	}, nil
}

func (w *GreptimeDBWriter) Name() string { return "greptime" }

// WriteStatus inserts one object_status row. Per-instance detail is stored
// as a JSON column.
func (w *GreptimeDBWriter) WriteStatus(s status.Snapshot) error {
	tbl, err := table.New(w.statusTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddTagColumn("target_class", types.STRING)
	tbl.AddFieldColumn("frame", types.INT64)
	tbl.AddFieldColumn("object_present", types.BOOLEAN)
	tbl.AddFieldColumn("movement_detected", types.BOOLEAN)
	tbl.AddFieldColumn("status_message", types.STRING)
	tbl.AddFieldColumn("total_capacity", types.INT64)
	tbl.AddFieldColumn("present_count", types.INT64)
	tbl.AddFieldColumn("missing_count", types.INT64)
	tbl.AddFieldColumn("instances", types.JSON)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	instances, err := json.Marshal(s.Instances)
	if err != nil {
		return fmt.Errorf("encode instances: %w", err)
	}
	if err := tbl.AddRow(
		s.SessionID,
		s.TargetClass,
		s.Frame,
		s.ObjectPresent,
		s.MovementDetected,
		s.StatusMessage,
		int64(s.TotalCapacity),
		int64(s.PresentCount),
		int64(s.MissingCount),
		string(instances),
		s.Timestamp,
	); err != nil {
		return err
	}
	return w.write(tbl, 1)
}

// WriteAlert inserts a single alert row.
func (w *GreptimeDBWriter) WriteAlert(a status.AlertRow) error {
	return w.WriteAlerts([]status.AlertRow{a})
}

// WriteAlerts inserts alert rows in one request.
func (w *GreptimeDBWriter) WriteAlerts(rows []status.AlertRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.alertTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddTagColumn("kind", types.STRING)
	tbl.AddFieldColumn("alert_id", types.STRING)
	tbl.AddFieldColumn("identity_id", types.INT64)
	tbl.AddFieldColumn("x", types.FLOAT64)
	tbl.AddFieldColumn("y", types.FLOAT64)
	tbl.AddFieldColumn("displacement", types.FLOAT64)
	tbl.AddFieldColumn("missing_for_seconds", types.FLOAT64)
	tbl.AddFieldColumn("frame", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		if err := tbl.AddRow(
			r.SessionID,
			r.Kind,
			r.ID,
			int64(r.IdentityID),
			r.Position.X,
			r.Position.Y,
			r.Displacement,
			r.MissingFor,
			r.Frame,
			r.Timestamp,
		); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

func (w *GreptimeDBWriter) write(tbl *table.Table, n int) error {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write: %w", err)
	}
	if w.log != nil {
		w.log.Debug("greptime write", "rows", n)
	}
	return nil
}
