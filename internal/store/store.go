// Package store keeps alert history in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"objectwatch/internal/logging"
	"objectwatch/internal/status"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists sessions and alerts.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (s *Store) Version() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	logging.New().Debug(strings.TrimSpace(fmt.Sprintf("migrate: "+format, v...)))
}

func (migrateLogger) Verbose() bool { return false }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Session is one tracker run.
type Session struct {
	ID          string
	TargetClass string
	StartedAt   time.Time
	Alerts      int
}

// StartSession records a tracker run. Recording the same id twice is a no-op.
func (s *Store) StartSession(ctx context.Context, id, targetClass string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, target_class, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		id, targetClass, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Sessions lists runs, newest first, with their alert counts.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.target_class, s.started_at, COUNT(a.alert_id)
		FROM sessions s LEFT JOIN alerts a ON a.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.TargetClass, &started, &sess.Alerts); err != nil {
			return nil, err
		}
		sess.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

const insertAlert = `
	INSERT INTO alerts (alert_id, session_id, kind, identity_id, x, y,
		box_x1, box_y1, box_x2, box_y2, displacement, missing_for_seconds, frame, ts)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(alert_id) DO NOTHING`

func alertArgs(a status.AlertRow) []any {
	return []any{
		a.ID, a.SessionID, a.Kind, a.IdentityID, a.Position.X, a.Position.Y,
		a.Box.X1, a.Box.Y1, a.Box.X2, a.Box.Y2, a.Displacement, a.MissingFor, a.Frame, a.Timestamp.UnixMilli(),
	}
}

// SaveAlert stores one alert. Saving an alert id twice is a no-op.
func (s *Store) SaveAlert(ctx context.Context, a status.AlertRow) error {
	if _, err := s.db.ExecContext(ctx, insertAlert, alertArgs(a)...); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// Name, WriteAlert and WriteAlerts let the store act as a monitor alert writer.
func (s *Store) Name() string { return "sqlite" }

func (s *Store) WriteAlert(a status.AlertRow) error {
	return s.SaveAlert(context.Background(), a)
}

// WriteAlerts stores a batch in one transaction.
func (s *Store) WriteAlerts(rows []status.AlertRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, a := range rows {
		if _, err := tx.Exec(insertAlert, alertArgs(a)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert alert: %w", err)
		}
	}
	return tx.Commit()
}

// Query filters RecentAlerts. Zero values match everything.
type Query struct {
	SessionID string
	Kind      string
	Since     time.Time
	Limit     int
}

// RecentAlerts returns matching alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, q Query) ([]status.AlertRow, error) {
	var (
		where []string
		args  []any
	)
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if !q.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	query := `SELECT alert_id, session_id, kind, identity_id, x, y, box_x1, box_y1, box_x2, box_y2,
		displacement, missing_for_seconds, frame, ts FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, frame DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []status.AlertRow
	for rows.Next() {
		var (
			a  status.AlertRow
			ts int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &a.IdentityID, &a.Position.X, &a.Position.Y,
			&a.Box.X1, &a.Box.Y1, &a.Box.X2, &a.Box.Y2, &a.Displacement, &a.MissingFor, &a.Frame, &ts); err != nil {
			return nil, err
		}
		a.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
