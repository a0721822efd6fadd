// Package server serves the status dashboard, JSON API, websocket updates and
// Prometheus metrics.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"objectwatch/internal/logging"
	"objectwatch/internal/report"
	"objectwatch/internal/status"
	"objectwatch/internal/store"
)

// Dashboard polling cadence and the silence after which the page reports the
// detector as not responding.
const (
	PollInterval   = 500 * time.Millisecond
	StaleAfter     = 5 * time.Second
	maxAlertsLimit = 1000
)

// Provider is the live state the server exposes.
type Provider interface {
	Latest() (status.Snapshot, bool)
	RecentAlerts(n int) []status.AlertRow
	Subscribe(buffer int) (<-chan status.Snapshot, func())
	TargetClass() string
}

// AlertHistory serves persisted alerts.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, q store.Query) ([]status.AlertRow, error)
}

type Server struct {
	src      Provider
	history  AlertHistory
	timeline *report.Collector
	tpl      *template.Template
	upgrader websocket.Upgrader
	log      *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

// Option configures a Server.
type Option func(*Server)

// WithHistory serves /api/alerts from persisted history.
func WithHistory(h AlertHistory) Option { return func(s *Server) { s.history = h } }

// WithTimeline enables /charts/timeline from the collector's points.
func WithTimeline(c *report.Collector) Option { return func(s *Server) { s.timeline = c } }

func NewServer(src Provider, opts ...Option) *Server {
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{
		src: src,
		tpl: tpl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logging.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /charts/timeline", s.handleTimeline)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.log = logging.FromContext(ctx)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http server listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) current() status.Snapshot {
	if snap, ok := s.src.Latest(); ok {
		return snap
	}
	return status.Placeholder(s.src.TargetClass())
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	target := capitalize(s.src.TargetClass())
	data := struct {
		Target  string
		PollMS  int64
		StaleMS int64
	}{target, PollInterval.Milliseconds(), StaleAfter.Milliseconds()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.current())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAlertsLimit)
	}
	kind := q.Get("kind")
	if kind != "" && kind != status.KindMovement && kind != status.KindMissing {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown kind " + kind})
		return
	}

	if s.history != nil {
		rows, err := s.history.RecentAlerts(r.Context(), store.Query{SessionID: q.Get("session"), Kind: kind, Limit: limit})
		if err != nil {
			s.log.Error("query alert history", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "alert history unavailable"})
			return
		}
		// History is newest first; the live list is oldest first.
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		writeJSON(w, http.StatusOK, nonNil(rows))
		return
	}

	rows := s.src.RecentAlerts(0)
	if kind != "" {
		kept := rows[:0]
		for _, a := range rows {
			if a.Kind == kind {
				kept = append(kept, a)
			}
		}
		rows = kept
	}
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if s.timeline == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "timeline not enabled"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	title := s.src.TargetClass() + " timeline"
	if err := report.RenderTimeline(w, title, s.timeline.Points(), s.timeline.Alerts()); err != nil {
		s.log.Error("render timeline", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ok := s.src.Latest()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tracking": ok})
}

// handleWS pushes the current snapshot on connect and every later one. Slow
// clients miss updates instead of stalling the monitor.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.src.Subscribe(8)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.current()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap := <-updates:
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				s.log.Debug("websocket client gone", "err", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(rows []status.AlertRow) []status.AlertRow {
	if rows == nil {
		return []status.AlertRow{}
	}
	return rows
}
