// Package track keeps stable identities for several instances of one object
// class across frames and raises movement and missing alerts, at most one of
// each per identity life.
//
// A Tracker is not safe for concurrent use; callers serialise Step calls.
package track

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"objectwatch/internal/detect"
	"objectwatch/internal/status"
)

// Params are the tracking thresholds.
type Params struct {
	MoveThreshold   float64       // pixels between consecutive frames; twice this from the baseline
	MatchDistance   float64       // pixels; matches must be strictly closer
	MissingAfter    time.Duration // unseen longer than this is missing
	SettlingFrames  int           // frames before movement checks start, creation frame included
	InitialCapacity int           // capacity seed; zero learns it from detections
	Strict          bool          // panic on invariant violations
}

// DefaultParams returns the thresholds the detector was tuned with.
func DefaultParams() Params {
	return Params{
		MoveThreshold:  50,
		MatchDistance:  100,
		MissingAfter:   2 * time.Second,
		SettlingFrames: 10,
	}
}

// Stats counts what happened to identities during one cycle.
type Stats struct {
	Matched    int // matched in the first pass
	Resumed    int // missing but unalerted identities matched in the second pass
	Created    int // new identities in empty slots
	Revived    int // new lives in slots whose occupant was missing
	Relocated  int // forced reuse of an occupant that was not missing
	Unmatched  int // detections dropped because no slot qualified
	Pruned     int
	Violations int
}

// Result is the outcome of one cycle.
type Result struct {
	Snapshot status.Snapshot
	Alerts   []status.AlertRow
	Stats    Stats
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for invariant violations.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(t *Tracker) { t.session = id }
}

// WithTargetClass labels snapshots with the tracked class.
func WithTargetClass(class string) Option {
	return func(t *Tracker) { t.targetClass = class }
}

// Tracker runs the per-frame cycle over an identity table it owns.
type Tracker struct {
	params       Params
	table        *Table
	frame        int64
	session      string
	targetClass  string
	lastSeen     time.Time
	lastMovement time.Time
	log          *slog.Logger
}

// New returns a tracker with an empty identity table.
func New(p Params, opts ...Option) *Tracker {
	t := &Tracker{
		params:  p,
		table:   NewTable(p.InitialCapacity),
		session: uuid.NewString(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Params returns the active thresholds.
func (t *Tracker) Params() Params { return t.params }

// SetParams swaps thresholds between cycles. Identities and capacity persist;
// a larger InitialCapacity grows the table.
func (t *Tracker) SetParams(p Params) {
	t.params = p
	t.table.Seed(p.InitialCapacity)
}

// SessionID identifies this tracker's run in published rows.
func (t *Tracker) SessionID() string { return t.session }

// Capacity returns the current capacity.
func (t *Tracker) Capacity() int { return t.table.Capacity() }

// Identities returns copies of the live identities in id order.
func (t *Tracker) Identities() []Identity {
	live := t.table.Sorted()
	out := make([]Identity, len(live))
	for i, ident := range live {
		out[i] = *ident
	}
	return out
}

// cycle holds the bookkeeping of one Step.
type cycle struct {
	now     time.Time
	frame   int64
	matches map[int]int
	alerts  []status.AlertRow
	stats   Stats
}

// Step runs one tracking cycle for the target-class detections of a frame
// observed at now. It performs no I/O other than logging invariant violations.
func (t *Tracker) Step(now time.Time, dets []detect.Detection) Result {
	t.frame++
	c := &cycle{now: now, frame: t.frame, matches: make(map[int]int)}
	p := t.params

	t.table.Grow(len(dets))

	var first, second []*Identity
	live := t.table.Sorted()
	for _, ident := range live {
		switch {
		case ident.State == StateMissingAlerted:
		case ident.Unseen(now) > p.MissingAfter:
			second = append(second, ident)
		default:
			first = append(first, ident)
		}
	}

	used := make([]bool, len(dets))
	for _, m := range assign(first, dets, used, p.MatchDistance) {
		c.stats.Matched++
		t.match(c, m.ID, dets[m.Detection])
	}
	for _, m := range assign(second, dets, used, p.MatchDistance) {
		c.stats.Resumed++
		t.match(c, m.ID, dets[m.Detection])
	}

	for _, ident := range live {
		if c.matches[ident.ID] > 0 {
			continue
		}
		if ident.markMissing(now, p.MissingAfter) {
			c.alerts = append(c.alerts, t.alert(c, status.KindMissing, ident, 0))
		}
	}

	taken := make(map[int]bool, len(c.matches))
	for id := range c.matches {
		taken[id] = true
	}
	for j, d := range dets {
		if used[j] {
			continue
		}
		slot, occupant, ok := t.table.Allocate(now, p.MissingAfter, taken)
		if !ok {
			c.stats.Unmatched++
			t.violation(c, nil, slot, "no slot for detection %d with capacity %d", j, t.table.Capacity())
			continue
		}
		taken[slot] = true
		switch {
		case occupant == nil:
			c.stats.Created++
			t.table.Put(newIdentity(slot, d, now, p.SettlingFrames))
			c.matches[slot]++
		case occupant.Missing(now, p.MissingAfter):
			c.stats.Revived++
			t.table.Put(newIdentity(slot, d, now, p.SettlingFrames))
			c.matches[slot]++
		default:
			c.stats.Relocated++
			t.match(c, slot, d)
		}
		t.lastSeen = now
	}

	pruned := t.table.Prune()
	c.stats.Pruned = len(pruned)

	skip := t.verify(c)
	return Result{
		Snapshot: t.snapshot(c, skip),
		Alerts:   c.alerts,
		Stats:    c.stats,
	}
}

func (t *Tracker) match(c *cycle, id int, d detect.Detection) {
	ident, ok := t.table.Get(id)
	if !ok {
		return
	}
	c.matches[id]++
	t.lastSeen = c.now
	if moved, dist := ident.observe(d, c.now, t.params.MoveThreshold); moved {
		t.lastMovement = c.now
		c.alerts = append(c.alerts, t.alert(c, status.KindMovement, ident, dist))
	}
}

func (t *Tracker) alert(c *cycle, kind string, ident *Identity, displacement float64) status.AlertRow {
	row := status.AlertRow{
		ID:           uuid.NewString(),
		SessionID:    t.session,
		Kind:         kind,
		IdentityID:   ident.ID,
		Position:     ident.Position,
		Box:          ident.Box,
		Displacement: displacement,
		Frame:        c.frame,
		Timestamp:    c.now,
	}
	if kind == status.KindMissing {
		row.MissingFor = ident.Unseen(c.now).Seconds()
	}
	return row
}

// verify checks the table after a cycle and returns the ids to leave out of
// the snapshot.
func (t *Tracker) verify(c *cycle) map[int]bool {
	skip := map[int]bool{}
	capacity := t.table.Capacity()
	if t.table.Len() > capacity {
		t.violation(c, skip, -1, "%d identities exceed capacity %d", t.table.Len(), capacity)
	}
	for key, ident := range t.table.identities {
		switch {
		case ident.ID != key:
			t.violation(c, skip, key, "identity in slot %d carries id %d", key, ident.ID)
			if !t.params.Strict {
				skip[ident.ID] = true
			}
		case key < 0 || key >= capacity:
			t.violation(c, skip, key, "identity %d outside capacity %d", key, capacity)
		case c.matches[key] > 1:
			t.violation(c, skip, key, "identity %d matched %d times", key, c.matches[key])
		}
	}
	return skip
}

func (t *Tracker) violation(c *cycle, skip map[int]bool, id int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if t.params.Strict {
		panic("track: invariant violated: " + msg)
	}
	c.stats.Violations++
	t.log.Error("tracking invariant violated", "frame", c.frame, "identity", id, "msg", msg)
	if skip != nil && id >= 0 {
		skip[id] = true
	}
}
