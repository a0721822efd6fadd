package track

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectwatch/internal/detect"
	"objectwatch/internal/geom"
	"objectwatch/internal/status"
)

func newTestTracker(mut func(*Params)) *Tracker {
	p := DefaultParams()
	p.Strict = true
	if mut != nil {
		mut(&p)
	}
	return New(p, WithLogger(quietLogger()), WithSessionID("test"), WithTargetClass("bottle"))
}

func countKind(alerts []status.AlertRow, kind string) int {
	n := 0
	for _, a := range alerts {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func TestJitterThenJumpRaisesOneMovementAlert(t *testing.T) {
	jitter := []geom.Point{{X: 0, Y: 0}, {X: 5, Y: -3}, {X: -4, Y: 6}, {X: 8, Y: 2}, {X: -7, Y: -5}}

	for _, matchDistance := range []float64{100, 300} {
		tr := newTestTracker(func(p *Params) { p.MatchDistance = matchDistance })

		frame := 0
		for ; frame < 15; frame++ {
			o := jitter[frame%len(jitter)]
			res := tr.Step(at(frame), dets(pt(100+o.X, 100+o.Y)))
			require.Empty(t, res.Alerts, "frame %d", frame)
		}
		ident := tr.Identities()[0]
		assert.Equal(t, 15, ident.FramesSeen)
		assert.Equal(t, StateStable, ident.State)

		res := tr.Step(at(frame), dets(pt(300, 100)))
		require.Len(t, res.Alerts, 1, "match distance %v", matchDistance)
		a := res.Alerts[0]
		assert.Equal(t, status.KindMovement, a.Kind)
		assert.Equal(t, 0, a.IdentityID)
		assert.Equal(t, pt(300, 100), a.Position)
		assert.Greater(t, a.Displacement, 150.0)
		assert.True(t, res.Snapshot.MovementDetected)
		assert.Equal(t, at(frame), *res.Snapshot.LastMovement)

		for i := 1; i <= 5; i++ {
			res := tr.Step(at(frame+i), dets(pt(300, 100)))
			assert.Empty(t, res.Alerts, "no repeat at the same position")
		}
		assert.Len(t, tr.Identities(), 1)
		assert.Equal(t, 1, tr.Capacity())
	}
}

func TestAbsenceRaisesOneMissingAlert(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 5; i++ {
		tr.Step(at(i), dets(pt(100, 100)))
	}

	var alertFrames []int
	for i := 5; i <= 40; i++ {
		res := tr.Step(at(i), nil)
		for _, a := range res.Alerts {
			assert.Equal(t, status.KindMissing, a.Kind)
			assert.InDelta(t, 2.1, a.MissingFor, 1e-9)
			assert.Equal(t, pt(100, 100), a.Position, "last position retained")
			alertFrames = append(alertFrames, i)
		}
	}
	assert.Equal(t, []int{25}, alertFrames, "first frame where 2.0s is exceeded")

	snap := tr.Step(at(41), nil).Snapshot
	assert.False(t, snap.ObjectPresent)
	assert.Equal(t, 1, snap.MissingCount)
	require.Len(t, snap.Instances, 1)
	assert.Equal(t, string(StateMissingAlerted), snap.Instances[0].State)
	assert.Equal(t, pt(100, 100), *snap.Instances[0].Position)
}

func TestOnlyDisappearedInstanceGoesMissing(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 5; i++ {
		tr.Step(at(i), dets(pt(50, 50), pt(500, 500)))
	}

	var alerts []status.AlertRow
	var last Result
	for i := 5; i <= 25; i++ {
		last = tr.Step(at(i), dets(pt(502, 498)))
		alerts = append(alerts, last.Alerts...)
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, status.KindMissing, alerts[0].Kind)
	assert.Equal(t, 0, alerts[0].IdentityID)

	want := []status.Instance{
		{
			ID:                0,
			State:             string(StateMissingAlerted),
			MissingForSeconds: 2.1,
			MissingAlerted:    true,
			Position:          &geom.Point{X: 50, Y: 50},
			FramesSeen:        5,
		},
		{
			ID:         1,
			State:      string(StateStable),
			Present:    true,
			Position:   &geom.Point{X: 502, Y: 498},
			FramesSeen: 26,
		},
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(status.Instance{}, "LastSeen", "Box"),
		cmpopts.EquateApprox(0, 1e-9),
	}
	if diff := cmp.Diff(want, last.Snapshot.Instances, opts); diff != "" {
		t.Errorf("instances mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, last.Snapshot.TotalCapacity)
	assert.Equal(t, 1, last.Snapshot.PresentCount)
	assert.Equal(t, 1, last.Snapshot.MissingCount)
	assert.Equal(t, "⚠️ 1 of 2 missing", last.Snapshot.StatusMessage)
}

func TestSettlingSuppressesMovement(t *testing.T) {
	tr := newTestTracker(nil)
	var alertFrames []int
	for i := 0; i <= 12; i++ {
		res := tr.Step(at(i), dets(pt(100+60*float64(i), 100)))
		for range res.Alerts {
			alertFrames = append(alertFrames, i)
		}
	}
	assert.Equal(t, []int{10}, alertFrames)
}

func TestRevivalStartsFreshLife(t *testing.T) {
	tr := newTestTracker(func(p *Params) { p.SettlingFrames = 0 })
	tr.Step(at(0), dets(pt(100, 100)))
	res := tr.Step(at(1), dets(pt(160, 100)))
	require.Len(t, res.Alerts, 1)

	res = tr.Step(at(30), nil)
	require.Len(t, res.Alerts, 1)
	require.Equal(t, status.KindMissing, res.Alerts[0].Kind)

	res = tr.Step(at(31), dets(pt(400, 300)))
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 1, res.Stats.Revived)

	ident := tr.Identities()[0]
	assert.Equal(t, 0, ident.ID)
	assert.Equal(t, StateNew, ident.State)
	assert.False(t, ident.MovementAlerted())
	assert.False(t, ident.MissingAlerted())
	assert.Equal(t, pt(400, 300), ident.InitialPosition)
	assert.Equal(t, 1, ident.FramesSeen)
	assert.Equal(t, at(31), ident.FirstSeen)

	inst := res.Snapshot.Instances[0]
	assert.False(t, inst.MovementDetected)
	assert.False(t, inst.MissingAlerted)
	assert.True(t, inst.Present)
}

func TestRevivedIdentityCanAlertAgain(t *testing.T) {
	tr := newTestTracker(func(p *Params) { p.SettlingFrames = 0 })
	total := 0
	steps := []struct {
		frame int
		pts   []geom.Point
	}{
		{0, []geom.Point{pt(100, 100)}},
		{1, []geom.Point{pt(160, 100)}}, // moved
		{2, []geom.Point{pt(220, 100)}},
		{40, nil},                        // missing
		{41, []geom.Point{pt(100, 100)}}, // revived
		{42, []geom.Point{pt(160, 100)}}, // moved again
		{80, nil},                        // missing again
	}
	for _, s := range steps {
		total += len(tr.Step(at(s.frame), dets(s.pts...)).Alerts)
	}
	assert.Equal(t, 4, total)
}

func TestSecondPassResumesIdentity(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 12; i++ {
		tr.Step(at(i), dets(pt(100, 100)))
	}
	res := tr.Step(at(11).Add(2500*time.Millisecond), dets(pt(104, 100)))
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 1, res.Stats.Resumed)

	ident := tr.Identities()[0]
	assert.Equal(t, StateStable, ident.State)
	assert.Equal(t, 13, ident.FramesSeen)
	assert.Equal(t, at(0), ident.FirstSeen, "same life")
}

func TestCapacityTracksHighWaterMark(t *testing.T) {
	tr := newTestTracker(nil)
	counts := []int{1, 3, 2, 0, 4, 1}
	high := 0
	for i, n := range counts {
		pts := make([]geom.Point, n)
		for j := range pts {
			pts[j] = pt(float64(100+j*200), 100)
		}
		high = max(high, n)
		res := tr.Step(at(i), dets(pts...))
		assert.Equal(t, high, res.Snapshot.TotalCapacity)
	}
}

func TestInitialCapacitySeed(t *testing.T) {
	tr := newTestTracker(func(p *Params) { p.InitialCapacity = 3 })
	res := tr.Step(at(0), dets(pt(10, 10)))
	assert.Equal(t, 3, res.Snapshot.TotalCapacity)

	tr.SetParams(Params{MoveThreshold: 20, MatchDistance: 100, MissingAfter: time.Second, InitialCapacity: 5})
	assert.Equal(t, 5, tr.Capacity())
	tr.SetParams(Params{MoveThreshold: 20, MatchDistance: 100, MissingAfter: time.Second, InitialCapacity: 1})
	assert.Equal(t, 5, tr.Capacity(), "capacity never shrinks")
	assert.Len(t, tr.Identities(), 1, "identities survive reloads")
}

// A seeded capacity leaves empty slots; a returning object must reclaim its
// own alerted slot rather than open one of them.
func TestSeededCapacityRevivesReturningObject(t *testing.T) {
	tr := newTestTracker(func(p *Params) { p.InitialCapacity = 3 })
	for i := 0; i < 5; i++ {
		tr.Step(at(i), dets(pt(100, 100)))
	}
	missing := 0
	for i := 5; i < 40; i++ {
		missing += countKind(tr.Step(at(i), nil).Alerts, status.KindMissing)
	}
	require.Equal(t, 1, missing)

	back := tr.Step(at(40), dets(pt(100, 100)))
	assert.Equal(t, 1, back.Stats.Revived)
	assert.Zero(t, back.Stats.Created)

	var res Result
	for i := 41; i < 60; i++ {
		res = tr.Step(at(i), dets(pt(100, 100)))
	}
	snap := res.Snapshot
	require.Len(t, snap.Instances, 1)
	assert.Equal(t, 0, snap.Instances[0].ID)
	assert.Equal(t, string(StateStable), snap.Instances[0].State)
	assert.Equal(t, 0, snap.MissingCount)
	assert.Equal(t, 1, snap.PresentCount)
	assert.Equal(t, "Object detected ✓", snap.StatusMessage)
	assert.Equal(t, 3, snap.TotalCapacity)
	assert.Equal(t, 1, tr.table.Peak())
}

// Pass 1 serves present identities before missing ones, even when the
// missing identity is nearer to the only detection.
func TestPresentIdentityWinsOverPendingMissing(t *testing.T) {
	tr := newTestTracker(nil)
	for i := 0; i < 12; i++ {
		tr.Step(at(i), dets(pt(100, 100), pt(180, 100)))
	}
	for i := 12; i < 32; i++ {
		res := tr.Step(at(i), dets(pt(100, 100)))
		require.Empty(t, res.Alerts, "frame %d", i)
	}

	// Object 1 has now been unseen for 2.1s; the detection is 10px from it and
	// 70px from object 0.
	res := tr.Step(at(32), dets(pt(170, 100)))
	assert.Equal(t, 1, res.Stats.Matched)
	assert.Zero(t, res.Stats.Resumed)
	assert.Equal(t, 1, countKind(res.Alerts, status.KindMissing))
	assert.Equal(t, 1, countKind(res.Alerts, status.KindMovement))

	ids := tr.Identities()
	require.Len(t, ids, 2)
	assert.Equal(t, pt(170, 100), ids[0].Position)
	assert.Equal(t, StateMissingAlerted, ids[1].State)
	assert.Equal(t, pt(180, 100), ids[1].Position)
}

func TestRandomFramesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	anchors := []geom.Point{pt(80, 80), pt(320, 90), pt(560, 100), pt(300, 400)}
	tr := newTestTracker(func(p *Params) { p.SettlingFrames = 3 })

	type life struct {
		id    int
		start time.Time
	}
	lives := map[int]time.Time{}
	alerts := map[life]map[string]int{}
	capacity := 0
	high := 0

	for frame := 0; frame < 600; frame++ {
		var ds []detect.Detection
		for _, a := range anchors {
			if rng.Float64() < 0.3 {
				continue
			}
			ds = append(ds, det(a.X+rng.Float64()*80-40, a.Y+rng.Float64()*80-40))
		}
		rng.Shuffle(len(ds), func(i, j int) { ds[i], ds[j] = ds[j], ds[i] })
		now := t0.Add(time.Duration(frame) * 250 * time.Millisecond)

		res := tr.Step(now, ds)
		high = max(high, len(ds))

		require.GreaterOrEqual(t, res.Snapshot.TotalCapacity, capacity)
		capacity = res.Snapshot.TotalCapacity
		require.Equal(t, high, capacity)
		require.Zero(t, res.Stats.Violations)
		require.LessOrEqual(t, res.Snapshot.PresentCount, len(ds))
		require.LessOrEqual(t, len(res.Snapshot.Instances), capacity)
		for i, inst := range res.Snapshot.Instances {
			require.Less(t, inst.ID, capacity)
			if i > 0 {
				require.Greater(t, inst.ID, res.Snapshot.Instances[i-1].ID)
			}
		}

		for _, a := range res.Alerts {
			l := life{a.IdentityID, lives[a.IdentityID]}
			if alerts[l] == nil {
				alerts[l] = map[string]int{}
			}
			alerts[l][a.Kind]++
			require.Equal(t, 1, alerts[l][a.Kind], "identity %d frame %d %s", a.IdentityID, frame, a.Kind)
		}
		for _, ident := range tr.Identities() {
			lives[ident.ID] = ident.FirstSeen
		}
	}
}

func TestStrictPanicsOnViolation(t *testing.T) {
	tr := newTestTracker(nil)
	tr.Step(at(0), dets(pt(10, 10)))
	ident, _ := tr.table.Get(0)
	ident.ID = 7

	assert.Panics(t, func() { tr.Step(at(1), nil) })
}

func TestLenientSkipsViolatingIdentity(t *testing.T) {
	tr := newTestTracker(func(p *Params) { p.Strict = false })
	tr.Step(at(0), dets(pt(10, 10), pt(300, 300)))
	ident, _ := tr.table.Get(0)
	ident.ID = 7

	res := tr.Step(at(1), dets(pt(300, 300)))
	assert.Equal(t, 1, res.Stats.Violations)
	require.Len(t, res.Snapshot.Instances, 1)
	assert.Equal(t, 1, res.Snapshot.Instances[0].ID)
}

func TestSnapshotBeforeAnyDetection(t *testing.T) {
	tr := newTestTracker(nil)
	snap := tr.Step(at(0), nil).Snapshot
	assert.Nil(t, snap.LastSeen)
	assert.Nil(t, snap.LastMovement)
	assert.NotNil(t, snap.Instances)
	assert.Equal(t, "Waiting for detection...", snap.StatusMessage)
	assert.Equal(t, "test", snap.SessionID)
	assert.Equal(t, "bottle", snap.TargetClass)
	assert.Equal(t, int64(1), snap.Frame)
}
