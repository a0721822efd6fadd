package track

import (
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/geom"
)

// State is the stored lifecycle state of an identity.
type State string

const (
	StateNew            State = "new"             // created this life, not yet matched again
	StateSettling       State = "settling"        // absorbing placement jitter
	StateStable         State = "stable"          // movement checks active
	StateMoved          State = "moved"           // movement alert fired in this life
	StateMissingAlerted State = "missing_alerted" // missing alert fired; only a new life leaves it

	// StateMissingPending is never stored. It is reported for an identity
	// unseen beyond the missing threshold whose alert has not fired yet.
	StateMissingPending State = "missing_pending"
)

// Identity is one tracked physical instance of the target object.
type Identity struct {
	ID                int
	Position          geom.Point
	InitialPosition   geom.Point
	Box               geom.Box
	FirstSeen         time.Time
	LastSeen          time.Time
	FramesSeen        int
	SettlingRemaining int
	State             State
	// LastMovement is set only by the stable to moved transition.
	LastMovement time.Time
}

// newIdentity starts a fresh life in slot id. The creation frame counts as the
// first settling frame.
func newIdentity(id int, d detect.Detection, now time.Time, settling int) *Identity {
	ident := &Identity{
		ID:                id,
		Position:          d.Center,
		InitialPosition:   d.Center,
		Box:               d.Box,
		FirstSeen:         now,
		LastSeen:          now,
		FramesSeen:        1,
		SettlingRemaining: settling,
		State:             StateNew,
	}
	if ident.SettlingRemaining > 0 {
		ident.SettlingRemaining--
	}
	return ident
}

// MovementAlerted reports whether a movement alert fired in this life.
func (i *Identity) MovementAlerted() bool {
	return !i.LastMovement.IsZero()
}

// MissingAlerted reports whether a missing alert fired in this life.
func (i *Identity) MissingAlerted() bool {
	return i.State == StateMissingAlerted
}

// Unseen returns how long ago the identity was last matched.
func (i *Identity) Unseen(now time.Time) time.Duration {
	return now.Sub(i.LastSeen)
}

// Missing reports whether the identity has been unseen for longer than after.
func (i *Identity) Missing(now time.Time, after time.Duration) bool {
	return i.State == StateMissingAlerted || i.Unseen(now) > after
}

// Status returns the stored state, or StateMissingPending when the identity is
// missing and its alert has not fired.
func (i *Identity) Status(now time.Time, after time.Duration) State {
	if i.State != StateMissingAlerted && i.Unseen(now) > after {
		return StateMissingPending
	}
	return i.State
}

// observe applies a match. It reports whether the match raised a movement
// alert and the displacement that triggered it.
func (i *Identity) observe(d detect.Detection, now time.Time, moveThreshold float64) (bool, float64) {
	if i.State == StateMissingAlerted {
		return false, 0
	}
	prev := i.Position
	i.Position = d.Center
	i.Box = d.Box
	i.LastSeen = now
	i.FramesSeen++

	switch i.State {
	case StateNew, StateSettling:
		if i.SettlingRemaining > 0 {
			i.SettlingRemaining--
			if i.SettlingRemaining == 0 {
				i.InitialPosition = i.Position
				i.State = StateStable
			} else {
				i.State = StateSettling
			}
			return false, 0
		}
		i.State = StateStable
	case StateMoved:
		return false, 0
	}

	fromStart := geom.Distance(i.InitialPosition, i.Position)
	step := geom.Distance(prev, i.Position)
	if fromStart > 2*moveThreshold || step > moveThreshold {
		i.State = StateMoved
		i.LastMovement = now
		return true, max(fromStart, step)
	}
	return false, 0
}

// markMissing fires the missing transition once per life.
func (i *Identity) markMissing(now time.Time, after time.Duration) bool {
	if i.State == StateMissingAlerted || i.Unseen(now) <= after {
		return false
	}
	i.State = StateMissingAlerted
	return true
}
