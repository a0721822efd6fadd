// Status snapshot and alert rows shared by every publisher.
package status

import (
	"fmt"
	"time"

	"objectwatch/internal/geom"
)

// Instance summarises one tracked identity in a snapshot.
type Instance struct {
	ID                int         `json:"id"`
	State             string      `json:"state"`
	Present           bool        `json:"present"`
	LastSeen          *time.Time  `json:"last_seen"`
	MissingForSeconds float64     `json:"missing_for_seconds"`
	MovementDetected  bool        `json:"movement_detected"`
	MissingAlerted    bool        `json:"missing_alerted"`
	Position          *geom.Point `json:"position,omitempty"`
	Box               *geom.Box   `json:"box,omitempty"`
	FramesSeen        int         `json:"frames_seen"`
}

// Snapshot is the record published once per tracking cycle.
type Snapshot struct {
	SessionID        string     `json:"session_id"`        // TAG
	TargetClass      string     `json:"target_class"`      // TAG
	Frame            int64      `json:"frame"`             // FIELD
	ObjectPresent    bool       `json:"object_present"`    // FIELD
	LastSeen         *time.Time `json:"last_seen"`         // FIELD
	MovementDetected bool       `json:"movement_detected"` // FIELD
	LastMovement     *time.Time `json:"last_movement"`     // FIELD
	StatusMessage    string     `json:"status_message"`    // FIELD
	Instances        []Instance `json:"instances"`         // FIELD (json)
	TotalCapacity    int        `json:"total_capacity"`    // FIELD
	PresentCount     int        `json:"present_count"`     // FIELD
	MissingCount     int        `json:"missing_count"`     // FIELD
	Timestamp        time.Time  `json:"timestamp"`         // TIME INDEX
}

// Alert kinds.
const (
	KindMovement = "movement"
	KindMissing  = "missing"
)

// AlertRow is one movement or missing alert.
type AlertRow struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`  // TAG
	Kind         string     `json:"kind"`        // TAG
	IdentityID   int        `json:"identity_id"` // FIELD
	Position     geom.Point `json:"position"`
	Box          geom.Box   `json:"box"`
	Displacement float64    `json:"displacement,omitempty"`
	MissingFor   float64    `json:"missing_for_seconds,omitempty"`
	Frame        int64      `json:"frame"`
	Timestamp    time.Time  `json:"ts"` // TIME INDEX
}

// String renders the alert as a single log line.
func (a AlertRow) String() string {
	switch a.Kind {
	case KindMovement:
		return fmt.Sprintf("object %d moved %.0fpx at (%.0f,%.0f)", a.IdentityID, a.Displacement, a.Position.X, a.Position.Y)
	case KindMissing:
		return fmt.Sprintf("object %d missing for %.1fs, last seen at (%.0f,%.0f)", a.IdentityID, a.MissingFor, a.Position.X, a.Position.Y)
	}
	return fmt.Sprintf("object %d %s", a.IdentityID, a.Kind)
}

// Message derives the human readable status line from the snapshot counts.
func Message(s Snapshot) string {
	tracked := len(s.Instances)
	switch {
	case tracked == 0:
		return "Waiting for detection..."
	case s.MissingCount > 0:
		return fmt.Sprintf("⚠️ %d of %d missing", s.MissingCount, tracked)
	case s.MovementDetected:
		return "⚠️ Movement detected"
	case s.PresentCount == tracked:
		if tracked == 1 {
			return "Object detected ✓"
		}
		return fmt.Sprintf("All %d objects present ✓", tracked)
	default:
		return fmt.Sprintf("%d of %d visible", s.PresentCount, tracked)
	}
}

// Placeholder is served before the first cycle has completed.
func Placeholder(targetClass string) Snapshot {
	return Snapshot{
		TargetClass:   targetClass,
		Instances:     []Instance{},
		StatusMessage: "Waiting for detection script...",
	}
}
