package track

import (
	"time"

	"objectwatch/internal/status"
)

func (t *Tracker) snapshot(c *cycle, skip map[int]bool) status.Snapshot {
	s := status.Snapshot{
		SessionID:     t.session,
		TargetClass:   t.targetClass,
		Frame:         c.frame,
		Instances:     []status.Instance{},
		TotalCapacity: t.table.Capacity(),
		Timestamp:     c.now,
	}
	if !t.lastSeen.IsZero() {
		s.LastSeen = timePtr(t.lastSeen)
	}
	if !t.lastMovement.IsZero() {
		s.LastMovement = timePtr(t.lastMovement)
	}
	for _, ident := range t.table.Sorted() {
		if skip[ident.ID] {
			continue
		}
		present := c.matches[ident.ID] > 0
		pos, box := ident.Position, ident.Box
		inst := status.Instance{
			ID:               ident.ID,
			State:            string(ident.Status(c.now, t.params.MissingAfter)),
			Present:          present,
			LastSeen:         timePtr(ident.LastSeen),
			MovementDetected: ident.MovementAlerted(),
			MissingAlerted:   ident.MissingAlerted(),
			Position:         &pos,
			Box:              &box,
			FramesSeen:       ident.FramesSeen,
		}
		if !present {
			inst.MissingForSeconds = ident.Unseen(c.now).Seconds()
		}
		if present {
			s.PresentCount++
		}
		if inst.MissingAlerted {
			s.MissingCount++
		}
		if inst.MovementDetected {
			s.MovementDetected = true
		}
		s.Instances = append(s.Instances, inst)
	}
	s.ObjectPresent = s.PresentCount > 0
	s.StatusMessage = status.Message(s)
	return s
}

func timePtr(t time.Time) *time.Time { return &t }
