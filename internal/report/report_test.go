package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectwatch/internal/status"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func snap(frame int64, present, missing, capacity int) status.Snapshot {
	inst := make([]status.Instance, capacity)
	return status.Snapshot{
		Frame:         frame,
		Timestamp:     t0.Add(time.Duration(frame) * 100 * time.Millisecond),
		Instances:     inst,
		PresentCount:  present,
		MissingCount:  missing,
		TotalCapacity: capacity,
	}
}

func TestCollectorLimit(t *testing.T) {
	c := NewCollector(2)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, c.WriteStatus(snap(i, 1, 0, 1)))
	}
	pts := c.Points()
	require.Len(t, pts, 2)
	assert.Equal(t, int64(2), pts[0].Frame)
	assert.Equal(t, 1, pts[1].Tracked)
}

func TestSummarize(t *testing.T) {
	c := NewCollector(0)
	// Two objects for four frames, then one goes missing.
	require.NoError(t, c.WriteStatus(snap(1, 0, 0, 0)))
	require.NoError(t, c.WriteStatus(snap(2, 2, 0, 2)))
	require.NoError(t, c.WriteStatus(snap(3, 2, 0, 2)))
	require.NoError(t, c.WriteStatus(snap(4, 1, 1, 2)))
	require.NoError(t, c.WriteAlert(status.AlertRow{Kind: status.KindMovement, IdentityID: 2, Frame: 3}))
	require.NoError(t, c.WriteAlert(status.AlertRow{Kind: status.KindMissing, IdentityID: 1, Frame: 4}))

	s := c.Summary()
	assert.Equal(t, 4, s.Frames)
	assert.Equal(t, 300*time.Millisecond, s.Duration)
	assert.Equal(t, 100*time.Millisecond, s.MeanFrameGap)
	assert.Equal(t, 2, s.MaxCapacity)
	assert.InDelta(t, 0.75, s.PresentRatio, 1e-9)
	assert.InDelta(t, 1.25, s.MeanPresent, 1e-9)
	assert.Greater(t, s.StdDevPresent, 0.0)
	assert.Equal(t, 1, s.MovementAlerts)
	assert.Equal(t, 1, s.MissingAlerts)
	assert.Equal(t, []int{1, 2}, s.Identities)

	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf))
	assert.Contains(t, buf.String(), "Missing alerts:")
	assert.Contains(t, buf.String(), "75.0%")
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Zero(t, s.Frames)
	assert.Zero(t, s.MeanPresent)
	assert.Empty(t, s.Identities)
}

func TestRenderTimeline(t *testing.T) {
	c := NewCollector(0)
	require.NoError(t, c.WriteStatus(snap(1, 1, 0, 1)))
	require.NoError(t, c.WriteStatus(snap(2, 0, 1, 1)))
	require.NoError(t, c.WriteAlert(status.AlertRow{Kind: status.KindMissing, IdentityID: 1, Frame: 2}))

	var buf bytes.Buffer
	require.NoError(t, RenderTimeline(&buf, "bottle timeline", c.Points(), c.Alerts()))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "not an HTML page")
	assert.Contains(t, html, "bottle timeline")
	assert.Contains(t, html, "missing #1")
}
