package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectwatch/internal/detect"
	"objectwatch/internal/geom"
	"objectwatch/internal/metrics"
	"objectwatch/internal/status"
	"objectwatch/internal/track"
)

func sampleSnapshot() status.Snapshot {
	pos := geom.Pt(100, 120)
	seen := t0
	s := status.Snapshot{
		SessionID:     "s1",
		TargetClass:   "bottle",
		Frame:         7,
		ObjectPresent: true,
		LastSeen:      &seen,
		Instances: []status.Instance{
			{ID: 1, State: "stable", Present: true, LastSeen: &seen, Position: &pos, FramesSeen: 7},
		},
		TotalCapacity: 1,
		PresentCount:  1,
		Timestamp:     t0,
	}
	s.StatusMessage = status.Message(s)
	return s
}

func sampleAlert() status.AlertRow {
	return status.AlertRow{
		ID: "a1", SessionID: "s1", Kind: status.KindMovement, IdentityID: 1,
		Position: geom.Pt(300, 100), Displacement: 200, Frame: 16, Timestamp: t0,
	}
}

func TestStdoutWriterPrintsOnChange(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &StdoutWriter{out: buf}
	s := sampleSnapshot()
	require.NoError(t, w.WriteStatus(s))
	s.Frame++
	require.NoError(t, w.WriteStatus(s))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "unchanged status printed twice")
	assert.Contains(t, buf.String(), "Object detected ✓")

	require.NoError(t, w.WriteAlert(sampleAlert()))
	assert.Contains(t, buf.String(), "ALERT movement: object 1 moved 200px")
}

func TestJSONStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &JSONStdoutWriter{out: buf}
	require.NoError(t, w.WriteStatus(sampleSnapshot()))
	require.NoError(t, w.WriteAlert(sampleAlert()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "Object detected ✓", got["status_message"])
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "alert", got["type"])
	assert.Equal(t, "movement", got["kind"])
}

func TestColorStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewColorStdoutWriter(track.DefaultParams(), detect.Filter{TargetClass: "bottle", MinConfidence: 0.5})
	w.out = buf
	require.NoError(t, w.WriteStatus(sampleSnapshot()))
	out := buf.String()
	assert.Contains(t, out, "Tracking Configuration:")
	assert.Contains(t, out, "Target Class:")
	assert.Contains(t, out, "#1:stable(100,120)")
	assert.Contains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, w.WriteAlert(sampleAlert()))
	assert.NotContains(t, buf.String(), "Tracking Configuration:", "overview printed more than once")
	assert.Contains(t, buf.String(), colorRed+"ALERT movement")
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, "status.jsonl")
	alertPath := filepath.Join(dir, "alerts.jsonl")
	fw, err := NewFileWriter(statusPath, alertPath)
	require.NoError(t, err)
	require.NoError(t, fw.WriteStatus(sampleSnapshot()))
	require.NoError(t, fw.WriteAlert(sampleAlert()))
	require.NoError(t, fw.Close())

	data, err := os.ReadFile(statusPath)
	require.NoError(t, err)
	var s status.Snapshot
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, int64(7), s.Frame)

	data, err = os.ReadFile(alertPath)
	require.NoError(t, err)
	var a status.AlertRow
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, "a1", a.ID)
}

func TestFileWriterWithoutAlertLog(t *testing.T) {
	fw, err := NewFileWriter(filepath.Join(t.TempDir(), "status.jsonl"), "")
	require.NoError(t, err)
	defer fw.Close()
	assert.NoError(t, fw.WriteAlert(sampleAlert()))
}

func TestStatusFileWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	w, err := NewStatusFileWriter(path, "bottle")
	require.NoError(t, err)

	var s status.Snapshot
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, "Waiting for detection script...", s.StatusMessage)
	assert.NotNil(t, s.Instances)

	require.NoError(t, w.WriteStatus(sampleSnapshot()))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, int64(7), s.Frame)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestStatusFileWriterMissingDir(t *testing.T) {
	_, err := NewStatusFileWriter(filepath.Join(t.TempDir(), "nope", "status.json"), "bottle")
	assert.Error(t, err)
}

func TestMultiWriterContinuesPastFailures(t *testing.T) {
	good := &collector{}
	bad := failingWriter{name: "multi_bad"}
	before := testutil.ToFloat64(metrics.WriterErrors.WithLabelValues("multi_bad"))

	mw := NewMultiWriter([]StatusWriter{bad, good}, []AlertWriter{bad, good})
	err := mw.WriteStatus(sampleSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multi_bad")
	err = mw.WriteAlerts([]status.AlertRow{sampleAlert(), sampleAlert()})
	require.Error(t, err)

	assert.Len(t, good.statuses, 1)
	assert.Len(t, good.alerts, 2)
	after := testutil.ToFloat64(metrics.WriterErrors.WithLabelValues("multi_bad"))
	assert.Equal(t, 3.0, after-before)

	before = testutil.ToFloat64(metrics.WriterErrors.WithLabelValues("multi"))
	countWriterError(mw, err)
	assert.Equal(t, before, testutil.ToFloat64(metrics.WriterErrors.WithLabelValues("multi")))
}

func TestMultiWriterUsesBatch(t *testing.T) {
	b := &batchCollector{}
	mw := NewMultiWriter(nil, []AlertWriter{b})
	require.NoError(t, mw.WriteAlert(sampleAlert()))
	assert.Equal(t, 1, b.batches)
}

type closeCounter struct {
	collector
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return errors.New("closed")
}

func TestMultiWriterCloseOnce(t *testing.T) {
	c := &closeCounter{}
	mw := NewMultiWriter([]StatusWriter{c}, []AlertWriter{c})
	err := mw.Close()
	assert.EqualError(t, err, "closed")
	assert.Equal(t, 1, c.closed)
}
