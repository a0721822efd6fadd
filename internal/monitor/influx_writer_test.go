package monitor

import (
	"context"
	"testing"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectwatch/internal/status"
)

type mockWriteAPI struct {
	points []*write.Point
}

func (m *mockWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	m.points = append(m.points, point...)
	return nil
}

func tagValue(p *write.Point, key string) string {
	for _, t := range p.TagList() {
		if t.Key == key {
			return t.Value
		}
	}
	return ""
}

func fieldValue(p *write.Point, key string) any {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func TestInfluxWriterStatus(t *testing.T) {
	m := &mockWriteAPI{}
	w := &InfluxWriter{api: m}
	require.NoError(t, w.WriteStatus(sampleSnapshot()))
	require.Len(t, m.points, 1)

	p := m.points[0]
	assert.Equal(t, "object_status", p.Name())
	assert.Equal(t, "s1", tagValue(p, "session_id"))
	assert.Equal(t, "bottle", tagValue(p, "target_class"))
	assert.Equal(t, true, fieldValue(p, "object_present"))
	assert.Equal(t, t0, p.Time())
}

func TestInfluxWriterAlerts(t *testing.T) {
	m := &mockWriteAPI{}
	w := &InfluxWriter{api: m}
	missing := sampleAlert()
	missing.Kind = status.KindMissing
	require.NoError(t, w.WriteAlerts([]status.AlertRow{sampleAlert(), missing}))
	require.Len(t, m.points, 2)
	assert.Equal(t, "object_alerts", m.points[0].Name())
	assert.Equal(t, "movement", tagValue(m.points[0], "kind"))
	assert.Equal(t, "missing", tagValue(m.points[1], "kind"))
	assert.Equal(t, 300.0, fieldValue(m.points[0], "x"))
	assert.NoError(t, w.Close())
}
