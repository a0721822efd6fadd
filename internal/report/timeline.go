package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"objectwatch/internal/status"
)

// Timeline builds a line chart of tracked, present and missing counts per
// frame, with alerts marked on the present series.
func Timeline(title string, points []Point, alerts []status.AlertRow) *charts.Line {
	x := make([]string, len(points))
	tracked := make([]opts.LineData, len(points))
	present := make([]opts.LineData, len(points))
	missing := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = strconv.FormatInt(p.Frame, 10)
		tracked[i] = opts.LineData{Value: p.Tracked}
		present[i] = opts.LineData{Value: p.Present}
		missing[i] = opts.LineData{Value: p.Missing}
	}

	marks := make([]opts.MarkPointNameCoordItem, 0, len(alerts))
	for _, a := range alerts {
		marks = append(marks, opts.MarkPointNameCoordItem{
			Name:       fmt.Sprintf("%s #%d", a.Kind, a.IdentityID),
			Coordinate: []interface{}{strconv.FormatInt(a.Frame, 10), presentAt(points, a.Frame)},
			Symbol:     "pin",
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d alerts=%d", len(points), len(alerts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objects"}),
	)
	line.SetXAxis(x).
		AddSeries("tracked", tracked).
		AddSeries("present", present, charts.WithMarkPointNameCoordItemOpts(marks...)).
		AddSeries("missing", missing)
	return line
}

func presentAt(points []Point, frame int64) int {
	for _, p := range points {
		if p.Frame == frame {
			return p.Present
		}
	}
	return 0
}

// RenderTimeline writes a standalone HTML page with the timeline chart.
func RenderTimeline(w io.Writer, title string, points []Point, alerts []status.AlertRow) error {
	return Timeline(title, points, alerts).Render(w)
}
