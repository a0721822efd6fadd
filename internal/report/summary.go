package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/stat"

	"objectwatch/internal/status"
)

// Summary describes a run.
type Summary struct {
	Frames         int
	Duration       time.Duration
	MaxCapacity    int
	PresentRatio   float64 // fraction of frames with at least one instance present
	MeanPresent    float64
	StdDevPresent  float64
	MeanFrameGap   time.Duration
	MovementAlerts int
	MissingAlerts  int
	// Alerting identities in id order.
	Identities []int
}

// Summarize computes run statistics.
func Summarize(points []Point, alerts []status.AlertRow) Summary {
	var s Summary
	s.Frames = len(points)
	if len(points) > 0 {
		present := make([]float64, len(points))
		var seen int
		for i, p := range points {
			present[i] = float64(p.Present)
			if p.Present > 0 {
				seen++
			}
			s.MaxCapacity = max(s.MaxCapacity, p.Capacity)
		}
		s.MeanPresent, s.StdDevPresent = stat.MeanStdDev(present, nil)
		if len(points) == 1 {
			s.StdDevPresent = 0
		}
		s.PresentRatio = float64(seen) / float64(len(points))
		s.Duration = points[len(points)-1].Time.Sub(points[0].Time)
	}
	if len(points) > 1 {
		gaps := make([]float64, 0, len(points)-1)
		for i := 1; i < len(points); i++ {
			gaps = append(gaps, float64(points[i].Time.Sub(points[i-1].Time)))
		}
		s.MeanFrameGap = time.Duration(stat.Mean(gaps, nil))
	}

	ids := make(map[int]bool)
	for _, a := range alerts {
		switch a.Kind {
		case status.KindMovement:
			s.MovementAlerts++
		case status.KindMissing:
			s.MissingAlerts++
		}
		ids[a.IdentityID] = true
	}
	for id := range ids {
		s.Identities = append(s.Identities, id)
	}
	sort.Ints(s.Identities)
	return s
}

// Write prints the summary as an aligned table.
func (s Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Frames:\t%d\n", s.Frames)
	fmt.Fprintf(tw, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "Mean frame gap:\t%s\n", s.MeanFrameGap.Round(time.Millisecond))
	fmt.Fprintf(tw, "Capacity:\t%d\n", s.MaxCapacity)
	fmt.Fprintf(tw, "Present ratio:\t%.1f%%\n", s.PresentRatio*100)
	fmt.Fprintf(tw, "Present per frame:\t%.2f ± %.2f\n", s.MeanPresent, s.StdDevPresent)
	fmt.Fprintf(tw, "Movement alerts:\t%d\n", s.MovementAlerts)
	fmt.Fprintf(tw, "Missing alerts:\t%d\n", s.MissingAlerts)
	fmt.Fprintf(tw, "Alerting identities:\t%v\n", s.Identities)
	return tw.Flush()
}
