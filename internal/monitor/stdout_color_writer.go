// ColorStdoutWriter prints human-friendly, colorized status to STDOUT.
package monitor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/status"
	"objectwatch/internal/track"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints one coloured line per snapshot with a segment per
// instance, and highlighted alert lines.
type ColorStdoutWriter struct {
	params   track.Params
	filter   detect.Filter
	out      io.Writer
	once     sync.Once
	mu       sync.Mutex
	idColors map[int]string
}

var identityPalette = []string{colorGreen, colorCyan, colorBlue, colorMagenta, colorYellow}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout. The
// tracking parameters are printed once before the first line.
func NewColorStdoutWriter(p track.Params, f detect.Filter) *ColorStdoutWriter {
	return &ColorStdoutWriter{
		params:   p,
		filter:   f,
		out:      os.Stdout,
		idColors: make(map[int]string),
	}
}

func (w *ColorStdoutWriter) Name() string { return "stdout_color" }

func (w *ColorStdoutWriter) identityColor(id int) string {
	if c, ok := w.idColors[id]; ok {
		return c
	}
	c := identityPalette[len(w.idColors)%len(identityPalette)]
	w.idColors[id] = c
	return c
}

func (w *ColorStdoutWriter) printOverview() {
	fmt.Fprintln(w.out, "Tracking Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Target Class:\t%s\n", w.filter.TargetClass)
	fmt.Fprintf(tw, "Confidence Floor:\t%.2f\n", w.filter.MinConfidence)
	fmt.Fprintf(tw, "Move Threshold (px):\t%.0f\n", w.params.MoveThreshold)
	fmt.Fprintf(tw, "Match Distance (px):\t%.0f\n", w.params.MatchDistance)
	fmt.Fprintf(tw, "Missing After:\t%s\n", w.params.MissingAfter)
	fmt.Fprintf(tw, "Settling Frames:\t%d\n", w.params.SettlingFrames)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// WriteStatus outputs a snapshot in colorized format.
func (w *ColorStdoutWriter) WriteStatus(s status.Snapshot) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()

	msgColor := colorGreen
	switch {
	case s.MissingCount > 0:
		msgColor = colorRed
	case s.MovementDetected:
		msgColor = colorYellow
	case len(s.Instances) == 0:
		msgColor = colorGray
	}

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, s.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%sframe=%d%s ", colorBlue, s.Frame, colorReset)
	fmt.Fprintf(w.out, "%s%s%s", msgColor, s.StatusMessage, colorReset)
	for _, inst := range s.Instances {
		col := w.identityColor(inst.ID)
		if !inst.Present {
			col = colorGray
		}
		fmt.Fprintf(w.out, " %s#%d:%s", col, inst.ID, inst.State)
		if inst.Position != nil {
			fmt.Fprintf(w.out, "(%.0f,%.0f)", inst.Position.X, inst.Position.Y)
		}
		fmt.Fprint(w.out, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteAlert prints an alert in red.
func (w *ColorStdoutWriter) WriteAlert(a status.AlertRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s %sALERT %s%s %s\n",
		colorGray, a.Timestamp.Format(time.RFC3339), colorReset,
		colorRed, a.Kind, colorReset, a)
	return nil
}
