package track

import (
	"io"
	"log/slog"
	"time"

	"objectwatch/internal/detect"
	"objectwatch/internal/geom"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const frameDT = 100 * time.Millisecond

// at returns the timestamp of frame i at ten frames per second.
func at(i int) time.Time { return t0.Add(time.Duration(i) * frameDT) }

func det(x, y float64) detect.Detection {
	return detect.Detection{
		Center:     geom.Pt(x, y),
		Box:        geom.Box{X1: x - 10, Y1: y - 20, X2: x + 10, Y2: y + 20},
		Confidence: 0.9,
	}
}

func dets(pts ...geom.Point) []detect.Detection {
	out := make([]detect.Detection, len(pts))
	for i, p := range pts {
		out[i] = det(p.X, p.Y)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pt(x, y float64) geom.Point { return geom.Pt(x, y) }
