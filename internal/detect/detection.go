// Package detect is the boundary between the external object detector and the
// tracker: it defines the detector's records and reduces them to target-class
// detections.
package detect

import (
	"errors"
	"math"
	"time"

	"objectwatch/internal/geom"
)

// ErrMalformed marks a detector record that cannot be turned into a detection.
var ErrMalformed = errors.New("malformed detection")

// Raw is one detector output: class label, confidence and a pixel bounding box.
type Raw struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Box returns the record's bounding box.
func (r Raw) Box() geom.Box {
	return geom.Box{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2}
}

// Check returns ErrMalformed if the record has a non-finite confidence or an
// unusable box.
func (r Raw) Check() error {
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) {
		return ErrMalformed
	}
	if !r.Box().Valid() {
		return ErrMalformed
	}
	return nil
}

// Detection is a target-class candidate for one frame.
type Detection struct {
	Center     geom.Point `json:"center"`
	Box        geom.Box   `json:"box"`
	Confidence float64    `json:"confidence"`
}

// FromRaw converts a detector record to a detection centred on its box.
func FromRaw(r Raw) Detection {
	b := r.Box()
	return Detection{Center: b.Center(), Box: b, Confidence: r.Confidence}
}

// Frame is the detector output for one video frame. It is the unit streamed
// from an external detector, recorded to JSONL and replayed.
type Frame struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"ts"`
	Detections []Raw     `json:"detections"`
}
