package detect

import (
	"sort"
	"strings"

	"objectwatch/internal/geom"
)

// DefaultNMSThreshold matches the IoU used by the upstream detector.
const DefaultNMSThreshold = 0.4

// Filter reduces raw detector output to detections of a single class.
type Filter struct {
	TargetClass   string
	MinConfidence float64
	// NMSThreshold is the IoU above which the lower-confidence of two boxes of the
	// same class is suppressed. Zero disables suppression.
	NMSThreshold float64
}

// Stats counts what Apply discarded.
type Stats struct {
	Malformed  int
	OtherClass int
	LowScore   int
	Suppressed int
	Accepted   int
}

// Apply returns target-class detections ordered by descending confidence.
// Malformed records are dropped; a nil or empty input yields no detections.
func (f Filter) Apply(raw []Raw) ([]Detection, Stats) {
	var st Stats
	candidates := make([]Raw, 0, len(raw))
	for _, r := range raw {
		if r.Check() != nil {
			st.Malformed++
			continue
		}
		if !strings.EqualFold(r.Class, f.TargetClass) {
			st.OtherClass++
			continue
		}
		if r.Confidence < f.MinConfidence {
			st.LowScore++
			continue
		}
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	kept := candidates
	if f.NMSThreshold > 0 {
		kept = suppress(candidates, f.NMSThreshold)
		st.Suppressed = len(candidates) - len(kept)
	}

	out := make([]Detection, len(kept))
	for i, r := range kept {
		out[i] = FromRaw(r)
	}
	st.Accepted = len(out)
	return out, st
}

// suppress runs greedy non-max suppression over boxes sorted by descending
// confidence: a box is dropped if it overlaps an already kept box above thr.
func suppress(sorted []Raw, thr float64) []Raw {
	kept := make([]Raw, 0, len(sorted))
	for _, r := range sorted {
		overlap := false
		for _, k := range kept {
			if geom.IoU(r.Box(), k.Box()) > thr {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, r)
		}
	}
	return kept
}
