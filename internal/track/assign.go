package track

import (
	"math"

	"objectwatch/internal/detect"
	"objectwatch/internal/geom"
)

// Match pairs an identity with the index of the detection assigned to it.
type Match struct {
	ID        int
	Detection int
	Distance  float64
}

// assign greedily gives each candidate, in the order given, the nearest
// detection not yet marked in used whose distance is strictly below
// maxDistance. Matched detections are marked in used. Only strict improvements
// replace the best candidate, so ties go to the lower detection index and,
// across identities, to the one visited first.
func assign(candidates []*Identity, dets []detect.Detection, used []bool, maxDistance float64) []Match {
	var matches []Match
	for _, ident := range candidates {
		best := -1
		bestDist := math.Inf(1)
		for j, d := range dets {
			if used[j] {
				continue
			}
			dist := geom.Distance(ident.Position, d.Center)
			if dist >= maxDistance {
				continue
			}
			if dist < bestDist {
				best, bestDist = j, dist
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true
		matches = append(matches, Match{ID: ident.ID, Detection: best, Distance: bestDist})
	}
	return matches
}
