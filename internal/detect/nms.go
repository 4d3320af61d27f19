package detect

import (
	"math"
	"sort"

	"github.com/attendly/facegate/internal/geometry"
)

// nonMaxSuppression keeps the highest-scoring face in each overlapping
// group. Input order does not matter; the result is sorted by score
// descending.
func nonMaxSuppression(faces []rawFace, iouThreshold float64) []rawFace {
	sorted := make([]rawFace, len(faces))
	copy(sorted, faces)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].score > sorted[j].score
	})

	var kept []rawFace
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if geometry.IoUDetection(sorted[i].box, sorted[j].box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// resolveCluster decides whether the surviving detections are one
// person seen multiple times or genuinely different people. Survivors
// are compared against the best face: residual overlap, a much smaller
// box or a nearby center all indicate the same face leaking through
// suppression. Returns the best face and whether every survivor was
// explained as its duplicate.
func resolveCluster(faces []rawFace, cfg Config) (rawFace, bool) {
	best := faces[0]
	bestW := best.box.X2 - best.box.X1
	bestH := best.box.Y2 - best.box.Y1
	bestDiag := math.Hypot(bestW, bestH)
	bestCx := (best.box.X1 + best.box.X2) / 2
	bestCy := (best.box.Y1 + best.box.Y2) / 2

	for _, f := range faces[1:] {
		if geometry.IoUDetection(best.box, f.box) > cfg.DuplicateIoU {
			continue
		}

		w := f.box.X2 - f.box.X1
		h := f.box.Y2 - f.box.Y1
		sizeRatio := math.Min(w, h) / math.Max(math.Min(bestW, bestH), 1e-6)
		if sizeRatio < cfg.DuplicateSizeRatio {
			continue
		}

		cx := (f.box.X1 + f.box.X2) / 2
		cy := (f.box.Y1 + f.box.Y2) / 2
		if bestDiag > 0 && math.Hypot(cx-bestCx, cy-bestCy)/bestDiag < cfg.DuplicateCenterRatio {
			continue
		}

		// A comparably sized face far from the best one is a second person.
		return best, false
	}
	return best, true
}
