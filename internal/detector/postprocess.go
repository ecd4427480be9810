package detector

import (
	"fmt"
	"image"
	"sort"
)

// candidate is a box in model input coordinates before NMS.
type candidate struct {
	classID    int
	confidence float64
	x1, y1     float64
	x2, y2     float64
}

// decodeOutput reads a [1, 4+numClasses, numBoxes] tensor: each column holds a box
// centre, width, height and one score per class. Only the best class of each box is
// kept, and only if it reaches minConfidence.
func decodeOutput(data []float32, numClasses, numBoxes int, minConfidence float64) ([]candidate, error) {
	rows := 4 + numClasses
	if numClasses <= 0 || numBoxes < 0 {
		return nil, fmt.Errorf("invalid output layout: %d classes, %d boxes", numClasses, numBoxes)
	}
	if len(data) != rows*numBoxes {
		return nil, fmt.Errorf("output has %d values, expected %d (%d rows x %d boxes)", len(data), rows*numBoxes, rows, numBoxes)
	}

	var out []candidate
	for i := 0; i < numBoxes; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*numBoxes+i]
			if best < 0 || score > bestScore {
				best, bestScore = c, score
			}
		}
		if float64(bestScore) < minConfidence {
			continue
		}

		cx := float64(data[i])
		cy := float64(data[numBoxes+i])
		w := float64(data[2*numBoxes+i])
		h := float64(data[3*numBoxes+i])
		out = append(out, candidate{
			classID:    best,
			confidence: float64(bestScore),
			x1:         cx - w/2,
			y1:         cy - h/2,
			x2:         cx + w/2,
			y2:         cy + h/2,
		})
	}
	return out, nil
}

// iou returns the intersection over union of two boxes.
func iou(a, b candidate) float64 {
	ix1, iy1 := max(a.x1, b.x1), max(a.y1, b.y1)
	ix2, iy2 := min(a.x2, b.x2), min(a.y2, b.y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// nonMaxSuppression greedily keeps the most confident box and drops boxes of the
// same class overlapping it by more than threshold. The result is sorted by
// confidence, highest first.
func nonMaxSuppression(cands []candidate, threshold float64) []candidate {
	sorted := append([]candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].confidence > sorted[j].confidence })

	suppressed := make([]bool, len(sorted))
	var kept []candidate
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].classID != sorted[i].classID {
				continue
			}
			if iou(sorted[i], sorted[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// toDetections converts candidates to labelled detections in source coordinates.
func toDetections(cands []candidate, labels []string, lb letterboxInfo) []Detection {
	dets := make([]Detection, 0, len(cands))
	for _, c := range cands {
		label := fmt.Sprintf("class_%d", c.classID)
		if c.classID < len(labels) {
			label = labels[c.classID]
		}
		dets = append(dets, Detection{
			Label:      label,
			ClassID:    c.classID,
			Confidence: c.confidence,
			Box:        image.Rectangle{Min: lb.toSource(c.x1, c.y1), Max: lb.toSource(c.x2, c.y2)}.Canon(),
		})
	}
	return dets
}
