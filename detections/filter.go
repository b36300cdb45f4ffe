package detections

import (
	"fmt"
	"math"

	"github.com/Tutortoise/weapon-detection-service/models"
)

// Filter keeps every candidate whose score is strictly greater than threshold,
// in the order the model emitted them, and resolves class names through labels.
// It never re-ranks and never suppresses overlapping boxes.
func Filter(raw models.RawDetections, labels models.LabelMap, threshold float32) (models.DetectionBatch, error) {
	n := raw.Len()
	if len(raw.Boxes) != n || len(raw.ClassIDs) != n {
		return nil, fmt.Errorf("mismatched candidate arrays: %d boxes, %d scores, %d classes",
			len(raw.Boxes), n, len(raw.ClassIDs))
	}

	batch := make(models.DetectionBatch, 0, n)
	for i := 0; i < n; i++ {
		score := raw.Scores[i]
		if !(score > threshold) {
			continue
		}
		batch = append(batch, models.Detection{
			Box:       normalizeBox(raw.Boxes[i]),
			Score:     score,
			ClassID:   raw.ClassIDs[i],
			ClassName: labels.Name(raw.ClassIDs[i]),
		})
	}
	return batch, nil
}

// normalizeBox clamps coordinates into [0,1] and orders each min/max pair.
// Non-finite coordinates become 0.
func normalizeBox(b models.Box) models.Box {
	for i := range b {
		b[i] = clamp01(b[i])
	}
	if b[0] > b[2] {
		b[0], b[2] = b[2], b[0]
	}
	if b[1] > b[3] {
		b[1], b[3] = b[3], b[1]
	}
	return b
}

func clamp01(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
