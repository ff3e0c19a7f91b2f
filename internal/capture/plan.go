package capture

import "math"

// DefaultMaxPageHeight bounds the stitched canvas in CSS pixels.
const DefaultMaxPageHeight = 30000

// Plan is the segment layout for one full-page capture.
type Plan struct {
	TotalHeight float64
	Offsets     []float64
}

// PlanSegments computes the capped page height and the scroll offset of
// every segment, in increasing order.
func PlanSegments(g PageGeometry, maxPageHeight float64) Plan {
	if maxPageHeight <= 0 {
		maxPageHeight = DefaultMaxPageHeight
	}
	total := math.Min(g.ScrollHeight, maxPageHeight)
	if total < 1 {
		total = g.ViewportHeight
	}
	vh := g.ViewportHeight
	if vh <= 0 {
		return Plan{TotalHeight: total, Offsets: []float64{0}}
	}
	count := int(math.Ceil(total / vh))
	if count < 1 {
		count = 1
	}
	offsets := make([]float64, count)
	for i := range offsets {
		offsets[i] = float64(i) * vh
	}
	return Plan{TotalHeight: total, Offsets: offsets}
}
