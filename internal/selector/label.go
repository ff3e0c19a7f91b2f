package selector

import (
	"fmt"
	"math"
)

const (
	labelHeight    = 22
	labelCharWidth = 7
	labelPadding   = 12
	labelGap       = 6
	labelMargin    = 4
)

// LabelText formats the dimension readout for r.
func LabelText(r Rect) string {
	return fmt.Sprintf("%d × %d", int(math.Round(r.Width)), int(math.Round(r.Height)))
}

// PlaceLabel positions the dimension label above the rectangle, flipping it
// below when there is no room on top and pulling it inside when below would
// leave the viewport. The label is always clamped horizontally.
// A zero viewport disables clamping.
func PlaceLabel(r Rect, vw, vh float64) Label {
	text := LabelText(r)
	w := float64(len([]rune(text))*labelCharWidth + labelPadding)

	x := r.X
	y := r.Y - labelHeight - labelGap
	if y < 0 {
		y = r.Y + r.Height + labelGap
		if vh > 0 && y+labelHeight > vh {
			y = r.Y + labelGap
		}
	}
	if vw > 0 && x+w > vw-labelMargin {
		x = vw - w - labelMargin
	}
	if x < labelMargin {
		x = labelMargin
	}
	if vh > 0 && y+labelHeight > vh {
		y = vh - labelHeight - labelMargin
	}
	if y < 0 {
		y = 0
	}
	return Label{Text: text, X: x, Y: y}
}
