package types

import (
	"fmt"
	"strings"
)

// Mode selects a capture strategy.
type Mode string

const (
	ModeVisible  Mode = "visible"
	ModeFullPage Mode = "full-page"
	ModeRegion   Mode = "region"
)

// Modes lists every capture mode in trigger order.
var Modes = []Mode{ModeVisible, ModeFullPage, ModeRegion}

// ParseMode accepts the canonical names plus a few spellings used by key maps.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "visible", "viewport":
		return ModeVisible, nil
	case "full-page", "fullpage", "full_page", "full":
		return ModeFullPage, nil
	case "region", "selection", "area":
		return ModeRegion, nil
	}
	return "", NewError(CodeValidation, fmt.Sprintf("unknown capture mode %q", s), nil)
}

// SelectionRect is a user-selected rectangle in viewport CSS pixels.
type SelectionRect struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	PixelDensity float64 `json:"pixel_density"`
}

// MinSelectionSize is the smallest width and height accepted as a selection.
const MinSelectionSize = 10

// TooSmall reports whether the rect is below the minimum extent.
func (r SelectionRect) TooSmall() bool {
	return r.Width < MinSelectionSize || r.Height < MinSelectionSize
}
