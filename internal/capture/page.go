package capture

import (
	"context"
	"math"
	"strconv"
)

// Page is the platform surface a capture runs against: one browser tab.
type Page interface {
	ID() string
	URL() string
	// CaptureVisible returns the visible viewport as an encoded PNG.
	CaptureVisible(ctx context.Context) ([]byte, error)
	// Geometry reads the document and viewport dimensions.
	Geometry(ctx context.Context) (PageGeometry, error)
	// ScrollTo scrolls the window and returns the vertical offset actually reached.
	ScrollTo(ctx context.Context, x, y float64) (float64, error)
}

// PageGeometry is read once per full-page capture.
type PageGeometry struct {
	ScrollWidth    float64 `json:"scroll_width"`
	ScrollHeight   float64 `json:"scroll_height"`
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	PixelDensity   float64 `json:"pixel_density"`
	ScrollX        float64 `json:"scroll_x"`
	ScrollY        float64 `json:"scroll_y"`
}

func (g PageGeometry) density() float64 {
	if g.PixelDensity <= 0 {
		return 1
	}
	return g.PixelDensity
}

// Segment is one viewport capture taken at a scroll offset.
type Segment struct {
	Image          []byte
	VerticalOffset float64
	// ActualOffset is where the browser really scrolled to; it is below
	// VerticalOffset when the last scroll was clamped at the page end.
	ActualOffset float64
	Final        bool
}

// GeometryExpr is a JavaScript expression evaluating to the page geometry
// object, field names matching PageGeometry's JSON tags.
const GeometryExpr = `(function(){
var de = document.documentElement, b = document.body || de;
return {
  scroll_width: Math.max(de.scrollWidth, b.scrollWidth),
  scroll_height: Math.max(de.scrollHeight, b.scrollHeight),
  viewport_width: window.innerWidth,
  viewport_height: window.innerHeight,
  pixel_density: window.devicePixelRatio || 1,
  scroll_x: window.scrollX,
  scroll_y: window.scrollY
};
})()`

// ScrollExpr scrolls the window to (x, y) and evaluates to the vertical
// offset actually reached.
func ScrollExpr(x, y float64) string {
	return "(function(){window.scrollTo(" + jsNumber(x) + "," + jsNumber(y) + ");return window.scrollY;})()"
}

func jsNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
