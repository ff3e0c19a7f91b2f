package editor

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	MinZoom   = 0.1
	MaxZoom   = 5.0
	ZoomStep  = 1.25
	WheelStep = 1.1
)

// ZoomOp names a zoom command.
type ZoomOp string

const (
	ZoomIn    ZoomOp = "in"
	ZoomOut   ZoomOp = "out"
	ZoomReset ZoomOp = "reset"
	ZoomFit   ZoomOp = "fit"
)

// A view rendered without a viewport shows at most the default area.
// Explicit viewports are capped per side.
const (
	DefaultViewportW = 1280
	DefaultViewportH = 800
	MaxViewportSide  = 8192
)

var backdrop = color.RGBA{0x3c, 0x3c, 0x3c, 0xff}

// View is the zoom and scroll of the editor's viewport. It never touches
// pixel data.
type View struct {
	Zoom    float64 `json:"zoom"`
	ScrollX float64 `json:"scroll_x"`
	ScrollY float64 `json:"scroll_y"`
	// Viewport is the visible area in screen pixels; zero means the
	// default area, clipped to the zoomed image.
	ViewportW int `json:"viewport_width"`
	ViewportH int `json:"viewport_height"`
	// Display is the canvas's laid-out size at zoom 1; zero means it
	// matches the image's intrinsic size.
	DisplayW float64 `json:"display_width,omitempty"`
	DisplayH float64 `json:"display_height,omitempty"`
}

func defaultView() View { return View{Zoom: 1} }

func clampZoom(z float64) float64 {
	if math.IsNaN(z) || z <= 0 {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ratio is intrinsic/display for each axis.
func (v View) ratio(size image.Point) (float64, float64) {
	rx, ry := 1.0, 1.0
	if v.DisplayW > 0 && size.X > 0 {
		rx = float64(size.X) / v.DisplayW
	}
	if v.DisplayH > 0 && size.Y > 0 {
		ry = float64(size.Y) / v.DisplayH
	}
	return rx, ry
}

// ToCanvas maps a viewport point to image pixels:
// (screen + scroll) / zoom * (intrinsic / display).
func (v View) ToCanvas(sx, sy float64, size image.Point) (float64, float64) {
	z := clampZoom(v.Zoom)
	rx, ry := v.ratio(size)
	return (sx + v.ScrollX) / z * rx, (sy + v.ScrollY) / z * ry
}

// contentSize is the image's on-screen extent at the current zoom.
func (v View) contentSize(size image.Point) (float64, float64) {
	z := clampZoom(v.Zoom)
	rx, ry := v.ratio(size)
	return float64(size.X) / rx * z, float64(size.Y) / ry * z
}

// clampScroll keeps the scroll offset inside the zoomed content.
func (v View) clampScroll(size image.Point) View {
	cw, ch := v.contentSize(size)
	maxX, maxY := 0.0, 0.0
	if v.ViewportW > 0 {
		maxX = math.Max(0, cw-float64(v.ViewportW))
	}
	if v.ViewportH > 0 {
		maxY = math.Max(0, ch-float64(v.ViewportH))
	}
	v.ScrollX = math.Max(0, math.Min(v.ScrollX, maxX))
	v.ScrollY = math.Max(0, math.Min(v.ScrollY, maxY))
	return v
}

// PanBy scrolls by a screen delta.
func (v View) PanBy(dx, dy float64, size image.Point) View {
	v.ScrollX += dx
	v.ScrollY += dy
	return v.clampScroll(size)
}

// ZoomTo sets the zoom, keeping the viewport point (ax, ay) fixed on screen.
func (v View) ZoomTo(z, ax, ay float64, size image.Point) View {
	old := clampZoom(v.Zoom)
	z = clampZoom(z)
	v.ScrollX = (v.ScrollX+ax)*z/old - ax
	v.ScrollY = (v.ScrollY+ay)*z/old - ay
	v.Zoom = z
	return v.clampScroll(size)
}

// Apply runs a zoom command anchored at the viewport origin.
func (v View) Apply(op ZoomOp, size image.Point) View {
	switch op {
	case ZoomIn:
		return v.ZoomTo(v.Zoom*ZoomStep, 0, 0, size)
	case ZoomOut:
		return v.ZoomTo(v.Zoom/ZoomStep, 0, 0, size)
	case ZoomReset:
		return v.ZoomTo(1, 0, 0, size)
	case ZoomFit:
		return v.ZoomTo(v.fitZoom(size), 0, 0, size)
	}
	return v
}

// fitZoom is the largest zoom no greater than 1 that shows the whole image.
func (v View) fitZoom(size image.Point) float64 {
	if v.ViewportW <= 0 || v.ViewportH <= 0 || size.X <= 0 || size.Y <= 0 {
		return 1
	}
	rx, ry := v.ratio(size)
	zx := float64(v.ViewportW) / (float64(size.X) / rx)
	zy := float64(v.ViewportH) / (float64(size.Y) / ry)
	return math.Min(1, math.Min(zx, zy))
}

// Wheel applies one wheel notch per event: negative deltaY zooms in.
func (v View) Wheel(deltaY, ax, ay float64, size image.Point) View {
	switch {
	case deltaY < 0:
		return v.ZoomTo(v.Zoom*WheelStep, ax, ay, size)
	case deltaY > 0:
		return v.ZoomTo(v.Zoom/WheelStep, ax, ay, size)
	}
	return v
}

// RenderView composes what the viewport shows: the canvas and overlay
// scaled by the zoom and shifted by the scroll, over a neutral backdrop.
func RenderView(canvas, overlay *image.RGBA, v View) *image.RGBA {
	if canvas == nil {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	size := canvas.Bounds().Size()
	cw, ch := v.contentSize(size)
	w := viewportSide(v.ViewportW, DefaultViewportW, cw)
	h := viewportSide(v.ViewportH, DefaultViewportH, ch)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(backdrop), image.Point{}, draw.Src)

	dst := image.Rect(
		int(math.Round(-v.ScrollX)), int(math.Round(-v.ScrollY)),
		int(math.Round(cw-v.ScrollX)), int(math.Round(ch-v.ScrollY)),
	)
	if dst.Empty() {
		return out
	}
	scaler := xdraw.Interpolator(xdraw.ApproxBiLinear)
	if clampZoom(v.Zoom) >= 2 {
		scaler = xdraw.NearestNeighbor
	}
	scaler.Scale(out, dst, canvas, canvas.Bounds(), xdraw.Src, nil)
	if overlay != nil {
		scaler.Scale(out, dst, overlay, overlay.Bounds(), xdraw.Over, nil)
	}
	return out
}

func viewportSide(set, fallback int, content float64) int {
	if set <= 0 {
		return min(int(math.Ceil(content)), fallback)
	}
	return min(set, MaxViewportSide)
}
