package editor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/vector"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

const (
	DefaultPenWidth = 3.0
	MaxPenWidth     = 64.0
	curveSteps      = 8
	capSides        = 16
)

// DefaultPenColor is opaque red. Pen colors are not premultiplied.
var DefaultPenColor = color.NRGBA{0xe5, 0x39, 0x35, 0xff}

// Pen is the stroke style picked up when a stroke begins.
type Pen struct {
	Color color.NRGBA
	Width float64
}

func defaultPen() Pen { return Pen{Color: DefaultPenColor, Width: DefaultPenWidth} }

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, types.NewError(types.CodeValidation, fmt.Sprintf("invalid color %q", s), nil)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, types.NewError(types.CodeValidation, fmt.Sprintf("invalid color %q", s), nil)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// FormatColor is the inverse of ParseColor; alpha is omitted when opaque.
func FormatColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

type point struct{ X, Y float64 }

func mid(a, b point) point { return point{(a.X + b.X) / 2, (a.Y + b.Y) / 2} }

// stroke is an in-progress pen gesture in canvas coordinates. base is the
// canvas as it was at pointer-down; every redraw starts from it.
type stroke struct {
	pen    Pen
	points []point
	base   *image.RGBA
}

func (s *stroke) add(p point) bool {
	if n := len(s.points); n > 0 && s.points[n-1] == p {
		return false
	}
	s.points = append(s.points, p)
	return true
}

// smoothPath flattens the midpoint-quadratic curve through pts: each input
// point is the control point of a quadratic running between the midpoints
// on either side of it.
func smoothPath(pts []point) []point {
	if len(pts) < 3 {
		return append([]point(nil), pts...)
	}
	out := []point{pts[0]}
	start := pts[0]
	for i := 1; i < len(pts)-1; i++ {
		ctrl := pts[i]
		end := mid(pts[i], pts[i+1])
		for s := 1; s <= curveSteps; s++ {
			t := float64(s) / curveSteps
			u := 1 - t
			out = append(out, point{
				X: u*u*start.X + 2*u*t*ctrl.X + t*t*end.X,
				Y: u*u*start.Y + 2*u*t*ctrl.Y + t*t*end.Y,
			})
		}
		start = end
	}
	return append(out, pts[len(pts)-1])
}

// render draws the whole stroke onto dst, restoring the touched area from
// base first so translucent colors do not build up across redraws.
func (s *stroke) render(dst *image.RGBA) image.Rectangle {
	path := smoothPath(s.points)
	if len(path) == 0 {
		return image.Rectangle{}
	}
	r := s.pen.Width / 2
	// The raw points bound the curve, and every earlier redraw as well.
	minX, minY, maxX, maxY := path[0].X, path[0].Y, path[0].X, path[0].Y
	for _, p := range s.points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	box := image.Rect(
		int(math.Floor(minX-r))-1, int(math.Floor(minY-r))-1,
		int(math.Ceil(maxX+r))+1, int(math.Ceil(maxY+r))+1,
	).Intersect(dst.Bounds())
	if box.Empty() {
		return box
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	for i, p := range path {
		addCap(z, p.X-ox, p.Y-oy, r)
		if i > 0 {
			addSegment(z, path[i-1].X-ox, path[i-1].Y-oy, p.X-ox, p.Y-oy, r)
		}
	}
	if s.base != nil {
		draw.Draw(dst, box, s.base, box.Min, draw.Src)
	}
	z.Draw(dst, box, image.NewUniform(s.pen.Color), image.Point{})
	return box
}

// addSegment and addCap wind every polygon the same way; the rasterizer
// clamps overlapping same-direction coverage, which yields their union.
func addSegment(z *vector.Rasterizer, x0, y0, x1, y1, r float64) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*r, dx/l*r
	z.MoveTo(float32(x0+nx), float32(y0+ny))
	z.LineTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.LineTo(float32(x0-nx), float32(y0-ny))
	z.ClosePath()
}

func addCap(z *vector.Rasterizer, cx, cy, r float64) {
	if r < 0.5 {
		r = 0.5
	}
	for i := 0; i <= capSides; i++ {
		a := -2 * math.Pi * float64(i) / capSides
		x, y := float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}
