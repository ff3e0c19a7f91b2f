package editor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cropDash       = 4
	cropLabelPadX  = 4
	cropLabelH     = 17
	cropLabelGap   = 2
	cropLabelInset = 4
)

var (
	cropMask      = color.RGBA{0, 0, 0, 0x80}
	cropLabelFill = color.RGBA{0, 0, 0, 0xc0}
	dashDark      = color.RGBA{0, 0, 0, 0xff}
	dashLight     = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// cropState is the crop tool's candidate rect in canvas coordinates. It is
// dragging between pointer-down and pointer-up, then armed until applied or
// cancelled.
type cropState struct {
	start, cur point
	dragging   bool
	armed      bool
}

func (c *cropState) rect(bounds image.Rectangle) image.Rectangle {
	return image.Rect(
		int(math.Round(c.start.X)), int(math.Round(c.start.Y)),
		int(math.Round(c.cur.X)), int(math.Round(c.cur.Y)),
	).Intersect(bounds)
}

func cropTooSmall(r image.Rectangle) bool {
	return r.Dx() < minCropSize || r.Dy() < minCropSize
}

// cropOverlay draws the candidate rect for a canvas of the given size: a
// translucent mask outside, a dashed border and a size label.
func cropOverlay(size image.Point, r image.Rectangle) *image.RGBA {
	ov := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(ov, ov.Bounds(), image.NewUniform(cropMask), image.Point{}, draw.Src)
	if r.Empty() {
		return ov
	}
	draw.Draw(ov, r, image.Transparent, image.Point{}, draw.Src)
	drawDashedRect(ov, r, cropDash, dashDark, dashLight)
	drawCropLabel(ov, r)
	return ov
}

// drawDashedRect walks the border clockwise from the top-left corner,
// switching color every dash pixels.
func drawDashedRect(img *image.RGBA, r image.Rectangle, dash int, c1, c2 color.RGBA) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	n := 0
	plot := func(x, y int) {
		c := c1
		if (n/dash)%2 == 1 {
			c = c2
		}
		img.SetRGBA(x, y, c)
		n++
	}
	for x := x0; x <= x1; x++ {
		plot(x, y0)
	}
	for y := y0 + 1; y <= y1; y++ {
		plot(x1, y)
	}
	if y1 > y0 {
		for x := x1 - 1; x >= x0; x-- {
			plot(x, y1)
		}
	}
	if x1 > x0 {
		for y := y1 - 1; y > y0; y-- {
			plot(x0, y)
		}
	}
}

// cropLabelText stays within the ASCII range basicfont covers.
func cropLabelText(r image.Rectangle) string {
	return fmt.Sprintf("%d x %d", r.Dx(), r.Dy())
}

// drawCropLabel puts "W x H" above the rect, or just inside its top edge
// when there is no room above.
func drawCropLabel(img *image.RGBA, r image.Rectangle) {
	text := cropLabelText(r)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.White), Face: basicfont.Face7x13}
	w := d.MeasureString(text).Ceil() + 2*cropLabelPadX

	box := image.Rect(r.Min.X, r.Min.Y-cropLabelGap-cropLabelH, r.Min.X+w, r.Min.Y-cropLabelGap)
	if box.Min.Y < 0 {
		box = box.Add(image.Pt(cropLabelInset, cropLabelH+cropLabelGap+cropLabelInset))
	}
	if b := img.Bounds(); box.Max.X > b.Max.X {
		box = box.Sub(image.Pt(box.Max.X-b.Max.X, 0))
	}
	draw.Draw(img, box, image.NewUniform(cropLabelFill), image.Point{}, draw.Over)
	d.Dot = fixed.P(box.Min.X+cropLabelPadX, box.Max.Y-cropLabelInset)
	d.DrawString(text)
}

func cropImage(src *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rectangle{Max: r.Size()})
	draw.Draw(out, out.Bounds(), src, r.Min, draw.Src)
	return out
}
