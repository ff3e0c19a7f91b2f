package capture

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Stitch composites segments, in order, into one canvas of
// viewportWidth × totalHeight scaled by pixel density.
func Stitch(segments []Segment, g PageGeometry, totalHeight float64) (*image.RGBA, error) {
	dpr := g.density()
	w := int(math.Round(g.ViewportWidth * dpr))
	h := int(math.Round(totalHeight * dpr))
	if w <= 0 || h <= 0 {
		return nil, types.NewError(types.CodeGeometryUnavailable, "empty page geometry", nil)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	for _, seg := range segments {
		img, err := Decode(seg.Image)
		if err != nil {
			return nil, err
		}
		dy := int(math.Round(seg.VerticalOffset * dpr))
		if dy >= h {
			continue
		}
		skip := int(math.Round((seg.VerticalOffset - seg.ActualOffset) * dpr))
		if skip < 0 {
			skip = 0
		}
		b := img.Bounds()
		rows := min(b.Dy()-skip, h-dy)
		if rows <= 0 {
			continue
		}
		cols := min(b.Dx(), w)
		draw.Draw(dst, image.Rect(0, dy, cols, dy+rows), img, image.Pt(b.Min.X, b.Min.Y+skip), draw.Src)
	}
	return dst, nil
}

// CropSelection cuts rect, scaled by its pixel density, out of img.
func CropSelection(img image.Image, rect types.SelectionRect) (*image.RGBA, error) {
	dpr := rect.PixelDensity
	if dpr <= 0 {
		dpr = 1
	}
	b := img.Bounds()
	r := image.Rect(
		b.Min.X+int(math.Round(rect.X*dpr)),
		b.Min.Y+int(math.Round(rect.Y*dpr)),
		b.Min.X+int(math.Round((rect.X+rect.Width)*dpr)),
		b.Min.Y+int(math.Round((rect.Y+rect.Height)*dpr)),
	).Intersect(b)
	if r.Empty() {
		return nil, types.NewError(types.CodeValidation, "selection lies outside the captured viewport", nil)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out, nil
}

// Decode decodes an encoded raster image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, types.NewError(types.CodeDecodeFailure, "empty image buffer", nil)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.CodeDecodeFailure, "decode image", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, types.NewError(types.CodeDecodeFailure, "encode png", err)
	}
	return buf.Bytes(), nil
}

// Dimensions reads the pixel size of an encoded image without decoding it.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, types.NewError(types.CodeDecodeFailure, "decode image header", err)
	}
	return cfg.Width, cfg.Height, nil
}
