package editor

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestViewToCanvas(t *testing.T) {
	size := image.Pt(100, 100)
	tests := []struct {
		name   string
		view   View
		sx, sy float64
		wantX  float64
		wantY  float64
	}{
		{name: "identity", view: View{Zoom: 1}, sx: 12, sy: 34, wantX: 12, wantY: 34},
		{name: "zoom and scroll", view: View{Zoom: 2, ScrollX: 10, ScrollY: 20}, sx: 30, sy: 0, wantX: 20, wantY: 10},
		{
			name:  "display smaller than intrinsic",
			view:  View{Zoom: 2, ScrollX: 10, ScrollY: 20, DisplayW: 50, DisplayH: 50},
			sx:    5,
			sy:    0,
			wantX: 15,
			wantY: 20,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.view.ToCanvas(tt.sx, tt.sy, size)
			if !near(x, tt.wantX) || !near(y, tt.wantY) {
				t.Fatalf("ToCanvas(%v, %v) = (%v, %v); want (%v, %v)", tt.sx, tt.sy, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestViewZoomClamps(t *testing.T) {
	size := image.Pt(100, 100)
	v := defaultView()
	for i := 0; i < 50; i++ {
		v = v.Apply(ZoomIn, size)
	}
	if v.Zoom != MaxZoom {
		t.Fatalf("Zoom after zooming in = %v; want %v", v.Zoom, MaxZoom)
	}
	for i := 0; i < 50; i++ {
		v = v.Apply(ZoomOut, size)
	}
	if v.Zoom != MinZoom {
		t.Fatalf("Zoom after zooming out = %v; want %v", v.Zoom, MinZoom)
	}
	if v = v.Apply(ZoomReset, size); v.Zoom != 1 {
		t.Fatalf("Zoom after reset = %v; want 1", v.Zoom)
	}
}

func TestViewFitZoom(t *testing.T) {
	v := View{Zoom: 1, ViewportW: 200, ViewportH: 100}
	if got := v.Apply(ZoomFit, image.Pt(800, 200)).Zoom; !near(got, 0.25) {
		t.Fatalf("fit zoom = %v; want 0.25", got)
	}
	if got := v.Apply(ZoomFit, image.Pt(50, 50)).Zoom; got != 1 {
		t.Fatalf("fit zoom for small image = %v; want 1", got)
	}
}

func TestViewZoomKeepsAnchor(t *testing.T) {
	size := image.Pt(1000, 1000)
	v := View{Zoom: 1, ScrollX: 100, ScrollY: 100, ViewportW: 200, ViewportH: 200}
	bx, by := v.ToCanvas(50, 50, size)
	v = v.Wheel(-1, 50, 50, size)
	if !near(v.Zoom, WheelStep) {
		t.Fatalf("Zoom = %v; want %v", v.Zoom, WheelStep)
	}
	ax, ay := v.ToCanvas(50, 50, size)
	if math.Abs(ax-bx) > 1e-6 || math.Abs(ay-by) > 1e-6 {
		t.Fatalf("anchor moved from (%v, %v) to (%v, %v)", bx, by, ax, ay)
	}
}

func TestViewPanClampsToContent(t *testing.T) {
	size := image.Pt(100, 80)
	v := View{Zoom: 1, ViewportW: 60, ViewportH: 60}
	v = v.PanBy(500, 500, size)
	if v.ScrollX != 40 || v.ScrollY != 20 {
		t.Fatalf("scroll = (%v, %v); want (40, 20)", v.ScrollX, v.ScrollY)
	}
	v = v.PanBy(-500, -500, size)
	if v.ScrollX != 0 || v.ScrollY != 0 {
		t.Fatalf("scroll = (%v, %v); want (0, 0)", v.ScrollX, v.ScrollY)
	}
}

func TestRenderViewScalesCanvas(t *testing.T) {
	canvas := solid(10, 10, color.RGBA{0x10, 0x20, 0x30, 0xff})
	out := RenderView(canvas, nil, View{Zoom: 2})
	if got := out.Bounds().Size(); got != image.Pt(20, 20) {
		t.Fatalf("RenderView() size = %v; want 20x20", got)
	}
	if got := out.RGBAAt(19, 19); got != (color.RGBA{0x10, 0x20, 0x30, 0xff}) {
		t.Fatalf("RenderView() pixel = %v", got)
	}

	out = RenderView(canvas, nil, View{Zoom: 1, ViewportW: 30, ViewportH: 30})
	if got := out.RGBAAt(25, 25); got != backdrop {
		t.Fatalf("pixel outside canvas = %v; want backdrop", got)
	}
}

func TestRenderViewWithoutViewportIsBounded(t *testing.T) {
	canvas := solid(2000, 3000, color.RGBA{0x10, 0x20, 0x30, 0xff})
	out := RenderView(canvas, nil, View{Zoom: 12})
	if got := out.Bounds().Size(); got != image.Pt(DefaultViewportW, DefaultViewportH) {
		t.Fatalf("RenderView() size = %v; want default %dx%d", got, DefaultViewportW, DefaultViewportH)
	}
	if got := out.RGBAAt(DefaultViewportW-1, DefaultViewportH-1); got != (color.RGBA{0x10, 0x20, 0x30, 0xff}) {
		t.Fatalf("RenderView() corner pixel = %v; want canvas", got)
	}

	out = RenderView(canvas, nil, View{Zoom: 1, ViewportW: 1 << 20, ViewportH: 10})
	if got := out.Bounds().Size(); got != image.Pt(MaxViewportSide, 10) {
		t.Fatalf("RenderView() oversized viewport = %v; want %dx10", got, MaxViewportSide)
	}
}

func TestSetViewportRejectsOversize(t *testing.T) {
	ed := loaded(t, 4, 4)
	if err := ed.SetViewport(MaxViewportSide+1, 10, 0, 0); !types.HasCode(err, types.CodeValidation) {
		t.Fatalf("SetViewport() error = %v; want %s", err, types.CodeValidation)
	}
	if err := ed.SetViewport(MaxViewportSide, MaxViewportSide, 0, 0); err != nil {
		t.Fatalf("SetViewport(max) error = %v", err)
	}
}
