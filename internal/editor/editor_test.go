package editor

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

var white = color.RGBA{0xff, 0xff, 0xff, 0xff}

func encoded(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := capture.EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	return data
}

func loaded(t *testing.T, w, h int) *Editor {
	t.Helper()
	ed := New("ed-test", 0)
	if err := ed.Load(encoded(t, solid(w, h, white))); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ed
}

func drag(t *testing.T, ed *Editor, from, to image.Point) {
	t.Helper()
	events := []PointerEvent{
		{Kind: PointerDown, X: float64(from.X), Y: float64(from.Y)},
		{Kind: PointerMove, X: float64(to.X), Y: float64(to.Y)},
		{Kind: PointerUp, X: float64(to.X), Y: float64(to.Y)},
	}
	for _, ev := range events {
		if err := ed.Pointer(ev); err != nil {
			t.Fatalf("Pointer(%v) error = %v", ev, err)
		}
	}
}

func pixels(t *testing.T, ed *Editor) []byte {
	t.Helper()
	img, err := ed.Image()
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	return img.Pix
}

func TestLoadDecodeFailureLeavesDocumentEmpty(t *testing.T) {
	ed := New("ed-bad", 0)
	err := ed.Load([]byte("not an image"))
	if !types.HasCode(err, types.CodeDecodeFailure) {
		t.Fatalf("Load() error = %v; want %s", err, types.CodeDecodeFailure)
	}
	if info := ed.Info(); info.Loaded || info.History.Len != 0 {
		t.Fatalf("Info() = %+v; want empty document", info)
	}
	if err := ed.Pointer(PointerEvent{Kind: PointerDown}); !types.HasCode(err, types.CodeValidation) {
		t.Fatalf("Pointer() error = %v; want %s", err, types.CodeValidation)
	}
	if _, err := ed.PNG(); err == nil {
		t.Fatalf("PNG() error = nil; want error for empty document")
	}
}

func TestPenStrokeCommitsOnPointerUp(t *testing.T) {
	ed := loaded(t, 40, 40)
	ed.SetTool(ToolPen)
	drag(t, ed, image.Pt(5, 20), image.Pt(35, 20))

	info := ed.Info()
	if info.History.Len != 2 || info.History.Cursor != 1 {
		t.Fatalf("history = %+v; want one committed stroke", info.History)
	}
	img, _ := ed.Image()
	want := color.RGBA{DefaultPenColor.R, DefaultPenColor.G, DefaultPenColor.B, 0xff}
	if got := img.RGBAAt(20, 20); got != want {
		t.Fatalf("pixel on stroke = %v; want %v", got, want)
	}
	if got := img.RGBAAt(20, 30); got != white {
		t.Fatalf("pixel off stroke = %v; want white", got)
	}
}

func TestPointerLeaveEndsStroke(t *testing.T) {
	ed := loaded(t, 40, 40)
	ed.SetTool(ToolPen)
	_ = ed.Pointer(PointerEvent{Kind: PointerDown, X: 5, Y: 5})
	_ = ed.Pointer(PointerEvent{Kind: PointerMove, X: 20, Y: 20})
	_ = ed.Pointer(PointerEvent{Kind: PointerLeave, X: 60, Y: 60})
	if got := ed.Info().History.Len; got != 2 {
		t.Fatalf("history len = %d; want 2 after pointer-leave", got)
	}
	_ = ed.Pointer(PointerEvent{Kind: PointerMove, X: 30, Y: 30})
	if got := ed.Info().History.Len; got != 2 {
		t.Fatalf("history len = %d; move after leave must not draw", got)
	}
}

func TestUndoRedoRestoresByteForByte(t *testing.T) {
	ed := loaded(t, 30, 30)
	ed.SetTool(ToolPen)
	ed.SetPen(Pen{Color: color.NRGBA{0x20, 0x40, 0xff, 0x80}, Width: 4})

	states := [][]byte{pixels(t, ed)}
	for _, y := range []int{5, 10, 15, 20} {
		drag(t, ed, image.Pt(2, y), image.Pt(28, y+3))
		states = append(states, pixels(t, ed))
	}

	n := len(states) - 1
	for i := 0; i < n; i++ {
		if !ed.Undo() {
			t.Fatalf("Undo() #%d = false", i)
		}
	}
	if !bytes.Equal(pixels(t, ed), states[0]) {
		t.Fatalf("after %d undos canvas differs from the loaded image", n)
	}
	if ed.Undo() {
		t.Fatalf("Undo() at oldest entry = true")
	}
	for i := 0; i < n; i++ {
		if !ed.Redo() {
			t.Fatalf("Redo() #%d = false", i)
		}
		if !bytes.Equal(pixels(t, ed), states[i+1]) {
			t.Fatalf("after redo #%d canvas differs from recorded state", i)
		}
	}
	if ed.Redo() {
		t.Fatalf("Redo() at newest entry = true")
	}
}

func TestEditAfterUndoDiscardsRedo(t *testing.T) {
	ed := loaded(t, 30, 30)
	ed.SetTool(ToolPen)
	drag(t, ed, image.Pt(2, 5), image.Pt(28, 5))
	drag(t, ed, image.Pt(2, 15), image.Pt(28, 15))
	ed.Undo()
	drag(t, ed, image.Pt(2, 25), image.Pt(28, 25))

	info := ed.Info()
	if info.History.Len != 3 || info.History.CanRedo {
		t.Fatalf("history = %+v; want redo tail discarded", info.History)
	}
}

func TestCropArmsAndApplies(t *testing.T) {
	ed := loaded(t, 40, 40)
	ed.SetTool(ToolCrop)
	drag(t, ed, image.Pt(10, 10), image.Pt(30, 25))

	info := ed.Info()
	if info.Crop == nil || !info.Crop.Armed || info.Crop.Width != 20 || info.Crop.Height != 15 {
		t.Fatalf("Crop = %+v; want armed 20x15", info.Crop)
	}
	if ed.Overlay() == nil {
		t.Fatalf("Overlay() = nil while crop armed")
	}
	if info.History.Len != 1 {
		t.Fatalf("history len = %d; crop must not commit before apply", info.History.Len)
	}

	if err := ed.ApplyCrop(); err != nil {
		t.Fatalf("ApplyCrop() error = %v", err)
	}
	info = ed.Info()
	if info.Width != 20 || info.Height != 15 || info.History.Len != 2 || info.Crop != nil {
		t.Fatalf("Info() after apply = %+v", info)
	}
	if ed.Overlay() != nil {
		t.Fatalf("Overlay() after apply = non-nil")
	}

	ed.Undo()
	if info := ed.Info(); info.Width != 40 || info.Height != 40 {
		t.Fatalf("size after undo = %dx%d; want 40x40", info.Width, info.Height)
	}
	ed.Redo()
	if info := ed.Info(); info.Width != 20 || info.Height != 15 {
		t.Fatalf("size after redo = %dx%d; want 20x15", info.Width, info.Height)
	}
}

func TestCropBelowMinimumAutoCancels(t *testing.T) {
	ed := loaded(t, 40, 40)
	ed.SetTool(ToolCrop)
	drag(t, ed, image.Pt(10, 10), image.Pt(15, 35))

	if info := ed.Info(); info.Crop != nil {
		t.Fatalf("Crop = %+v; want cancelled", info.Crop)
	}
	if ed.Overlay() != nil {
		t.Fatalf("Overlay() = non-nil after auto-cancel")
	}
	if err := ed.ApplyCrop(); !types.HasCode(err, types.CodeValidation) {
		t.Fatalf("ApplyCrop() error = %v; want %s", err, types.CodeValidation)
	}
}

func TestCropOverlayMasksOutside(t *testing.T) {
	ov := cropOverlay(image.Pt(40, 40), image.Rect(10, 10, 30, 25))
	if got := ov.RGBAAt(2, 38); got != cropMask {
		t.Fatalf("outside pixel = %v; want mask %v", got, cropMask)
	}
	if got := ov.RGBAAt(12, 12); got.A != 0 {
		t.Fatalf("inside pixel = %v; want transparent", got)
	}
	if got := ov.RGBAAt(10, 10); got != dashDark {
		t.Fatalf("border start = %v; want %v", got, dashDark)
	}
	if got := ov.RGBAAt(10+cropDash, 10); got != dashLight {
		t.Fatalf("second dash = %v; want %v", got, dashLight)
	}
}

func TestCropLabelUsesDrawableGlyphs(t *testing.T) {
	text := cropLabelText(image.Rect(0, 0, 120, 45))
	if text != "120 x 45" {
		t.Fatalf("cropLabelText() = %q; want %q", text, "120 x 45")
	}
	for _, r := range text {
		if _, ok := basicfont.Face7x13.GlyphAdvance(r); !ok {
			t.Fatalf("basicfont has no glyph for %q", r)
		}
	}
}

func TestSetToolCancelsCropAndCommitsStroke(t *testing.T) {
	ed := loaded(t, 40, 40)
	ed.SetTool(ToolCrop)
	drag(t, ed, image.Pt(5, 5), image.Pt(35, 35))
	ed.SetTool(ToolPen)
	if info := ed.Info(); info.Crop != nil || ed.Overlay() != nil {
		t.Fatalf("crop survived tool switch: %+v", info.Crop)
	}

	_ = ed.Pointer(PointerEvent{Kind: PointerDown, X: 5, Y: 5})
	_ = ed.Pointer(PointerEvent{Kind: PointerMove, X: 30, Y: 5})
	ed.SetTool(ToolSelect)
	if got := ed.Info().History.Len; got != 2 {
		t.Fatalf("history len = %d; want stroke committed on tool switch", got)
	}
}

func TestSelectToolPans(t *testing.T) {
	ed := loaded(t, 100, 100)
	if err := ed.SetViewport(50, 50, 0, 0); err != nil {
		t.Fatalf("SetViewport() error = %v", err)
	}
	drag(t, ed, image.Pt(40, 40), image.Pt(30, 20))
	v := ed.Info().View
	if v.ScrollX != 10 || v.ScrollY != 20 {
		t.Fatalf("scroll = (%v, %v); want (10, 20)", v.ScrollX, v.ScrollY)
	}
}

func TestPenFollowsViewTransform(t *testing.T) {
	ed := loaded(t, 100, 100)
	_ = ed.SetViewport(50, 50, 0, 0)
	_ = ed.Zoom(ZoomIn)
	_ = ed.Wheel(WheelEvent{DeltaX: 20, DeltaY: 20})
	ed.SetTool(ToolPen)
	ed.SetPen(Pen{Color: color.NRGBA{0, 0, 0, 0xff}, Width: 4})
	// (screen + scroll) / zoom = (30 + 20) / 1.25 = 40
	drag(t, ed, image.Pt(30, 30), image.Pt(31, 30))

	img, _ := ed.Image()
	if got := img.RGBAAt(40, 40); got != (color.RGBA{0, 0, 0, 0xff}) {
		t.Fatalf("pixel at mapped point = %v; want black", got)
	}
	if got := img.RGBAAt(30, 30); got != white {
		t.Fatalf("pixel at unmapped point = %v; want white", got)
	}
}

func TestSetPenRejectsBadWidth(t *testing.T) {
	ed := New("ed", 0)
	for _, w := range []float64{0, -1, MaxPenWidth + 1} {
		if err := ed.SetPen(Pen{Width: w}); !types.HasCode(err, types.CodeValidation) {
			t.Fatalf("SetPen(width %v) error = %v; want %s", w, err, types.CodeValidation)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{in: "#f00", want: color.NRGBA{0xff, 0, 0, 0xff}, ok: true},
		{in: "#1e88e5", want: color.NRGBA{0x1e, 0x88, 0xe5, 0xff}, ok: true},
		{in: "1e88e580", want: color.NRGBA{0x1e, 0x88, 0xe5, 0x80}, ok: true},
		{in: "#12345"},
		{in: "#gggggg"},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("ParseColor(%q) error = %v; want ok=%v", tt.in, err, tt.ok)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("ParseColor(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
	if got := FormatColor(color.NRGBA{0x1e, 0x88, 0xe5, 0x80}); got != "#1e88e580" {
		t.Fatalf("FormatColor() = %q; want #1e88e580", got)
	}
}

func TestParseTool(t *testing.T) {
	if got, err := ParseTool(" Pen "); err != nil || got != ToolPen {
		t.Fatalf("ParseTool(Pen) = %q, %v; want pen", got, err)
	}
	if _, err := ParseTool("lasso"); !types.HasCode(err, types.CodeValidation) {
		t.Fatalf("ParseTool(lasso) error = %v; want %s", err, types.CodeValidation)
	}
}
