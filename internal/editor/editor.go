// Package editor is the raster editor a capture is handed to: one document
// with a bounded undo history, crop and pen tools, and a zoomable view.
package editor

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Editor owns one document. All methods are safe for concurrent use.
type Editor struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	sourceURL string
	mode      types.Mode

	canvas  *image.RGBA
	overlay *image.RGBA
	history *History

	tool   Tool
	pan    *panState
	crop   *cropState
	stroke *stroke

	view View
	pen  Pen
}

func New(id string, historyCapacity int) *Editor {
	return &Editor{
		id:        id,
		createdAt: time.Now().UTC(),
		history:   NewHistory(historyCapacity),
		tool:      ToolSelect,
		view:      defaultView(),
		pen:       defaultPen(),
	}
}

func (e *Editor) ID() string { return e.id }

// SetSource records the page and capture mode the document came from.
func (e *Editor) SetSource(url string, mode types.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceURL, e.mode = url, mode
}

// Load decodes data as the document and makes it the first history entry.
// On failure the document stays empty.
func (e *Editor) Load(data []byte) error {
	img, err := capture.Decode(data)
	if err != nil {
		return err
	}
	rgba := toRGBA(img)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.canvas = rgba
	e.overlay = nil
	e.pan, e.crop, e.stroke = nil, nil, nil
	e.history = NewHistory(e.history.Capacity())
	e.history.Push(rgba)
	e.view = e.view.clampScroll(e.sizeLocked())
	slog.Debug("editor document loaded", "editor_id", e.id, "width", rgba.Bounds().Dx(), "height", rgba.Bounds().Dy())
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func (e *Editor) requireDocLocked() error {
	if e.canvas == nil {
		return types.NewError(types.CodeValidation, "editor "+e.id+" has no image loaded", nil)
	}
	return nil
}

func (e *Editor) sizeLocked() image.Point {
	if e.canvas == nil {
		return image.Point{}
	}
	return e.canvas.Bounds().Size()
}

// canvasPointLocked maps a viewport point into image pixels, clamped to
// the canvas.
func (e *Editor) canvasPointLocked(ev PointerEvent) point {
	size := e.sizeLocked()
	x, y := e.view.ToCanvas(ev.X, ev.Y, size)
	return point{
		X: math.Max(0, math.Min(x, float64(size.X))),
		Y: math.Max(0, math.Min(y, float64(size.Y))),
	}
}

// Pointer routes a pointer event to the active tool.
func (e *Editor) Pointer(ev PointerEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireDocLocked(); err != nil {
		return err
	}
	switch ev.Kind {
	case PointerDown, PointerMove, PointerUp, PointerLeave:
	default:
		return types.NewError(types.CodeValidation, fmt.Sprintf("unknown pointer event %q", ev.Kind), nil)
	}
	if h, ok := dispatch[dispatchKey{e.tool, ev.Kind}]; ok {
		h(e, ev)
	}
	return nil
}

// SetTool switches tools. Leaving a tool drops its transient state: the
// crop candidate is cancelled and a stroke in progress is committed.
func (e *Editor) SetTool(t Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t == e.tool {
		return
	}
	e.finishTransientsLocked()
	e.tool = t
}

func (e *Editor) finishTransientsLocked() {
	e.commitStrokeLocked()
	e.cancelCropLocked()
	e.pan = nil
}

// SetPen sets the style for strokes started after the call.
func (e *Editor) SetPen(p Pen) error {
	if math.IsNaN(p.Width) || p.Width <= 0 || p.Width > MaxPenWidth {
		return types.NewError(types.CodeValidation, fmt.Sprintf("pen width must be in (0, %g]", MaxPenWidth), nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pen = p
	return nil
}

// WheelEvent is one wheel notch. With Zoom set it zooms around (X, Y),
// otherwise it scrolls by the deltas.
type WheelEvent struct {
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Zoom   bool    `json:"zoom"`
}

func (e *Editor) Wheel(ev WheelEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireDocLocked(); err != nil {
		return err
	}
	if ev.Zoom {
		e.view = e.view.Wheel(ev.DeltaY, ev.X, ev.Y, e.sizeLocked())
		return nil
	}
	e.view = e.view.PanBy(ev.DeltaX, ev.DeltaY, e.sizeLocked())
	return nil
}

func (e *Editor) Zoom(op ZoomOp) error {
	switch op {
	case ZoomIn, ZoomOut, ZoomReset, ZoomFit:
	default:
		return types.NewError(types.CodeValidation, fmt.Sprintf("unknown zoom %q", op), nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireDocLocked(); err != nil {
		return err
	}
	e.view = e.view.Apply(op, e.sizeLocked())
	return nil
}

// SetViewport records the visible area and the canvas's laid-out size at
// zoom 1. Zero display sizes mean the intrinsic size.
func (e *Editor) SetViewport(w, h int, displayW, displayH float64) error {
	if w < 0 || h < 0 || displayW < 0 || displayH < 0 {
		return types.NewError(types.CodeValidation, "viewport sizes must not be negative", nil)
	}
	if w > MaxViewportSide || h > MaxViewportSide {
		return types.NewError(types.CodeValidation, fmt.Sprintf("viewport %dx%d exceeds %d px per side", w, h, MaxViewportSide), nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.ViewportW, e.view.ViewportH = w, h
	e.view.DisplayW, e.view.DisplayH = displayW, displayH
	e.view = e.view.clampScroll(e.sizeLocked())
	return nil
}

// Undo restores the previous history entry. Reports false at the oldest.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishTransientsLocked()
	img, ok := e.history.Undo()
	if ok {
		e.restoreLocked(img)
	}
	return ok
}

// Redo moves forward again. Reports false at the newest entry.
func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishTransientsLocked()
	img, ok := e.history.Redo()
	if ok {
		e.restoreLocked(img)
	}
	return ok
}

// restoreLocked swaps in a history entry; the canvas takes its dimensions.
func (e *Editor) restoreLocked(img *image.RGBA) {
	e.canvas = img
	e.overlay = nil
	e.view = e.view.clampScroll(e.sizeLocked())
}

func (e *Editor) commitStrokeLocked() {
	if e.stroke == nil {
		return
	}
	e.stroke.render(e.canvas)
	e.stroke = nil
	e.history.Push(e.canvas)
}

func (e *Editor) redrawCropLocked() {
	if e.crop == nil {
		e.overlay = nil
		return
	}
	e.overlay = cropOverlay(e.sizeLocked(), e.crop.rect(e.canvas.Bounds()))
}

func (e *Editor) cancelCropLocked() {
	e.crop = nil
	e.overlay = nil
}

// ApplyCrop replaces the document with the armed crop rect and commits it.
func (e *Editor) ApplyCrop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireDocLocked(); err != nil {
		return err
	}
	if e.crop == nil || !e.crop.armed {
		return types.NewError(types.CodeValidation, "no crop selection to apply", nil)
	}
	r := e.crop.rect(e.canvas.Bounds())
	e.cancelCropLocked()
	e.canvas = cropImage(e.canvas, r)
	e.history.Push(e.canvas)
	e.view = e.view.clampScroll(e.sizeLocked())
	slog.Debug("editor crop applied", "editor_id", e.id, "rect", r.String())
	return nil
}

// CancelCrop drops the crop candidate and its overlay.
func (e *Editor) CancelCrop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelCropLocked()
}

// RenderView returns what the viewport shows at the current zoom and scroll.
func (e *Editor) RenderView() (*image.RGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireDocLocked(); err != nil {
		return nil, err
	}
	return RenderView(e.canvas, e.overlay, e.view), nil
}

// Overlay returns a copy of the crop overlay, or nil when there is none.
func (e *Editor) Overlay() *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRGBA(e.overlay)
}

// Image returns a copy of the current document.
func (e *Editor) Image() (*image.RGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireDocLocked(); err != nil {
		return nil, err
	}
	return cloneRGBA(e.canvas), nil
}

// PNG encodes the current document, never the view or the overlay.
func (e *Editor) PNG() ([]byte, error) {
	img, err := e.Image()
	if err != nil {
		return nil, err
	}
	return capture.EncodePNG(img)
}

// Info is a snapshot of an editor's state.
type Info struct {
	ID        string      `json:"id"`
	Loaded    bool        `json:"loaded"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Tool      Tool        `json:"tool"`
	Pen       PenInfo     `json:"pen"`
	View      View        `json:"view"`
	History   HistoryInfo `json:"history"`
	Crop      *CropInfo   `json:"crop,omitempty"`
	SourceURL string      `json:"source_url,omitempty"`
	Mode      types.Mode  `json:"mode,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type PenInfo struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type HistoryInfo struct {
	Len      int  `json:"len"`
	Cursor   int  `json:"cursor"`
	Capacity int  `json:"capacity"`
	CanUndo  bool `json:"can_undo"`
	CanRedo  bool `json:"can_redo"`
}

type CropInfo struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Armed  bool `json:"armed"`
}

func (e *Editor) Info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	size := e.sizeLocked()
	info := Info{
		ID:     e.id,
		Loaded: e.canvas != nil,
		Width:  size.X,
		Height: size.Y,
		Tool:   e.tool,
		Pen:    PenInfo{Color: FormatColor(e.pen.Color), Width: e.pen.Width},
		View:   e.view,
		History: HistoryInfo{
			Len:      e.history.Len(),
			Cursor:   e.history.Cursor(),
			Capacity: e.history.Capacity(),
			CanUndo:  e.history.CanUndo(),
			CanRedo:  e.history.CanRedo(),
		},
		SourceURL: e.sourceURL,
		Mode:      e.mode,
		CreatedAt: e.createdAt,
	}
	if e.crop != nil && e.canvas != nil {
		r := e.crop.rect(e.canvas.Bounds())
		info.Crop = &CropInfo{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy(), Armed: e.crop.armed}
	}
	return info
}
