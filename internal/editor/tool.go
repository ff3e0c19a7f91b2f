package editor

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Tool is the active editing tool.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolCrop   Tool = "crop"
	ToolPen    Tool = "pen"
)

const minCropSize = types.MinSelectionSize

func ParseTool(s string) (Tool, error) {
	switch t := Tool(strings.ToLower(strings.TrimSpace(s))); t {
	case ToolSelect, ToolCrop, ToolPen:
		return t, nil
	case "move", "hand":
		return ToolSelect, nil
	case "draw", "brush":
		return ToolPen, nil
	}
	return "", types.NewError(types.CodeValidation, fmt.Sprintf("unknown tool %q", s), nil)
}

// EventKind names a pointer event delivered to the canvas.
type EventKind string

const (
	PointerDown  EventKind = "pointer-down"
	PointerMove  EventKind = "pointer-move"
	PointerUp    EventKind = "pointer-up"
	PointerLeave EventKind = "pointer-leave"
)

// PointerEvent is a pointer position in viewport pixels.
type PointerEvent struct {
	Kind EventKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// panState is the select tool's drag anchor in viewport pixels.
type panState struct {
	lastX, lastY float64
}

type dispatchKey struct {
	tool Tool
	kind EventKind
}

// handler runs with the editor locked and a document loaded.
type handler func(e *Editor, ev PointerEvent)

// dispatch routes every (tool, event) pair; a missing entry is ignored.
// pointer-leave ends a gesture exactly like pointer-up.
var dispatch = map[dispatchKey]handler{
	{ToolSelect, PointerDown}:  panStart,
	{ToolSelect, PointerMove}:  panMove,
	{ToolSelect, PointerUp}:    panEnd,
	{ToolSelect, PointerLeave}: panEnd,

	{ToolCrop, PointerDown}:  cropStart,
	{ToolCrop, PointerMove}:  cropMove,
	{ToolCrop, PointerUp}:    cropEnd,
	{ToolCrop, PointerLeave}: cropEnd,

	{ToolPen, PointerDown}:  penStart,
	{ToolPen, PointerMove}:  penMove,
	{ToolPen, PointerUp}:    penEnd,
	{ToolPen, PointerLeave}: penEnd,
}

func panStart(e *Editor, ev PointerEvent) {
	e.pan = &panState{lastX: ev.X, lastY: ev.Y}
}

// panMove drags the content with the pointer, so the scroll moves the
// opposite way.
func panMove(e *Editor, ev PointerEvent) {
	if e.pan == nil {
		return
	}
	e.view = e.view.PanBy(e.pan.lastX-ev.X, e.pan.lastY-ev.Y, e.sizeLocked())
	e.pan.lastX, e.pan.lastY = ev.X, ev.Y
}

func panEnd(e *Editor, _ PointerEvent) {
	e.pan = nil
}

func cropStart(e *Editor, ev PointerEvent) {
	p := e.canvasPointLocked(ev)
	e.crop = &cropState{start: p, cur: p, dragging: true}
	e.redrawCropLocked()
}

func cropMove(e *Editor, ev PointerEvent) {
	if e.crop == nil || !e.crop.dragging {
		return
	}
	e.crop.cur = e.canvasPointLocked(ev)
	e.redrawCropLocked()
}

func cropEnd(e *Editor, ev PointerEvent) {
	if e.crop == nil || !e.crop.dragging {
		return
	}
	e.crop.cur = e.canvasPointLocked(ev)
	e.crop.dragging = false
	if cropTooSmall(e.crop.rect(e.canvas.Bounds())) {
		e.cancelCropLocked()
		return
	}
	e.crop.armed = true
	e.redrawCropLocked()
}

func penStart(e *Editor, ev PointerEvent) {
	e.commitStrokeLocked()
	e.stroke = &stroke{pen: e.pen, base: cloneRGBA(e.canvas)}
	e.stroke.add(e.canvasPointLocked(ev))
	e.stroke.render(e.canvas)
}

func penMove(e *Editor, ev PointerEvent) {
	if e.stroke == nil {
		return
	}
	if e.stroke.add(e.canvasPointLocked(ev)) {
		e.stroke.render(e.canvas)
	}
}

func penEnd(e *Editor, ev PointerEvent) {
	if e.stroke == nil {
		return
	}
	if ev.Kind == PointerUp {
		e.stroke.add(e.canvasPointLocked(ev))
	}
	e.commitStrokeLocked()
}
