// Package selector implements the region selection overlay: a pure state
// machine over pointer and key events, and the session that runs it against
// an injected in-page overlay.
package selector

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// State is the lifecycle of one selection overlay.
type State int

const (
	Idle State = iota
	Selecting
	Completed
	Cancelled
	TornDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case TornDown:
		return "torn-down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventType names the overlay events forwarded from the page.
type EventType string

const (
	EventReady       EventType = "ready"
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventPointerUp   EventType = "pointerup"
	EventKeyDown     EventType = "keydown"
	EventTeardown    EventType = "teardown"
)

// Event is one overlay event in viewport CSS pixels.
type Event struct {
	Type           EventType `json:"type"`
	X              float64   `json:"x,omitempty"`
	Y              float64   `json:"y,omitempty"`
	Key            string    `json:"key,omitempty"`
	ViewportWidth  float64   `json:"viewport_width,omitempty"`
	ViewportHeight float64   `json:"viewport_height,omitempty"`
	PixelDensity   float64   `json:"pixel_density,omitempty"`
}

// Rect is a normalized rectangle: Width and Height are never negative.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Label is the floating dimension readout.
type Label struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// EffectKind tells the session what to do after a step.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectRender
	EffectComplete
	EffectCancel
)

// Effect is the output of Step.
type Effect struct {
	Kind      EffectKind
	Rect      Rect
	Label     Label
	Selection types.SelectionRect
}

// Snapshot is the full machine state. It is a value; Step never mutates its input.
type Snapshot struct {
	State          State
	StartX, StartY float64
	CurX, CurY     float64
	ViewportWidth  float64
	ViewportHeight float64
	PixelDensity   float64
}

// Step applies one event.
func Step(s Snapshot, ev Event) (Snapshot, Effect) {
	if ev.Type == EventReady {
		if ev.ViewportWidth > 0 {
			s.ViewportWidth = ev.ViewportWidth
		}
		if ev.ViewportHeight > 0 {
			s.ViewportHeight = ev.ViewportHeight
		}
		if ev.PixelDensity > 0 {
			s.PixelDensity = ev.PixelDensity
		}
		return s, Effect{}
	}

	switch s.State {
	case Idle:
		switch {
		case ev.Type == EventPointerDown:
			s.State = Selecting
			s.StartX, s.StartY = ev.X, ev.Y
			s.CurX, s.CurY = ev.X, ev.Y
			return s, s.render()
		case isCancelKey(ev):
			s.State = Cancelled
			return s, Effect{Kind: EffectCancel}
		}
	case Selecting:
		switch {
		case ev.Type == EventPointerMove:
			s.CurX, s.CurY = ev.X, ev.Y
			return s, s.render()
		case ev.Type == EventPointerUp:
			s.CurX, s.CurY = ev.X, ev.Y
			sel := s.selection()
			if sel.TooSmall() {
				s.State = Cancelled
				return s, Effect{Kind: EffectCancel}
			}
			s.State = Completed
			return s, Effect{Kind: EffectComplete, Rect: s.Rect(), Selection: sel}
		case isCancelKey(ev):
			s.State = Cancelled
			return s, Effect{Kind: EffectCancel}
		}
	case Completed, Cancelled:
		if ev.Type == EventTeardown {
			s.State = TornDown
		}
	}
	return s, Effect{}
}

// Rect returns the normalized rectangle between the drag start and the
// current pointer, whatever the drag direction.
func (s Snapshot) Rect() Rect {
	return Rect{
		X:      math.Min(s.StartX, s.CurX),
		Y:      math.Min(s.StartY, s.CurY),
		Width:  math.Abs(s.CurX - s.StartX),
		Height: math.Abs(s.CurY - s.StartY),
	}
}

func (s Snapshot) selection() types.SelectionRect {
	r := s.Rect()
	dpr := s.PixelDensity
	if dpr <= 0 {
		dpr = 1
	}
	return types.SelectionRect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height, PixelDensity: dpr}
}

func (s Snapshot) render() Effect {
	r := s.Rect()
	return Effect{Kind: EffectRender, Rect: r, Label: PlaceLabel(r, s.ViewportWidth, s.ViewportHeight)}
}

func isCancelKey(ev Event) bool {
	return ev.Type == EventKeyDown && (ev.Key == "Escape" || ev.Key == "Esc")
}
