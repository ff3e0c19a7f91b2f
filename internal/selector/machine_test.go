package selector

import (
	"strings"
	"testing"
)

func drive(t *testing.T, events ...Event) (Snapshot, Effect) {
	t.Helper()
	var s Snapshot
	var eff Effect
	for _, ev := range events {
		s, eff = Step(s, ev)
	}
	return s, eff
}

func TestStepCompletesNormalizedSelection(t *testing.T) {
	s, eff := drive(t,
		Event{Type: EventReady, ViewportWidth: 800, ViewportHeight: 600, PixelDensity: 2},
		Event{Type: EventPointerDown, X: 300, Y: 250},
		Event{Type: EventPointerMove, X: 200, Y: 100},
		Event{Type: EventPointerUp, X: 100, Y: 50},
	)
	if s.State != Completed {
		t.Fatalf("State = %v; want %v", s.State, Completed)
	}
	if eff.Kind != EffectComplete {
		t.Fatalf("Effect.Kind = %v; want EffectComplete", eff.Kind)
	}
	sel := eff.Selection
	if sel.X != 100 || sel.Y != 50 || sel.Width != 200 || sel.Height != 200 {
		t.Fatalf("Selection = %+v; want x=100 y=50 200x200", sel)
	}
	if sel.PixelDensity != 2 {
		t.Fatalf("PixelDensity = %v; want 2", sel.PixelDensity)
	}
}

func TestStepRendersWhileDragging(t *testing.T) {
	_, eff := drive(t,
		Event{Type: EventReady, ViewportWidth: 800, ViewportHeight: 600},
		Event{Type: EventPointerDown, X: 100, Y: 100},
		Event{Type: EventPointerMove, X: 150, Y: 130},
	)
	if eff.Kind != EffectRender {
		t.Fatalf("Effect.Kind = %v; want EffectRender", eff.Kind)
	}
	if eff.Label.Text != "50 × 30" {
		t.Fatalf("Label.Text = %q; want %q", eff.Label.Text, "50 × 30")
	}
}

func TestStepSmallSelectionCancels(t *testing.T) {
	s, eff := drive(t,
		Event{Type: EventPointerDown, X: 100, Y: 100},
		Event{Type: EventPointerUp, X: 105, Y: 300},
	)
	if s.State != Cancelled || eff.Kind != EffectCancel {
		t.Fatalf("State, Effect = %v, %v; want cancelled, EffectCancel", s.State, eff.Kind)
	}
}

func TestStepEscapeCancelsFromIdleAndSelecting(t *testing.T) {
	s, eff := drive(t, Event{Type: EventKeyDown, Key: "Escape"})
	if s.State != Cancelled || eff.Kind != EffectCancel {
		t.Fatalf("idle escape = %v, %v; want cancelled, EffectCancel", s.State, eff.Kind)
	}

	s, eff = drive(t,
		Event{Type: EventPointerDown, X: 1, Y: 1},
		Event{Type: EventKeyDown, Key: "Escape"},
	)
	if s.State != Cancelled || eff.Kind != EffectCancel {
		t.Fatalf("selecting escape = %v, %v; want cancelled, EffectCancel", s.State, eff.Kind)
	}
}

func TestStepIgnoresOtherKeysAndStrayEvents(t *testing.T) {
	s, eff := drive(t,
		Event{Type: EventKeyDown, Key: "a"},
		Event{Type: EventPointerMove, X: 10, Y: 10},
		Event{Type: EventPointerUp, X: 10, Y: 10},
	)
	if s.State != Idle || eff.Kind != EffectNone {
		t.Fatalf("State, Effect = %v, %v; want idle, EffectNone", s.State, eff.Kind)
	}
}

func TestStepTerminalStatesOnlyTearDown(t *testing.T) {
	s, _ := drive(t,
		Event{Type: EventPointerDown, X: 0, Y: 0},
		Event{Type: EventPointerUp, X: 50, Y: 50},
	)
	s, eff := Step(s, Event{Type: EventPointerDown, X: 5, Y: 5})
	if s.State != Completed || eff.Kind != EffectNone {
		t.Fatalf("after completion = %v, %v; want completed, EffectNone", s.State, eff.Kind)
	}
	s, _ = Step(s, Event{Type: EventTeardown})
	if s.State != TornDown {
		t.Fatalf("State = %v; want %v", s.State, TornDown)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	in := Snapshot{}
	_, _ = Step(in, Event{Type: EventPointerDown, X: 3, Y: 4})
	if in.State != Idle || in.StartX != 0 {
		t.Fatalf("input snapshot mutated: %+v", in)
	}
}

func TestPlaceLabel(t *testing.T) {
	tests := []struct {
		name   string
		rect   Rect
		vw, vh float64
		check  func(Label) bool
	}{
		{
			name:  "above when room",
			rect:  Rect{X: 100, Y: 200, Width: 50, Height: 50},
			vw:    800,
			vh:    600,
			check: func(l Label) bool { return l.Y < 200 && l.X == 100 },
		},
		{
			name:  "below near top edge",
			rect:  Rect{X: 100, Y: 5, Width: 50, Height: 50},
			vw:    800,
			vh:    600,
			check: func(l Label) bool { return l.Y >= 55 },
		},
		{
			name:  "inside when rect fills viewport",
			rect:  Rect{X: 0, Y: 0, Width: 800, Height: 600},
			vw:    800,
			vh:    600,
			check: func(l Label) bool { return l.Y >= 0 && l.Y+labelHeight <= 600 },
		},
		{
			name:  "clamped at right edge",
			rect:  Rect{X: 790, Y: 300, Width: 10, Height: 10},
			vw:    800,
			vh:    600,
			check: func(l Label) bool { return l.X+float64(len([]rune(l.Text))*labelCharWidth+labelPadding) <= 800 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlaceLabel(tt.rect, tt.vw, tt.vh)
			if !tt.check(got) {
				t.Fatalf("PlaceLabel(%+v) = %+v", tt.rect, got)
			}
			if !strings.Contains(got.Text, " × ") {
				t.Fatalf("Label.Text = %q; want W × H", got.Text)
			}
		})
	}
}
