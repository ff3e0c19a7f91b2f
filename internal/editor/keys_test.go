package editor

import (
	"image"
	"testing"
)

func TestKeyShortcuts(t *testing.T) {
	ed := loaded(t, 60, 60)

	tools := []struct {
		key  string
		want Tool
	}{
		{key: "c", want: ToolCrop},
		{key: "P", want: ToolPen},
		{key: "v", want: ToolSelect},
	}
	for _, tt := range tools {
		if ok, err := ed.Key(KeyEvent{Key: tt.key}); !ok || err != nil {
			t.Fatalf("Key(%q) = %v, %v; want handled", tt.key, ok, err)
		}
		if got := ed.Info().Tool; got != tt.want {
			t.Fatalf("tool after %q = %q; want %q", tt.key, got, tt.want)
		}
	}

	ed.SetTool(ToolPen)
	drag(t, ed, image.Pt(5, 5), image.Pt(50, 5))
	if ok, _ := ed.Key(KeyEvent{Key: "z", Ctrl: true}); !ok || ed.Info().History.Cursor != 0 {
		t.Fatalf("ctrl+z did not undo: %+v", ed.Info().History)
	}
	if ok, _ := ed.Key(KeyEvent{Key: "Z", Ctrl: true, Shift: true}); !ok || ed.Info().History.Cursor != 1 {
		t.Fatalf("ctrl+shift+z did not redo: %+v", ed.Info().History)
	}
	ed.Undo()
	if ok, _ := ed.Key(KeyEvent{Key: "y", Meta: true}); !ok || ed.Info().History.Cursor != 1 {
		t.Fatalf("meta+y did not redo: %+v", ed.Info().History)
	}

	if ok, err := ed.Key(KeyEvent{Key: "+"}); !ok || err != nil || ed.Info().View.Zoom != ZoomStep {
		t.Fatalf("+ = %v, %v; zoom %v", ok, err, ed.Info().View.Zoom)
	}
	if ok, _ := ed.Key(KeyEvent{Key: "0"}); !ok || ed.Info().View.Zoom != 1 {
		t.Fatalf("0 did not reset zoom: %v", ed.Info().View.Zoom)
	}
	if ok, _ := ed.Key(KeyEvent{Key: "x"}); ok {
		t.Fatalf("Key(x) = handled; want unbound")
	}
	if ok, _ := ed.Key(KeyEvent{Key: "c", Ctrl: true}); ok {
		t.Fatalf("Key(ctrl+c) = handled; want unbound")
	}
}

func TestKeyEnterAppliesArmedCrop(t *testing.T) {
	ed := loaded(t, 60, 60)
	if ok, _ := ed.Key(KeyEvent{Key: "Enter"}); ok {
		t.Fatalf("Enter without crop = handled")
	}

	ed.SetTool(ToolCrop)
	drag(t, ed, image.Pt(10, 10), image.Pt(40, 30))
	if ok, err := ed.Key(KeyEvent{Key: "Enter"}); !ok || err != nil {
		t.Fatalf("Enter = %v, %v; want crop applied", ok, err)
	}
	if info := ed.Info(); info.Width != 30 || info.Height != 20 {
		t.Fatalf("size after Enter = %dx%d; want 30x20", info.Width, info.Height)
	}

	drag(t, ed, image.Pt(0, 0), image.Pt(20, 20))
	ed.Key(KeyEvent{Key: "Escape"})
	if info := ed.Info(); info.Crop != nil || info.Width != 30 {
		t.Fatalf("Escape left crop %+v at width %d", info.Crop, info.Width)
	}
}
