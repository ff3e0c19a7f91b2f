package editor

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func shade(n int) *image.RGBA {
	return solid(4, 4, color.RGBA{uint8(n), uint8(n), uint8(n), 0xff})
}

func TestHistoryPushAfterUndoDiscardsRedoTail(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 5; i++ {
		h.Push(shade(i))
	}
	for i := 0; i < 2; i++ {
		if _, ok := h.Undo(); !ok {
			t.Fatalf("Undo() #%d = false; want true", i)
		}
	}
	h.Push(shade(99))

	if h.Len() != 4 {
		t.Fatalf("Len() = %d; want 4", h.Len())
	}
	if h.CanRedo() {
		t.Fatalf("CanRedo() = true after push")
	}
	if _, ok := h.Redo(); ok {
		t.Fatalf("Redo() = true; want no-op at newest entry")
	}
	img, ok := h.Undo()
	if !ok || img.Pix[0] != 2 {
		t.Fatalf("Undo() = %v, %v; want entry 2", img, ok)
	}
}

func TestHistoryPushReleasesDiscardedRedoEntries(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 10; i++ {
		h.Push(shade(i))
	}
	for i := 0; i < 8; i++ {
		h.Undo()
	}
	h.Push(shade(99))

	if h.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", h.Len())
	}
	for i, e := range h.entries[h.Len():cap(h.entries)] {
		if e != nil {
			t.Fatalf("backing slot %d still holds a discarded snapshot", h.Len()+i)
		}
	}
}

func TestHistoryEvictsOldestPastCapacity(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Push(shade(i))
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d; want 3", h.Len())
	}
	var oldest *image.RGBA
	for h.CanUndo() {
		oldest, _ = h.Undo()
	}
	if oldest.Pix[0] != 2 {
		t.Fatalf("oldest entry = %d; want 2", oldest.Pix[0])
	}
}

func TestHistoryUndoAtOldestIsNoop(t *testing.T) {
	h := NewHistory(0)
	if h.Capacity() != DefaultHistoryCapacity {
		t.Fatalf("Capacity() = %d; want %d", h.Capacity(), DefaultHistoryCapacity)
	}
	if _, ok := h.Undo(); ok {
		t.Fatalf("Undo() on empty history = true")
	}
	h.Push(shade(1))
	if _, ok := h.Undo(); ok {
		t.Fatalf("Undo() at oldest = true")
	}
	if h.Cursor() != 0 {
		t.Fatalf("Cursor() = %d; want 0", h.Cursor())
	}
}

func TestHistoryStoresCopies(t *testing.T) {
	h := NewHistory(5)
	img := shade(1)
	h.Push(img)
	h.Push(shade(2))
	img.Pix[0] = 77

	got, _ := h.Undo()
	if got.Pix[0] != 1 {
		t.Fatalf("entry mutated through caller's image: %d", got.Pix[0])
	}
	got.Pix[0] = 55
	h.Redo()
	again, _ := h.Undo()
	if !bytes.Equal(again.Pix, shade(1).Pix) {
		t.Fatalf("entry mutated through returned image")
	}
}
