package editor

import (
	"image"
	"image/draw"
)

// DefaultHistoryCapacity bounds the snapshots one editor keeps.
const DefaultHistoryCapacity = 20

// History is a bounded stack of whole-buffer snapshots with a cursor at the
// entry currently shown.
type History struct {
	entries  []*image.RGBA
	cursor   int
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{cursor: -1, capacity: capacity}
}

// Push stores a copy of img after the cursor, dropping the redo tail, and
// evicts the oldest entry past capacity.
func (h *History) Push(img *image.RGBA) {
	clear(h.entries[h.cursor+1:])
	h.entries = append(h.entries[:h.cursor+1], cloneRGBA(img))
	if len(h.entries) > h.capacity {
		drop := len(h.entries) - h.capacity
		clear(h.entries[:drop])
		h.entries = h.entries[drop:]
	}
	h.cursor = len(h.entries) - 1
}

// Undo moves the cursor back and returns a copy of that entry. It is a
// no-op at the oldest entry.
func (h *History) Undo() (*image.RGBA, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return cloneRGBA(h.entries[h.cursor]), true
}

// Redo moves the cursor forward. It is a no-op at the newest entry.
func (h *History) Redo() (*image.RGBA, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return cloneRGBA(h.entries[h.cursor]), true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.entries)-1 }
func (h *History) Len() int      { return len(h.entries) }
func (h *History) Cursor() int   { return h.cursor }
func (h *History) Capacity() int { return h.capacity }

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
