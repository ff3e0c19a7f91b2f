package editor

import "strings"

// KeyEvent is a key press as the browser reports it. Ctrl and Meta both
// count as the command modifier.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// Key runs the shortcut bound to k. It reports whether k was bound.
func (e *Editor) Key(k KeyEvent) (bool, error) {
	cmd := k.Ctrl || k.Meta
	key := k.Key
	if len(key) == 1 {
		key = strings.ToLower(key)
	}

	switch {
	case cmd && key == "z" && k.Shift, cmd && key == "y":
		e.Redo()
		return true, nil
	case cmd && key == "z":
		e.Undo()
		return true, nil
	case cmd || k.Alt:
		return false, nil
	}

	switch key {
	case "v":
		e.SetTool(ToolSelect)
	case "c":
		e.SetTool(ToolCrop)
	case "p":
		e.SetTool(ToolPen)
	case "Enter":
		if !e.cropArmed() {
			return false, nil
		}
		return true, e.ApplyCrop()
	case "Escape", "Esc":
		e.CancelCrop()
	case "+", "=":
		return true, e.Zoom(ZoomIn)
	case "-", "_":
		return true, e.Zoom(ZoomOut)
	case "0":
		return true, e.Zoom(ZoomReset)
	default:
		return false, nil
	}
	return true, nil
}

func (e *Editor) cropArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.crop != nil && e.crop.armed
}
