// Package controller wires capture, editors, exports and notifications
// behind the control API.
package controller

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/editor"
	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/notify"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

// TabSource lists capturable tabs.
type TabSource interface {
	ListTabs(ctx context.Context) ([]types.TabInfo, error)
	ActiveTab(ctx context.Context) (types.TabInfo, error)
}

// CaptureState reports the orchestrator's progress: a capture in flight or
// one waiting in the handoff slot.
type CaptureState interface {
	Pending() bool
	Busy() bool
}

// Service answers the control API. Every failure it returns is also posted
// to the notification center.
type Service struct {
	tabs    TabSource
	router  *messages.Router
	state   CaptureState
	editors *editor.Registry
	exports *snapshot.Store
	notes   *notify.Center
}

func NewService(tabs TabSource, router *messages.Router, state CaptureState, editors *editor.Registry, exports *snapshot.Store, notes *notify.Center) *Service {
	return &Service{tabs: tabs, router: router, state: state, editors: editors, exports: exports, notes: notes}
}

func (s *Service) report(op string, err error) error {
	if err != nil && s.notes != nil {
		s.notes.Error(op, err)
	}
	return err
}

func (s *Service) inform(msg string) {
	if s.notes != nil {
		s.notes.Info(msg)
	}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &types.CodedError{Code: types.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) ListTabs(ctx context.Context) ([]types.TabInfo, error) {
	tabs, err := s.tabs.ListTabs(ctx)
	return tabs, s.report("list tabs", err)
}

// TriggerState is which capture commands a tab allows.
type TriggerState struct {
	TabID   string              `json:"tab_id"`
	URL     string              `json:"url"`
	Enabled map[types.Mode]bool `json:"enabled"`
}

// Triggers reports the enabled commands for tabID, or the active tab when
// tabID is empty.
func (s *Service) Triggers(ctx context.Context, tabID string) (TriggerState, error) {
	var info types.TabInfo
	if strings.TrimSpace(tabID) == "" {
		active, err := s.tabs.ActiveTab(ctx)
		if err != nil {
			return TriggerState{}, err
		}
		info = active
	} else {
		tabs, err := s.tabs.ListTabs(ctx)
		if err != nil {
			return TriggerState{}, err
		}
		found := false
		for _, t := range tabs {
			if t.TargetID == tabID {
				info, found = t, true
				break
			}
		}
		if !found {
			return TriggerState{}, types.NewError(types.CodeTabNotFound, "tab not found: "+tabID, nil)
		}
	}
	return TriggerState{TabID: info.TargetID, URL: info.URL, Enabled: capture.Triggers(info.URL)}, nil
}

// Capture sends a CAPTURE_REQUEST and waits for its single response.
func (s *Service) Capture(ctx context.Context, mode, tabID, source string) (messages.Response, error) {
	if err := s.requireNonEmpty(mode, "mode"); err != nil {
		return messages.Response{}, err
	}
	m, err := types.ParseMode(mode)
	if err != nil {
		return messages.Response{}, err
	}
	if source == "" {
		source = "api"
	}
	resp, err := s.router.Send(ctx, messages.Message{
		Kind:   messages.KindCaptureRequest,
		Mode:   m,
		TabID:  strings.TrimSpace(tabID),
		Source: source,
	})
	if types.HasCode(err, types.CodeSelectionCancelled) {
		s.inform("region selection cancelled")
		return resp, err
	}
	return resp, s.report("capture "+string(m), err)
}

func (s *Service) PendingCapture() bool {
	return s.state != nil && s.state.Pending()
}

// CaptureBusy reports whether a capture request is still running.
func (s *Service) CaptureBusy() bool {
	return s.state != nil && s.state.Busy()
}

func (s *Service) OpenEditor(ctx context.Context) (editor.Info, error) {
	id, err := s.editors.OpenEditor(ctx)
	if err != nil {
		return editor.Info{}, s.report("open editor", err)
	}
	ed, err := s.editors.Get(id)
	if err != nil {
		return editor.Info{}, err
	}
	return ed.Info(), nil
}

func (s *Service) ListEditors() []editor.Info {
	return s.editors.List()
}

func (s *Service) GetEditor(id string) (editor.Info, error) {
	ed, err := s.editors.Get(id)
	if err != nil {
		return editor.Info{}, err
	}
	return ed.Info(), nil
}

func (s *Service) CloseEditor(id string) error {
	return s.editors.Close(id)
}

// withEditor runs fn on editor id and returns its state afterwards.
func (s *Service) withEditor(op, id string, fn func(ed *editor.Editor) error) (editor.Info, error) {
	ed, err := s.editors.Get(id)
	if err != nil {
		return editor.Info{}, s.report(op, err)
	}
	if err := fn(ed); err != nil {
		return editor.Info{}, s.report(op, err)
	}
	return ed.Info(), nil
}

func (s *Service) SetTool(id, tool string) (editor.Info, error) {
	t, err := editor.ParseTool(tool)
	if err != nil {
		return editor.Info{}, s.report("set tool", err)
	}
	return s.withEditor("set tool", id, func(ed *editor.Editor) error {
		ed.SetTool(t)
		return nil
	})
}

func (s *Service) SetPen(id, color string, width float64) (editor.Info, error) {
	return s.withEditor("set pen", id, func(ed *editor.Editor) error {
		pen := ed.Info().Pen
		c, err := editor.ParseColor(pen.Color)
		if err != nil {
			return err
		}
		if strings.TrimSpace(color) != "" {
			if c, err = editor.ParseColor(color); err != nil {
				return err
			}
		}
		if width == 0 {
			width = pen.Width
		}
		return ed.SetPen(editor.Pen{Color: c, Width: width})
	})
}

func (s *Service) Pointer(id string, ev editor.PointerEvent) (editor.Info, error) {
	return s.withEditor("pointer", id, func(ed *editor.Editor) error {
		return ed.Pointer(ev)
	})
}

func (s *Service) Wheel(id string, ev editor.WheelEvent) (editor.Info, error) {
	return s.withEditor("wheel", id, func(ed *editor.Editor) error {
		return ed.Wheel(ev)
	})
}

// Key runs a keyboard shortcut; handled is false for unbound keys.
func (s *Service) Key(id string, ev editor.KeyEvent) (handled bool, info editor.Info, err error) {
	info, err = s.withEditor("key "+ev.Key, id, func(ed *editor.Editor) error {
		var kerr error
		handled, kerr = ed.Key(ev)
		return kerr
	})
	return handled, info, err
}

func (s *Service) Zoom(id, op string) (editor.Info, error) {
	return s.withEditor("zoom", id, func(ed *editor.Editor) error {
		return ed.Zoom(editor.ZoomOp(strings.ToLower(strings.TrimSpace(op))))
	})
}

func (s *Service) SetViewport(id string, w, h int, displayW, displayH float64) (editor.Info, error) {
	return s.withEditor("set viewport", id, func(ed *editor.Editor) error {
		return ed.SetViewport(w, h, displayW, displayH)
	})
}

// Undo reports whether the history moved.
func (s *Service) Undo(id string) (bool, editor.Info, error) {
	var moved bool
	info, err := s.withEditor("undo", id, func(ed *editor.Editor) error {
		moved = ed.Undo()
		return nil
	})
	return moved, info, err
}

func (s *Service) Redo(id string) (bool, editor.Info, error) {
	var moved bool
	info, err := s.withEditor("redo", id, func(ed *editor.Editor) error {
		moved = ed.Redo()
		return nil
	})
	return moved, info, err
}

func (s *Service) ApplyCrop(id string) (editor.Info, error) {
	return s.withEditor("apply crop", id, func(ed *editor.Editor) error {
		return ed.ApplyCrop()
	})
}

func (s *Service) CancelCrop(id string) (editor.Info, error) {
	return s.withEditor("cancel crop", id, func(ed *editor.Editor) error {
		ed.CancelCrop()
		return nil
	})
}

// Image layers an editor can render.
const (
	LayerImage   = "image"
	LayerOverlay = "overlay"
	LayerView    = "view"
)

// EditorPNG encodes one layer of an editor as PNG.
func (s *Service) EditorPNG(id, layer string) ([]byte, error) {
	ed, err := s.editors.Get(id)
	if err != nil {
		return nil, err
	}
	var img image.Image
	switch layer {
	case LayerImage:
		return ed.PNG()
	case LayerOverlay:
		ov := ed.Overlay()
		if ov == nil {
			info := ed.Info()
			ov = image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
		}
		img = ov
	case LayerView:
		if img, err = ed.RenderView(); err != nil {
			return nil, err
		}
	default:
		return nil, types.NewError(types.CodeValidation, "unknown layer "+layer, nil)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, types.NewError(types.CodeExportFailure, "encode "+layer, err)
	}
	return buf.Bytes(), nil
}

func (s *Service) Copy(id string) error {
	if err := s.editors.Copy(id); err != nil {
		return s.report("copy", err)
	}
	s.inform("image copied to clipboard")
	return nil
}

func (s *Service) Download(id string) (snapshot.Meta, error) {
	meta, err := s.editors.Download(id)
	if err != nil {
		return snapshot.Meta{}, s.report("download", err)
	}
	s.inform("saved " + filepath.Join(s.exports.Dir(), meta.Filename))
	return meta, nil
}

func (s *Service) ListExports() ([]snapshot.Meta, error) {
	return s.exports.List()
}

func (s *Service) GetExport(id string) (snapshot.Meta, error) {
	return s.exports.Get(strings.TrimSpace(id))
}

func (s *Service) ReadExportImage(id string) ([]byte, error) {
	data, _, err := s.exports.ReadImage(strings.TrimSpace(id))
	return data, err
}

func (s *Service) DeleteExport(id string) error {
	return s.exports.Delete(strings.TrimSpace(id))
}

func (s *Service) Notifications() []notify.Notification {
	if s.notes == nil {
		return nil
	}
	return s.notes.Active()
}

func (s *Service) DismissNotification(id string) error {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return err
	}
	if s.notes == nil || !s.notes.Dismiss(strings.TrimSpace(id)) {
		return types.NewError(types.CodeNoticeNotFound, "notification not found: "+id, nil)
	}
	return nil
}
