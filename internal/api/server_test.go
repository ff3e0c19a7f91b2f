package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagesnap/internal/editor"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{types.CodeValidation, http.StatusBadRequest},
		{types.CodeTabNotFound, http.StatusNotFound},
		{types.CodeEditorNotFound, http.StatusNotFound},
		{types.CodeExportNotFound, http.StatusNotFound},
		{types.CodeNoticeNotFound, http.StatusNotFound},
		{types.CodeNoPendingCapture, http.StatusNotFound},
		{types.CodeBusy, http.StatusConflict},
		{types.CodeSelectionCancelled, http.StatusConflict},
		{types.CodeCaptureDenied, http.StatusUnprocessableEntity},
		{types.CodeGeometryUnavailable, http.StatusUnprocessableEntity},
		{types.CodeDecodeFailure, http.StatusUnprocessableEntity},
		{types.CodeEvalTimeout, http.StatusGatewayTimeout},
		{types.CodeEvalFailure, http.StatusBadGateway},
		{types.CodeCDPUnavailable, http.StatusBadGateway},
		{types.CodeExportFailure, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := mapErr(types.NewError(tt.code, "boom", nil))
			var se huma.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("mapErr() = %T; want huma.StatusError", err)
			}
			if se.GetStatus() != tt.want {
				t.Fatalf("mapErr(%s) status = %d; want %d", tt.code, se.GetStatus(), tt.want)
			}
		})
	}

	if mapErr(nil) != nil {
		t.Fatalf("mapErr(nil) != nil")
	}
	var se huma.StatusError
	if err := mapErr(errors.New("plain")); !errors.As(err, &se) || se.GetStatus() != http.StatusInternalServerError {
		t.Fatalf("mapErr(plain) = %v; want 500", err)
	}
}

func TestHealth(t *testing.T) {
	w := do(t, NewServer(&stubService{}), http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestCaptureHandler(t *testing.T) {
	svc := &stubService{}
	w := do(t, NewServer(svc), http.MethodPost, "/api/v1/capture", `{"mode":"full-page","tab_id":"T1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("capture status = %d; body %s", w.Code, w.Body.String())
	}
	var out struct {
		Mode     string `json:"mode"`
		EditorID string `json:"editor_id"`
		Width    int    `json:"width"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Mode != "full-page" || out.EditorID != "E1" || out.Width != 800 {
		t.Fatalf("capture body = %+v", out)
	}
	if len(svc.captured) != 1 || svc.captured[0] != "full-page|T1|api" {
		t.Fatalf("captured = %v", svc.captured)
	}
}

func TestCaptureHandlerRejectsUnknownMode(t *testing.T) {
	svc := &stubService{}
	w := do(t, NewServer(svc), http.MethodPost, "/api/v1/capture", `{"mode":"sideways"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d; want 422", w.Code)
	}
	if len(svc.captured) != 0 {
		t.Fatalf("service called for invalid mode")
	}
}

func TestCaptureHandlerMapsBusy(t *testing.T) {
	svc := &stubService{err: types.NewError(types.CodeBusy, "capture in progress", nil)}
	w := do(t, NewServer(svc), http.MethodPost, "/api/v1/capture", `{"mode":"visible"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", w.Code)
	}
}

func TestEditorImageServesPNG(t *testing.T) {
	svc := &stubService{png: []byte("\x89PNG\r\n\x1a\n")}
	h := NewServer(svc)
	for _, layer := range []string{"image", "overlay", "view"} {
		w := do(t, h, http.MethodGet, "/api/v1/editors/E1/"+layer, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", layer, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Fatalf("%s Content-Type = %q; want image/png", layer, ct)
		}
		if svc.lastLayer != layer {
			t.Fatalf("layer = %q; want %q", svc.lastLayer, layer)
		}
		if w.Body.String() != string(svc.png) {
			t.Fatalf("%s body = %q", layer, w.Body.String())
		}
	}
}

func TestEditorNotFound(t *testing.T) {
	svc := &stubService{err: types.NewError(types.CodeEditorNotFound, "editor E9 not found", nil)}
	w := do(t, NewServer(svc), http.MethodGet, "/api/v1/editors/E9", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}

func TestEditorPenPassesValues(t *testing.T) {
	svc := &stubService{editorInfo: editor.Info{ID: "E1", Loaded: true}}
	w := do(t, NewServer(svc), http.MethodPost, "/api/v1/editors/E1/pen", `{"color":"#00ff00","width":6}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	if svc.lastPen.color != "#00ff00" || svc.lastPen.width != 6 {
		t.Fatalf("pen = %+v", svc.lastPen)
	}
}

func TestEditorUndoAndKeyBodies(t *testing.T) {
	svc := &stubService{editorInfo: editor.Info{ID: "E1"}, handled: true}
	h := NewServer(svc)

	w := do(t, h, http.MethodPost, "/api/v1/editors/E1/undo", "")
	var undo struct {
		Changed bool        `json:"changed"`
		Editor  editor.Info `json:"editor"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &undo); err != nil || !undo.Changed || undo.Editor.ID != "E1" {
		t.Fatalf("undo = %d %s (%v)", w.Code, w.Body.String(), err)
	}

	w = do(t, h, http.MethodPost, "/api/v1/editors/E1/key", `{"key":"z","ctrl":true}`)
	var key struct {
		Handled bool `json:"handled"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &key); err != nil || !key.Handled {
		t.Fatalf("key = %d %s (%v)", w.Code, w.Body.String(), err)
	}
}

func TestDownloadReturnsExportURL(t *testing.T) {
	svc := &stubService{meta: snapshot.Meta{ID: "X1", Width: 10, Height: 10}}
	w := do(t, NewServer(svc), http.MethodPost, "/api/v1/editors/E1/export/download", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"/api/v1/exports/X1/image"`) {
		t.Fatalf("body = %s; want export url", w.Body.String())
	}
}

func TestListEndpointsReturnEmptyArrays(t *testing.T) {
	h := NewServer(&stubService{})
	for path, field := range map[string]string{
		"/api/v1/editors":       `"editors":[]`,
		"/api/v1/exports":       `"exports":[]`,
		"/api/v1/notifications": `"notifications":[]`,
	} {
		w := do(t, h, http.MethodGet, path, "")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), field) {
			t.Fatalf("GET %s = %d %s; want %s", path, w.Code, w.Body.String(), field)
		}
	}
}

func TestPendingReportsBusy(t *testing.T) {
	w := do(t, NewServer(&stubService{busy: true}), http.MethodGet, "/api/v1/pending", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"busy":true`) {
		t.Fatalf("GET /api/v1/pending = %d %s; want busy", w.Code, w.Body.String())
	}
}

func TestDismissNotification(t *testing.T) {
	svc := &stubService{}
	w := do(t, NewServer(svc), http.MethodDelete, "/api/v1/notifications/N1", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"dismissed"`) {
		t.Fatalf("DELETE notification = %d %s", w.Code, w.Body.String())
	}
	if len(svc.dismissed) != 1 || svc.dismissed[0] != "N1" {
		t.Fatalf("dismissed = %v; want [N1]", svc.dismissed)
	}

	svc = &stubService{err: types.NewError(types.CodeNoticeNotFound, "notification not found: N2", nil)}
	w = do(t, NewServer(svc), http.MethodDelete, "/api/v1/notifications/N2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("DELETE missing notification status = %d; want 404", w.Code)
	}
}
