package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/pagesnap/internal/controller"
	"github.com/dgnsrekt/pagesnap/internal/editor"
	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/notify"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

const (
	apiTitle   = "pagesnap API"
	apiVersion = "1.0.0"
)

// Service is the controller surface the HTTP handlers call.
type Service interface {
	ListTabs(ctx context.Context) ([]types.TabInfo, error)
	Triggers(ctx context.Context, tabID string) (controller.TriggerState, error)
	Capture(ctx context.Context, mode, tabID, source string) (messages.Response, error)
	PendingCapture() bool
	CaptureBusy() bool

	OpenEditor(ctx context.Context) (editor.Info, error)
	ListEditors() []editor.Info
	GetEditor(id string) (editor.Info, error)
	CloseEditor(id string) error
	EditorPNG(id, layer string) ([]byte, error)
	SetTool(id, tool string) (editor.Info, error)
	SetPen(id, color string, width float64) (editor.Info, error)
	Pointer(id string, ev editor.PointerEvent) (editor.Info, error)
	Wheel(id string, ev editor.WheelEvent) (editor.Info, error)
	Key(id string, ev editor.KeyEvent) (bool, editor.Info, error)
	Zoom(id, op string) (editor.Info, error)
	SetViewport(id string, w, h int, displayW, displayH float64) (editor.Info, error)
	Undo(id string) (bool, editor.Info, error)
	Redo(id string) (bool, editor.Info, error)
	ApplyCrop(id string) (editor.Info, error)
	CancelCrop(id string) (editor.Info, error)
	Copy(id string) error
	Download(id string) (snapshot.Meta, error)

	ListExports() ([]snapshot.Meta, error)
	GetExport(id string) (snapshot.Meta, error)
	ReadExportImage(id string) ([]byte, error)
	DeleteExport(id string) error

	Notifications() []notify.Notification
	DismissNotification(id string) error
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func newStatus(status string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = status
	return out
}

type pngOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func pngResponses(desc string) map[string]*huma.Response {
	return map[string]*huma.Response{
		"200": {
			Description: desc,
			Content: map[string]*huma.MediaType{
				"image/png": {
					Schema: &huma.Schema{Type: "string", Format: "binary"},
				},
			},
		},
	}
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig(apiTitle, apiVersion)
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := docsPage.Execute(w, docsData{Title: apiTitle, SpecURL: "/openapi.json"}); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerCaptureHandlers(api, svc)
	registerEditorHandlers(api, svc)
	registerExportHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case types.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case types.CodeTabNotFound, types.CodeEditorNotFound, types.CodeExportNotFound, types.CodeNoticeNotFound, types.CodeNoPendingCapture:
			return huma.Error404NotFound(coded.Message)
		case types.CodeBusy, types.CodeSelectionCancelled:
			return huma.Error409Conflict(coded.Message)
		case types.CodeCaptureDenied, types.CodeGeometryUnavailable, types.CodeDecodeFailure:
			return huma.Error422UnprocessableEntity(coded.Message)
		case types.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case types.CodeCDPUnavailable, types.CodeEvalFailure:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
