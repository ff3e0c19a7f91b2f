package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagesnap/internal/controller"
	"github.com/dgnsrekt/pagesnap/internal/editor"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
)

type editorIDInput struct {
	EditorID string `path:"editor_id"`
}

type editorOutput struct {
	Body editor.Info
}

type historyOutput struct {
	Body struct {
		Changed bool        `json:"changed"`
		Editor  editor.Info `json:"editor"`
	}
}

func editorResult(info editor.Info, err error) (*editorOutput, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	return &editorOutput{Body: info}, nil
}

func historyResult(changed bool, info editor.Info, err error) (*historyOutput, error) {
	if err != nil {
		return nil, mapErr(err)
	}
	out := &historyOutput{}
	out.Body.Changed = changed
	out.Body.Editor = info
	return out, nil
}

func registerEditorHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "open-editor", Method: http.MethodPost, Path: "/api/v1/editors", Summary: "Open an editor on the pending capture", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct{}) (*editorOutput, error) {
			return editorResult(svc.OpenEditor(ctx))
		})

	type listEditorsOutput struct {
		Body struct {
			Editors []editor.Info `json:"editors"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-editors", Method: http.MethodGet, Path: "/api/v1/editors", Summary: "List open editors", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct{}) (*listEditorsOutput, error) {
			out := &listEditorsOutput{}
			out.Body.Editors = svc.ListEditors()
			if out.Body.Editors == nil {
				out.Body.Editors = []editor.Info{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-editor", Method: http.MethodGet, Path: "/api/v1/editors/{editor_id}", Summary: "Get editor state", Tags: []string{"Editors"}},
		func(ctx context.Context, input *editorIDInput) (*editorOutput, error) {
			return editorResult(svc.GetEditor(input.EditorID))
		})

	huma.Register(api, huma.Operation{OperationID: "close-editor", Method: http.MethodDelete, Path: "/api/v1/editors/{editor_id}", Summary: "Close an editor and drop its history", Tags: []string{"Editors"}},
		func(ctx context.Context, input *editorIDInput) (*statusOutput, error) {
			if err := svc.CloseEditor(input.EditorID); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("closed"), nil
		})

	layers := []struct {
		layer, summary string
	}{
		{controller.LayerImage, "Current document as PNG"},
		{controller.LayerOverlay, "Crop overlay as PNG"},
		{controller.LayerView, "Viewport rendering at the current zoom and scroll"},
	}
	for _, l := range layers {
		layer := l.layer
		huma.Register(api, huma.Operation{
			OperationID: "get-editor-" + layer,
			Method:      http.MethodGet,
			Path:        "/api/v1/editors/{editor_id}/" + layer,
			Summary:     l.summary,
			Tags:        []string{"Editors"},
			Responses:   pngResponses(l.summary),
		}, func(ctx context.Context, input *editorIDInput) (*pngOutput, error) {
			data, err := svc.EditorPNG(input.EditorID, layer)
			if err != nil {
				return nil, mapErr(err)
			}
			return &pngOutput{ContentType: "image/png", Body: data}, nil
		})
	}

	huma.Register(api, huma.Operation{OperationID: "set-editor-tool", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/tool", Summary: "Switch tool", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     struct {
				Tool string `json:"tool" enum:"select,crop,pen"`
			}
		}) (*editorOutput, error) {
			return editorResult(svc.SetTool(input.EditorID, input.Body.Tool))
		})

	huma.Register(api, huma.Operation{OperationID: "set-editor-pen", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/pen", Summary: "Set stroke color and width for new strokes", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     struct {
				Color string  `json:"color,omitempty" doc:"#rgb, #rrggbb or #rrggbbaa" example:"#e53935"`
				Width float64 `json:"width,omitempty" doc:"Stroke width in image pixels" minimum:"0" maximum:"64"`
			}
		}) (*editorOutput, error) {
			return editorResult(svc.SetPen(input.EditorID, input.Body.Color, input.Body.Width))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-pointer", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/pointer", Summary: "Deliver a pointer event in viewport pixels", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     editor.PointerEvent
		}) (*editorOutput, error) {
			return editorResult(svc.Pointer(input.EditorID, input.Body))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-wheel", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/wheel", Summary: "Deliver a wheel notch; zoom when the modifier was held", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     editor.WheelEvent
		}) (*editorOutput, error) {
			return editorResult(svc.Wheel(input.EditorID, input.Body))
		})

	type keyOutput struct {
		Body struct {
			Handled bool        `json:"handled"`
			Editor  editor.Info `json:"editor"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "editor-key", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/key", Summary: "Run a keyboard shortcut", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     editor.KeyEvent
		}) (*keyOutput, error) {
			handled, info, err := svc.Key(input.EditorID, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &keyOutput{}
			out.Body.Handled = handled
			out.Body.Editor = info
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "editor-zoom", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/zoom", Summary: "Zoom the view", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     struct {
				Op string `json:"op" enum:"in,out,reset,fit"`
			}
		}) (*editorOutput, error) {
			return editorResult(svc.Zoom(input.EditorID, input.Body.Op))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-viewport", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/viewport", Summary: "Set the visible area and the canvas's laid-out size", Tags: []string{"Editors"}},
		func(ctx context.Context, input *struct {
			EditorID string `path:"editor_id"`
			Body     struct {
				Width         int     `json:"width" minimum:"0"`
				Height        int     `json:"height" minimum:"0"`
				DisplayWidth  float64 `json:"display_width,omitempty" minimum:"0"`
				DisplayHeight float64 `json:"display_height,omitempty" minimum:"0"`
			}
		}) (*editorOutput, error) {
			b := input.Body
			return editorResult(svc.SetViewport(input.EditorID, b.Width, b.Height, b.DisplayWidth, b.DisplayHeight))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-undo", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/undo", Summary: "Undo", Tags: []string{"Editors"}},
		func(ctx context.Context, input *editorIDInput) (*historyOutput, error) {
			return historyResult(svc.Undo(input.EditorID))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-redo", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/redo", Summary: "Redo", Tags: []string{"Editors"}},
		func(ctx context.Context, input *editorIDInput) (*historyOutput, error) {
			return historyResult(svc.Redo(input.EditorID))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-apply-crop", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/crop/apply", Summary: "Apply the armed crop", Tags: []string{"Editors"}},
		func(ctx context.Context, input *editorIDInput) (*editorOutput, error) {
			return editorResult(svc.ApplyCrop(input.EditorID))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-cancel-crop", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/crop/cancel", Summary: "Drop the crop selection", Tags: []string{"Editors"}},
		func(ctx context.Context, input *editorIDInput) (*editorOutput, error) {
			return editorResult(svc.CancelCrop(input.EditorID))
		})

	huma.Register(api, huma.Operation{OperationID: "editor-copy", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/export/copy", Summary: "Copy the document to the system clipboard", Tags: []string{"Export"}},
		func(ctx context.Context, input *editorIDInput) (*statusOutput, error) {
			if err := svc.Copy(input.EditorID); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("copied"), nil
		})

	type downloadOutput struct {
		Body struct {
			Export snapshot.Meta `json:"export"`
			URL    string        `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "editor-download", Method: http.MethodPost, Path: "/api/v1/editors/{editor_id}/export/download", Summary: "Save the document as a PNG file", Tags: []string{"Export"}},
		func(ctx context.Context, input *editorIDInput) (*downloadOutput, error) {
			meta, err := svc.Download(input.EditorID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &downloadOutput{}
			out.Body.Export = meta
			out.Body.URL = "/api/v1/exports/" + meta.ID + "/image"
			return out, nil
		})
}
