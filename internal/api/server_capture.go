package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagesnap/internal/controller"
	"github.com/dgnsrekt/pagesnap/internal/notify"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

func registerCaptureHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			return newStatus("ok"), nil
		})

	type tabsOutput struct {
		Body struct {
			Tabs []types.TabInfo `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List capturable tabs, most recently focused first", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabsOutput{}
			out.Body.Tabs = tabs
			if out.Body.Tabs == nil {
				out.Body.Tabs = []types.TabInfo{}
			}
			return out, nil
		})

	type triggersOutput struct {
		Body controller.TriggerState
	}
	huma.Register(api, huma.Operation{OperationID: "get-triggers", Method: http.MethodGet, Path: "/api/v1/triggers", Summary: "Which capture commands a tab allows", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct {
			TabID string `query:"tab_id" doc:"Target tab. Omit to use the active tab."`
		}) (*triggersOutput, error) {
			state, err := svc.Triggers(ctx, input.TabID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &triggersOutput{Body: state}, nil
		})

	type captureOutput struct {
		Body struct {
			Mode     types.Mode `json:"mode"`
			EditorID string     `json:"editor_id,omitempty"`
			Width    int        `json:"width"`
			Height   int        `json:"height"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "capture",
		Method:      http.MethodPost,
		Path:        "/api/v1/capture",
		Summary:     "Capture a tab",
		Description: "Runs one capture and opens an editor on the result. Region captures wait until the user finishes or cancels the selection.",
		Tags:        []string{"Capture"},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Mode  string `json:"mode" doc:"Capture mode" enum:"visible,full-page,region"`
			TabID string `json:"tab_id,omitempty" doc:"Target tab. Omit to use the active tab."`
		}
	}) (*captureOutput, error) {
		resp, err := svc.Capture(ctx, input.Body.Mode, input.Body.TabID, "api")
		if err != nil {
			return nil, mapErr(err)
		}
		out := &captureOutput{}
		out.Body.Mode = types.Mode(input.Body.Mode)
		out.Body.EditorID = resp.EditorID
		out.Body.Width = resp.Width
		out.Body.Height = resp.Height
		return out, nil
	})

	type pendingOutput struct {
		Body struct {
			Pending bool `json:"pending"`
			Busy    bool `json:"busy"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-pending", Method: http.MethodGet, Path: "/api/v1/pending", Summary: "Whether a capture runs or waits for an editor", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct{}) (*pendingOutput, error) {
			out := &pendingOutput{}
			out.Body.Pending = svc.PendingCapture()
			out.Body.Busy = svc.CaptureBusy()
			return out, nil
		})

	type notificationsOutput struct {
		Body struct {
			Notifications []notify.Notification `json:"notifications"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-notifications", Method: http.MethodGet, Path: "/api/v1/notifications", Summary: "Active notifications", Tags: []string{"Notifications"}},
		func(ctx context.Context, input *struct{}) (*notificationsOutput, error) {
			out := &notificationsOutput{}
			out.Body.Notifications = svc.Notifications()
			if out.Body.Notifications == nil {
				out.Body.Notifications = []notify.Notification{}
			}
			return out, nil
		})

	type notificationIDInput struct {
		NotificationID string `path:"notification_id"`
	}
	huma.Register(api, huma.Operation{OperationID: "dismiss-notification", Method: http.MethodDelete, Path: "/api/v1/notifications/{notification_id}", Summary: "Dismiss a notification", Tags: []string{"Notifications"}},
		func(ctx context.Context, input *notificationIDInput) (*statusOutput, error) {
			if err := svc.DismissNotification(input.NotificationID); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("dismissed"), nil
		})
}
