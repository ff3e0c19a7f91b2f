package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagesnap/internal/snapshot"
)

func registerExportHandlers(api huma.API, svc Service) {
	type listExportsOutput struct {
		Body struct {
			Exports []snapshot.Meta `json:"exports"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-exports", Method: http.MethodGet, Path: "/api/v1/exports", Summary: "List downloaded exports, newest first", Tags: []string{"Export"}},
		func(ctx context.Context, input *struct{}) (*listExportsOutput, error) {
			metas, err := svc.ListExports()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listExportsOutput{}
			out.Body.Exports = metas
			if out.Body.Exports == nil {
				out.Body.Exports = []snapshot.Meta{}
			}
			return out, nil
		})

	type exportIDInput struct {
		ExportID string `path:"export_id"`
	}
	type getExportOutput struct {
		Body snapshot.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-export", Method: http.MethodGet, Path: "/api/v1/exports/{export_id}", Summary: "Get export metadata", Tags: []string{"Export"}},
		func(ctx context.Context, input *exportIDInput) (*getExportOutput, error) {
			meta, err := svc.GetExport(input.ExportID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getExportOutput{Body: meta}, nil
		})

	huma.Register(api, huma.Operation{
		OperationID: "get-export-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/exports/{export_id}/image",
		Summary:     "Get export image",
		Tags:        []string{"Export"},
		Responses:   pngResponses("Export image"),
	}, func(ctx context.Context, input *exportIDInput) (*pngOutput, error) {
		data, err := svc.ReadExportImage(input.ExportID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &pngOutput{ContentType: "image/png", Body: data}, nil
	})

	huma.Register(api, huma.Operation{OperationID: "delete-export", Method: http.MethodDelete, Path: "/api/v1/exports/{export_id}", Summary: "Delete export", Tags: []string{"Export"}},
		func(ctx context.Context, input *exportIDInput) (*statusOutput, error) {
			if err := svc.DeleteExport(input.ExportID); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("deleted"), nil
		})
}
