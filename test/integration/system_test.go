//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	resp := env.GET(t, "/api/v1/health")
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		Status string `json:"status"`
	}](t, resp)
	requireField(t, result.Status, "ok", "status")
}

func TestTriggersForCapturableTab(t *testing.T) {
	resp := env.GET(t, "/api/v1/triggers?tab_id="+env.TabID)
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		TabID   string          `json:"tab_id"`
		Enabled map[string]bool `json:"enabled"`
	}](t, resp)
	requireField(t, result.TabID, env.TabID, "tab_id")
	for _, mode := range []string{"visible", "full-page", "region"} {
		if !result.Enabled[mode] {
			t.Fatalf("trigger %s disabled on a capturable tab", mode)
		}
	}
}

func TestUnknownTabIsNotFound(t *testing.T) {
	resp := env.POST(t, "/api/v1/capture", map[string]any{"mode": "visible", "tab_id": "no-such-tab"})
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestNoPendingCapture(t *testing.T) {
	resp := env.POST(t, "/api/v1/editors", nil)
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
