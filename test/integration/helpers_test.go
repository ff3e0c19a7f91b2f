//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var env *Env

// Env holds shared state for all integration tests.
type Env struct {
	BaseURL string
	Client  *http.Client
	TabID   string // first capturable tab from /api/v1/tabs
}

// discoverTabID fetches /api/v1/tabs and picks the first tab that is not
// restricted.
func (e *Env) discoverTabID() error {
	resp, err := e.Client.Get(e.BaseURL + "/api/v1/tabs")
	if err != nil {
		return fmt.Errorf("server not reachable at %s: %w", e.BaseURL, err)
	}
	defer resp.Body.Close()

	var listing struct {
		Tabs []struct {
			TargetID   string `json:"target_id"`
			URL        string `json:"url"`
			Restricted bool   `json:"restricted"`
		} `json:"tabs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("decode tabs: %w", err)
	}
	for _, tab := range listing.Tabs {
		if !tab.Restricted && strings.HasPrefix(tab.URL, "http") {
			e.TabID = tab.TargetID
			return nil
		}
	}
	return fmt.Errorf("no capturable tab found at %s", e.BaseURL)
}

func TestMain(m *testing.M) {
	baseURL := os.Getenv("PAGESNAPD_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8199"
	}

	env = &Env{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}

	if err := env.discoverTabID(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "integration: using tab %s at %s\n", env.TabID, env.BaseURL)

	os.Exit(m.Run())
}

// --- HTTP helpers ---

func (e *Env) GET(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.Client.Get(e.BaseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *Env) POST(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, path, body)
}

func (e *Env) DELETE(t *testing.T, path string) *http.Response {
	t.Helper()
	return e.do(t, http.MethodDelete, path, nil)
}

func (e *Env) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("%s %s: marshal body: %v", method, path, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.BaseURL+path, r)
	if err != nil {
		t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// --- Assertion helpers ---

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func requireField[T comparable](t *testing.T, got, want T, name string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

// --- Editor helpers ---

type editorState struct {
	ID      string `json:"id"`
	Loaded  bool   `json:"loaded"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Tool    string `json:"tool"`
	History struct {
		Len     int  `json:"len"`
		Cursor  int  `json:"cursor"`
		CanUndo bool `json:"can_undo"`
		CanRedo bool `json:"can_redo"`
	} `json:"history"`
}

func (e *Env) editorPath(id, suffix string) string {
	return fmt.Sprintf("/api/v1/editors/%s/%s", id, suffix)
}

// capture runs one capture on the discovered tab and returns the editor it
// opened, closing it when the test ends.
func (e *Env) capture(t *testing.T, mode string) editorState {
	t.Helper()
	resp := e.POST(t, "/api/v1/capture", map[string]any{"mode": mode, "tab_id": e.TabID})
	requireStatus(t, resp, http.StatusOK)
	out := decodeJSON[struct {
		EditorID string `json:"editor_id"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	}](t, resp)
	if out.EditorID == "" {
		t.Fatal("expected capture to open an editor")
	}
	t.Cleanup(func() {
		r := e.DELETE(t, "/api/v1/editors/"+out.EditorID)
		r.Body.Close()
	})

	resp = e.GET(t, "/api/v1/editors/"+out.EditorID)
	requireStatus(t, resp, http.StatusOK)
	st := decodeJSON[editorState](t, resp)
	requireField(t, st.Width, out.Width, "editor width")
	requireField(t, st.Height, out.Height, "editor height")
	return st
}
