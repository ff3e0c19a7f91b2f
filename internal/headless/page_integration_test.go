//go:build integration

package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/capture"
)

const tallPage = `<!doctype html><html><body style="margin:0">
<div style="height:1000px;background:#f00"></div>
<div style="height:1000px;background:#0f0"></div>
<div style="height:500px;background:#00f"></div>
</body></html>`

func TestFullPageCaptureAgainstChromium(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, tallPage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	page, err := Open(ctx, Options{URL: srv.URL, Width: 800, Height: 1000, Scale: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer page.Close()

	orch := capture.NewOrchestrator(capture.Options{}, nil, nil, nil)
	img, err := orch.CaptureFullPage(ctx, page)
	if err != nil {
		t.Fatalf("CaptureFullPage() error = %v", err)
	}
	w, h, err := capture.Dimensions(img)
	if err != nil {
		t.Fatalf("Dimensions() error = %v", err)
	}
	if w <= 0 || h != 2500 {
		t.Fatalf("stitched size = %dx%d; want height 2500", w, h)
	}

	g, err := page.Geometry(ctx)
	if err != nil {
		t.Fatalf("Geometry() error = %v", err)
	}
	if g.ScrollY != 0 {
		t.Fatalf("scroll after capture = %v; want restored to 0", g.ScrollY)
	}
}
