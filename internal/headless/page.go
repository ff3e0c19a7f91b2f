// Package headless drives a chromedp-managed browser tab for one-shot
// captures from the command line.
package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 800
	navTimeout    = 45 * time.Second
)

// Options configures the browser a Page runs in.
type Options struct {
	URL    string
	Width  int64
	Height int64
	Scale  float64
	// RemoteURL attaches to a running browser's CDP endpoint instead of
	// launching one.
	RemoteURL string
	// Headful shows the browser window; region selection needs it.
	Headful bool
}

// Page is one chromedp tab. It satisfies capture.Page and the region
// selector's host interface.
type Page struct {
	ctx     context.Context
	cancels []context.CancelFunc
	url     string
	id      string
}

// Open starts or attaches to a browser, opens a tab sized to the options
// and navigates it.
func Open(ctx context.Context, opts Options) (*Page, error) {
	if opts.URL == "" {
		return nil, types.NewError(types.CodeValidation, "url is required", nil)
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	p := &Page{url: opts.URL}
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		execOpts = append(execOpts, chromedp.WindowSize(int(opts.Width), int(opts.Height)))
		if opts.Headful {
			execOpts = append(execOpts, chromedp.Flag("headless", false))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, execOpts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	p.ctx = tabCtx
	p.cancels = []context.CancelFunc{tabCancel, allocCancel}

	navCtx, navCancel := context.WithTimeout(tabCtx, navTimeout)
	defer navCancel()
	err := chromedp.Run(navCtx,
		chromedp.EmulateViewport(opts.Width, opts.Height, chromedp.EmulateScale(opts.Scale)),
		chromedp.Navigate(opts.URL),
	)
	if err != nil {
		p.Close()
		return nil, types.NewError(types.CodeCDPUnavailable, "open "+opts.URL, err)
	}
	if t := chromedp.FromContext(tabCtx).Target; t != nil {
		p.id = string(t.TargetID)
	}
	slog.Info("headless page ready", "url", opts.URL, "width", opts.Width, "height", opts.Height, "scale", opts.Scale, "remote", opts.RemoteURL != "")
	return p, nil
}

// Close shuts the tab and, when this process launched it, the browser.
func (p *Page) Close() {
	for _, cancel := range p.cancels {
		cancel()
	}
}

func (p *Page) ID() string  { return p.id }
func (p *Page) URL() string { return p.url }

// run executes actions on the tab, bounded by both the caller's context and
// the tab's lifetime.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) CaptureVisible(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, types.NewError(types.CodeCaptureDenied, "capture screenshot failed", err)
	}
	return buf, nil
}

func (p *Page) Geometry(ctx context.Context) (capture.PageGeometry, error) {
	var g capture.PageGeometry
	if err := p.run(ctx, chromedp.Evaluate(capture.GeometryExpr, &g)); err != nil {
		return capture.PageGeometry{}, types.NewError(types.CodeGeometryUnavailable, "read page geometry", err)
	}
	return g, nil
}

func (p *Page) ScrollTo(ctx context.Context, x, y float64) (float64, error) {
	var reached float64
	if err := p.run(ctx, chromedp.Evaluate(capture.ScrollExpr(x, y), &reached)); err != nil {
		return 0, types.NewError(types.CodeEvalFailure, "scroll page", err)
	}
	return reached, nil
}

// Eval runs a function body in the page and decodes its return value into out.
func (p *Page) Eval(ctx context.Context, body string, out any) error {
	var raw []byte
	expr := "(async function(){\n" + body + "\n})()"
	err := p.run(ctx, chromedp.Evaluate(expr, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		return types.NewError(types.CodeEvalFailure, "evaluation failed", err)
	}
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewError(types.CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// Bind installs a page binding. chromedp listeners cannot be removed, so
// the returned func only silences fn and drops the binding.
func (p *Page) Bind(ctx context.Context, name string, fn func(payload string)) (func(), error) {
	var live atomic.Bool
	live.Store(true)
	chromedp.ListenTarget(p.ctx, func(ev any) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == name && live.Load() {
			fn(e.Payload)
		}
	})
	if err := p.run(ctx, runtime.AddBinding(name)); err != nil {
		live.Store(false)
		return nil, types.NewError(types.CodeEvalFailure, fmt.Sprintf("add binding %s", name), err)
	}
	return func() {
		live.Store(false)
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.run(rctx, runtime.RemoveBinding(name)); err != nil {
			slog.Debug("headless remove binding failed", "binding", name, "error", err)
		}
	}, nil
}
