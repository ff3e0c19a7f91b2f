package cdpcontrol

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

const unbindTimeout = 2 * time.Second

// Tab is one browser page target. It satisfies capture.Page and the region
// selector's host interface.
type Tab struct {
	client *Client
	info   types.TabInfo
}

func (t *Tab) ID() string          { return t.info.TargetID }
func (t *Tab) URL() string         { return t.info.URL }
func (t *Tab) Info() types.TabInfo { return t.info }

// Activate brings the tab to the front before it is captured.
func (t *Tab) Activate(ctx context.Context) error {
	return t.client.ActivateTab(ctx, t.ID())
}

// CaptureVisible takes a PNG of the tab's visible viewport.
func (t *Tab) CaptureVisible(ctx context.Context) ([]byte, error) {
	var img []byte
	err := t.client.onTab(ctx, t.ID(), opCapture, func(ctx context.Context, cdp *rawCDP, _ *tabSession, sessionID string) error {
		shot, err := cdp.captureScreenshot(ctx, sessionID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return types.NewError(types.CodeEvalTimeout, "capture screenshot timed out", err)
			}
			return types.NewError(types.CodeEvalFailure, "capture screenshot failed", err)
		}
		img = shot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (t *Tab) Geometry(ctx context.Context) (capture.PageGeometry, error) {
	var g capture.PageGeometry
	if err := t.client.evalOnTab(ctx, t.ID(), envelopeExpr(capture.GeometryExpr), &g); err != nil {
		return capture.PageGeometry{}, err
	}
	return g, nil
}

func (t *Tab) ScrollTo(ctx context.Context, x, y float64) (float64, error) {
	var reached float64
	if err := t.client.evalOnTab(ctx, t.ID(), envelopeExpr(capture.ScrollExpr(x, y)), &reached); err != nil {
		return 0, err
	}
	return reached, nil
}

// Eval runs a function body in the tab and decodes what it returns into out.
func (t *Tab) Eval(ctx context.Context, body string, out any) error {
	return t.client.evalOnTab(ctx, t.ID(), envelopeBody(body), out)
}

// Bind installs a page binding and routes its calls to fn. fn runs on the
// connection's read loop.
func (t *Tab) Bind(ctx context.Context, name string, fn func(payload string)) (func(), error) {
	var (
		cdp       *rawCDP
		sessionID string
		off       func()
	)
	err := t.client.onTab(ctx, t.ID(), "bind", func(ctx context.Context, c *rawCDP, session *tabSession, sid string) error {
		session.mu.Lock()
		needRuntime := !session.runtimeOn
		session.mu.Unlock()
		if needRuntime {
			if err := c.enableRuntime(ctx, sid); err != nil {
				return types.NewError(types.CodeEvalFailure, "enable runtime failed", err)
			}
			session.mu.Lock()
			session.runtimeOn = true
			session.mu.Unlock()
		}
		stop := c.onBindingCalled(sid, name, fn)
		if err := c.addBinding(ctx, sid, name); err != nil {
			stop()
			return types.NewError(types.CodeEvalFailure, "add binding failed", err)
		}
		cdp, sessionID, off = c, sid, stop
		return nil
	})
	if err != nil {
		return nil, err
	}

	tabID := t.ID()
	return func() {
		off()
		ctx, cancel := context.WithTimeout(context.Background(), unbindTimeout)
		defer cancel()
		if err := cdp.removeBinding(ctx, sessionID, name); err != nil {
			slog.Debug("cdpcontrol remove binding failed", "tab_id", tabID, "binding", name, "error", err)
		}
	}, nil
}
