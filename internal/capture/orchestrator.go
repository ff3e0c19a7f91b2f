// Package capture turns a capture request into one encoded image and hands
// it to the editor.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/handoff"
	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

const (
	DefaultSettleDelay    = 100 * time.Millisecond
	DefaultRegionTimeout  = 2 * time.Minute
	DefaultCaptureTimeout = 30 * time.Second
	restoreTimeout        = 2 * time.Second
)

// TabResolver maps a tab id to a Page. An empty id means the active tab.
type TabResolver interface {
	ResolveTab(ctx context.Context, tabID string) (Page, error)
}

// Activator is implemented by pages that can be brought to the front.
// Browsers often leave a background tab's screenshot unanswered.
type Activator interface {
	Activate(ctx context.Context) error
}

// RegionSelector puts the selection overlay on a page. The outcome arrives
// later as a SELECTION_COMPLETE or SELECTION_CANCELLED message.
type RegionSelector interface {
	Select(ctx context.Context, page Page) error
	Cancel(ctx context.Context, page Page) error
}

// EditorOpener starts an editor that will take the pending capture.
type EditorOpener interface {
	OpenEditor(ctx context.Context) (string, error)
}

// Options tunes the orchestrator.
type Options struct {
	MaxPageHeight float64
	SettleDelay   time.Duration
	RegionTimeout time.Duration
	// CaptureTimeout bounds each single screenshot of the page.
	CaptureTimeout time.Duration
	// Sleep waits between scrolling and capturing. Defaults to a
	// context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type selectionOutcome struct {
	rect      types.SelectionRect
	cancelled bool
}

// Orchestrator drives capture strategies and owns the pending-capture slot.
type Orchestrator struct {
	opts     Options
	tabs     TabResolver
	selector RegionSelector
	opener   EditorOpener
	slot     *handoff.Slot

	inFlight atomic.Bool

	mu      sync.Mutex
	waiters map[string]chan selectionOutcome
}

func NewOrchestrator(opts Options, tabs TabResolver, selector RegionSelector, slot *handoff.Slot) *Orchestrator {
	if opts.MaxPageHeight <= 0 {
		opts.MaxPageHeight = DefaultMaxPageHeight
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.RegionTimeout <= 0 {
		opts.RegionTimeout = DefaultRegionTimeout
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if slot == nil {
		slot = &handoff.Slot{}
	}
	return &Orchestrator{
		opts:     opts,
		tabs:     tabs,
		selector: selector,
		slot:     slot,
		waiters:  make(map[string]chan selectionOutcome),
	}
}

// SetOpener wires the editor opener used after every handoff.
func (o *Orchestrator) SetOpener(opener EditorOpener) {
	o.opener = opener
}

// Register installs the orchestrator's handlers on the router.
func (o *Orchestrator) Register(r *messages.Router) {
	r.Register(messages.KindCaptureRequest, o.Handle)
	r.Register(messages.KindSelectionComplete, o.onSelection)
	r.Register(messages.KindSelectionCancelled, o.onSelection)
	r.Register(messages.KindGetPendingCapture, func(ctx context.Context, msg messages.Message) (messages.Response, error) {
		c, _ := o.slot.TakeOnce()
		return messages.Response{Image: c.Image, SourceURL: c.SourceURL, Mode: c.Mode}, nil
	})
}

// Busy reports whether a capture request is in flight.
func (o *Orchestrator) Busy() bool {
	return o.inFlight.Load()
}

// Pending reports whether a capture waits for an editor.
func (o *Orchestrator) Pending() bool {
	return o.slot.Pending()
}

// Handle answers a CAPTURE_REQUEST: run the strategy for msg.Mode on the
// requested tab and hand the result to an editor.
func (o *Orchestrator) Handle(ctx context.Context, msg messages.Message) (messages.Response, error) {
	mode, err := types.ParseMode(string(msg.Mode))
	if err != nil {
		return messages.Response{}, err
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return messages.Response{}, types.NewError(types.CodeBusy, "a capture is already in progress", nil)
	}
	defer o.inFlight.Store(false)

	if o.tabs == nil {
		return messages.Response{}, types.NewError(types.CodeTabNotFound, "no tab resolver configured", nil)
	}
	page, err := o.tabs.ResolveTab(ctx, msg.TabID)
	if err != nil {
		return messages.Response{}, err
	}
	if types.IsRestrictedURL(page.URL()) {
		return messages.Response{}, types.NewError(types.CodeCaptureDenied, "page cannot be captured: "+page.URL(), nil)
	}

	start := time.Now()
	slog.Info("capture start", "mode", mode, "tab_id", page.ID(), "source", msg.Source)
	o.activate(ctx, page)

	var img []byte
	switch mode {
	case types.ModeVisible:
		img, err = o.CaptureVisible(ctx, page)
	case types.ModeFullPage:
		img, err = o.CaptureFullPage(ctx, page)
	case types.ModeRegion:
		img, err = o.CaptureRegion(ctx, page)
	}
	if err != nil {
		slog.Warn("capture failed", "mode", mode, "tab_id", page.ID(), "error", err)
		return messages.Response{}, err
	}

	w, h, err := Dimensions(img)
	if err != nil {
		return messages.Response{}, err
	}
	slog.Info("capture done", "mode", mode, "width", w, "height", h, "bytes", len(img), "duration_ms", time.Since(start).Milliseconds())

	editorID, err := o.Handoff(ctx, handoff.Capture{Image: img, SourceURL: page.URL(), Mode: mode})
	if err != nil {
		return messages.Response{}, err
	}
	return messages.Response{EditorID: editorID, Width: w, Height: h}, nil
}

// CaptureVisible captures the tab's visible viewport.
func (o *Orchestrator) CaptureVisible(ctx context.Context, page Page) ([]byte, error) {
	return o.shoot(ctx, page)
}

// shoot takes one screenshot under the capture timeout, so a browser that
// never answers fails the request instead of holding the in-flight flag.
func (o *Orchestrator) shoot(ctx context.Context, page Page) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, o.opts.CaptureTimeout)
	defer cancel()
	img, err := page.CaptureVisible(cctx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, types.NewError(types.CodeEvalTimeout, fmt.Sprintf("screenshot not answered within %s", o.opts.CaptureTimeout), err)
		}
		return nil, asCaptureDenied(err)
	}
	return img, nil
}

func (o *Orchestrator) activate(ctx context.Context, page Page) {
	a, ok := page.(Activator)
	if !ok {
		return
	}
	actx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()
	if err := a.Activate(actx); err != nil {
		slog.Warn("tab activate failed", "tab_id", page.ID(), "error", err)
	}
}

// CaptureFullPage scrolls through the page one viewport at a time and
// stitches the segments. The original scroll position is restored on every
// exit path.
func (o *Orchestrator) CaptureFullPage(ctx context.Context, page Page) ([]byte, error) {
	g, err := page.Geometry(ctx)
	if err != nil {
		return nil, wrapIfUncoded(types.CodeGeometryUnavailable, "read page geometry", err)
	}
	if g.ViewportHeight <= 0 || g.ViewportWidth <= 0 {
		return nil, types.NewError(types.CodeGeometryUnavailable, fmt.Sprintf("invalid viewport %vx%v", g.ViewportWidth, g.ViewportHeight), nil)
	}
	plan := PlanSegments(g, o.opts.MaxPageHeight)
	slog.Debug("full page plan", "scroll_height", g.ScrollHeight, "total_height", plan.TotalHeight, "segments", len(plan.Offsets), "dpr", g.PixelDensity)

	defer func() {
		rctx := ctx
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
			defer cancel()
		}
		if _, rerr := page.ScrollTo(rctx, g.ScrollX, g.ScrollY); rerr != nil {
			slog.Warn("scroll restore failed", "tab_id", page.ID(), "error", rerr)
		}
	}()

	segments := make([]Segment, 0, len(plan.Offsets))
	for i, off := range plan.Offsets {
		actual, err := page.ScrollTo(ctx, 0, off)
		if err != nil {
			return nil, wrapIfUncoded(types.CodeGeometryUnavailable, "scroll page", err)
		}
		if err := o.opts.Sleep(ctx, o.opts.SettleDelay); err != nil {
			return nil, err
		}
		img, err := o.shoot(ctx, page)
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment{
			Image:          img,
			VerticalOffset: off,
			ActualOffset:   actual,
			Final:          i == len(plan.Offsets)-1,
		})
	}

	if len(segments) == 1 && segments[0].VerticalOffset == segments[0].ActualOffset {
		return segments[0].Image, nil
	}

	canvas, err := Stitch(segments, g, plan.TotalHeight)
	if err != nil {
		return nil, err
	}
	return EncodePNG(canvas)
}

// CaptureRegion runs the selection overlay, waits for its outcome, then
// crops a fresh visible capture to the selection.
func (o *Orchestrator) CaptureRegion(ctx context.Context, page Page) ([]byte, error) {
	if o.selector == nil {
		return nil, types.NewError(types.CodeValidation, "region selection is not available", nil)
	}

	ch := make(chan selectionOutcome, 1)
	o.mu.Lock()
	if _, busy := o.waiters[page.ID()]; busy {
		o.mu.Unlock()
		return nil, types.NewError(types.CodeBusy, "a region selection is already active on this tab", nil)
	}
	o.waiters[page.ID()] = ch
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.waiters, page.ID())
		o.mu.Unlock()
	}()

	if err := o.selector.Select(ctx, page); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, o.opts.RegionTimeout)
	defer cancel()

	var out selectionOutcome
	select {
	case out = <-ch:
	case <-wctx.Done():
		cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer ccancel()
		if err := o.selector.Cancel(cctx, page); err != nil {
			slog.Debug("selector cancel after timeout failed", "tab_id", page.ID(), "error", err)
		}
		return nil, types.NewError(types.CodeSelectionCancelled, "region selection timed out", wctx.Err())
	}

	if out.cancelled || out.rect.TooSmall() {
		return nil, types.NewError(types.CodeSelectionCancelled, "region selection cancelled", nil)
	}

	if err := o.opts.Sleep(ctx, o.opts.SettleDelay); err != nil {
		return nil, err
	}
	shot, err := o.shoot(ctx, page)
	if err != nil {
		return nil, err
	}
	img, err := Decode(shot)
	if err != nil {
		return nil, err
	}
	cropped, err := CropSelection(img, out.rect)
	if err != nil {
		return nil, err
	}
	return EncodePNG(cropped)
}

// Handoff stores c as the pending capture and opens an editor for it.
func (o *Orchestrator) Handoff(ctx context.Context, c handoff.Capture) (string, error) {
	o.slot.Put(c)
	if o.opener == nil {
		return "", nil
	}
	return o.opener.OpenEditor(ctx)
}

// TakePending hands out the pending capture at most once.
func (o *Orchestrator) TakePending() (handoff.Capture, bool) {
	return o.slot.TakeOnce()
}

func (o *Orchestrator) onSelection(ctx context.Context, msg messages.Message) (messages.Response, error) {
	o.mu.Lock()
	ch, ok := o.waiters[msg.TabID]
	o.mu.Unlock()
	if !ok {
		return messages.Response{}, types.NewError(types.CodeValidation, "no region capture waiting on tab "+msg.TabID, nil)
	}

	out := selectionOutcome{cancelled: msg.Kind == messages.KindSelectionCancelled}
	if !out.cancelled {
		if msg.Rect == nil {
			out.cancelled = true
		} else {
			out.rect = *msg.Rect
		}
	}
	select {
	case ch <- out:
	default:
		slog.Debug("duplicate selection outcome dropped", "tab_id", msg.TabID, "type", msg.Kind)
	}
	return messages.Response{}, nil
}

// Triggers reports which capture commands are usable for a tab URL. It is a
// hint for trigger surfaces; Handle still enforces the restriction.
func Triggers(url string) map[types.Mode]bool {
	enabled := !types.IsRestrictedURL(url)
	out := make(map[types.Mode]bool, len(types.Modes))
	for _, m := range types.Modes {
		out[m] = enabled
	}
	return out
}

func asCaptureDenied(err error) error {
	return wrapIfUncoded(types.CodeCaptureDenied, "capture visible viewport", err)
}

func wrapIfUncoded(code, msg string, err error) error {
	if types.CodeOf(err) != "" && types.CodeOf(err) != types.CodeEvalFailure {
		return err
	}
	return types.NewError(code, msg, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
