// Command pagesnap captures one page from the command line and writes the
// PNG to a file, the clipboard, or both.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/editor"
	"github.com/dgnsrekt/pagesnap/internal/handoff"
	"github.com/dgnsrekt/pagesnap/internal/headless"
	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/selector"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

type options struct {
	url       string
	mode      string
	rect      string
	out       string
	copy      bool
	remote    string
	headful   bool
	width     int64
	height    int64
	scale     float64
	maxHeight float64
	settle    time.Duration
	timeout   time.Duration
	verbose   bool
}

func main() {
	var o options
	flag.StringVar(&o.url, "url", "", "page to capture")
	flag.StringVar(&o.mode, "mode", string(types.ModeVisible), "capture mode: visible|full-page|region")
	flag.StringVar(&o.rect, "rect", "", "region as x,y,w,h in CSS pixels; without it region mode asks interactively (needs -headful)")
	flag.StringVar(&o.out, "out", "", "output PNG path (default "+snapshot.FilenamePrefix+"-<timestamp>.png)")
	flag.BoolVar(&o.copy, "copy", false, "also copy the image to the clipboard")
	flag.StringVar(&o.remote, "cdp", "", "attach to a running browser's CDP endpoint instead of launching one")
	flag.BoolVar(&o.headful, "headful", false, "show the browser window")
	flag.Int64Var(&o.width, "width", headless.DefaultWidth, "viewport width")
	flag.Int64Var(&o.height, "height", headless.DefaultHeight, "viewport height")
	flag.Float64Var(&o.scale, "scale", 1, "device pixel ratio")
	flag.Float64Var(&o.maxHeight, "max-height", capture.DefaultMaxPageHeight, "full-page height cap in CSS pixels")
	flag.DurationVar(&o.settle, "settle", 100*time.Millisecond, "wait after each scroll before capturing")
	flag.DurationVar(&o.timeout, "timeout", 3*time.Minute, "overall deadline")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	path, err := run(ctx, o)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "pagesnap failed: %v\n", err)
		os.Exit(1)
	}
	if path != "" {
		fmt.Println(path)
	}
}

func run(ctx context.Context, o options) (string, error) {
	mode, err := types.ParseMode(o.mode)
	if err != nil {
		return "", err
	}
	var rect *types.SelectionRect
	if o.rect != "" {
		if mode != types.ModeRegion {
			return "", types.NewError(types.CodeValidation, "-rect only applies to region mode", nil)
		}
		r, err := parseRect(o.rect)
		if err != nil {
			return "", err
		}
		r.PixelDensity = o.scale
		rect = &r
	}
	if mode == types.ModeRegion && rect == nil && !o.headful && o.remote == "" {
		return "", types.NewError(types.CodeValidation, "interactive region selection needs -headful or -cdp", nil)
	}

	page, err := headless.Open(ctx, headless.Options{
		URL:       o.url,
		Width:     o.width,
		Height:    o.height,
		Scale:     o.scale,
		RemoteURL: o.remote,
		Headful:   o.headful,
	})
	if err != nil {
		return "", err
	}
	defer page.Close()

	img, err := capturePage(ctx, o, mode, rect, page)
	if err != nil {
		return "", err
	}

	path := o.out
	if path == "" {
		path = snapshot.Filename(time.Now())
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if o.copy {
		if err := (editor.SystemClipboard{}).WriteImage(img); err != nil {
			return path, err
		}
	}
	return path, nil
}

// capturePage runs one capture through the same orchestrator the daemon
// uses, with page as the only tab.
func capturePage(ctx context.Context, o options, mode types.Mode, rect *types.SelectionRect, page *headless.Page) ([]byte, error) {
	router := messages.NewRouter()
	slot := &handoff.Slot{}
	orch := capture.NewOrchestrator(capture.Options{
		MaxPageHeight: o.maxHeight,
		SettleDelay:   o.settle,
	}, singleTab{page: page}, selector.NewLauncher(router), slot)
	orch.Register(router)

	if rect != nil {
		shot, err := orch.CaptureVisible(ctx, page)
		if err != nil {
			return nil, err
		}
		decoded, err := capture.Decode(shot)
		if err != nil {
			return nil, err
		}
		cropped, err := capture.CropSelection(decoded, *rect)
		if err != nil {
			return nil, err
		}
		return capture.EncodePNG(cropped)
	}

	if mode == types.ModeRegion {
		_, _ = fmt.Fprintln(os.Stderr, "drag a rectangle in the browser window; Esc cancels")
	}
	if _, err := router.Send(ctx, messages.Message{Kind: messages.KindCaptureRequest, Mode: mode, Source: "cli"}); err != nil {
		return nil, err
	}
	pending, ok := orch.TakePending()
	if !ok {
		return nil, types.NewError(types.CodeNoPendingCapture, "capture produced no image", nil)
	}
	return pending.Image, nil
}

type singleTab struct {
	page *headless.Page
}

func (s singleTab) ResolveTab(ctx context.Context, tabID string) (capture.Page, error) {
	if tabID != "" && tabID != s.page.ID() {
		return nil, types.NewError(types.CodeTabNotFound, "tab not found: "+tabID, nil)
	}
	return s.page, nil
}

// parseRect reads "x,y,w,h".
func parseRect(s string) (types.SelectionRect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.SelectionRect{}, types.NewError(types.CodeValidation, fmt.Sprintf("rect %q: want x,y,w,h", s), nil)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.SelectionRect{}, types.NewError(types.CodeValidation, fmt.Sprintf("rect %q", s), err)
		}
		v[i] = f
	}
	r := types.SelectionRect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.X < 0 || r.Y < 0 || r.TooSmall() {
		return types.SelectionRect{}, types.NewError(types.CodeValidation, fmt.Sprintf("rect %q: must start inside the page and be at least %dx%d", s, types.MinSelectionSize, types.MinSelectionSize), nil)
	}
	return r, nil
}
