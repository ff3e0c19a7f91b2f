// Package hotkey turns global key chords into capture requests.
package hotkey

import (
	"context"
	"log/slog"
	"strings"

	gohook "github.com/robotn/gohook"

	"github.com/dgnsrekt/pagesnap/internal/config"
	"github.com/dgnsrekt/pagesnap/internal/messages"
)

// Backend delivers key chords. Run blocks until ctx is done.
type Backend interface {
	Register(keys []string, fn func())
	Run(ctx context.Context) error
}

// Sender is the request side of the message router.
type Sender interface {
	Send(ctx context.Context, msg messages.Message) (messages.Response, error)
}

// Listener sends one CAPTURE_REQUEST per chord press.
type Listener struct {
	backend  Backend
	bindings []config.Binding
	sender   Sender
	onError  func(op string, err error)
}

// NewListener builds a listener over the system keyboard hook.
func NewListener(bindings []config.Binding, sender Sender, onError func(op string, err error)) *Listener {
	return newListener(&systemHook{}, bindings, sender, onError)
}

func newListener(b Backend, bindings []config.Binding, sender Sender, onError func(op string, err error)) *Listener {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Listener{backend: b, bindings: bindings, sender: sender, onError: onError}
}

// Run registers every binding and processes key events until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	for _, b := range l.bindings {
		mode, chord := b.Mode, b.Chord
		l.backend.Register(b.Keys, func() {
			slog.Info("hotkey pressed", "chord", chord, "mode", mode)
			// The hook callback must return quickly; captures take seconds.
			go func() {
				_, err := l.sender.Send(ctx, messages.Message{
					Kind:   messages.KindCaptureRequest,
					Mode:   mode,
					Source: "hotkey",
				})
				if err != nil {
					slog.Warn("hotkey capture failed", "chord", chord, "mode", mode, "error", err)
					l.onError("capture "+string(mode), err)
				}
			}()
		})
	}
	slog.Info("hotkey listener started", "bindings", len(l.bindings))
	return l.backend.Run(ctx)
}

// systemHook is the gohook-backed Backend.
type systemHook struct{}

func (systemHook) Register(keys []string, fn func()) {
	gohook.Register(gohook.KeyDown, keys, func(gohook.Event) {
		fn()
	})
}

func (systemHook) Run(ctx context.Context) error {
	events := gohook.Start()
	done := gohook.Process(events)
	select {
	case <-ctx.Done():
		gohook.End()
		<-done
		return nil
	case <-done:
		slog.Warn("hotkey event stream closed")
		return nil
	}
}

// String renders a binding list for logs.
func String(bindings []config.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, string(b.Mode)+"="+b.Chord)
	}
	return strings.Join(parts, " ")
}
