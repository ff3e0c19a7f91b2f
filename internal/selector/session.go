package selector

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

const (
	evalTimeout  = 5 * time.Second
	eventBacklog = 256
)

// Host is the page surface the overlay runs on.
type Host interface {
	ID() string
	// Eval runs a JavaScript function body in the page and decodes its
	// return value into out (which may be nil).
	Eval(ctx context.Context, body string, out any) error
	// Bind exposes a page function name whose string argument is delivered
	// to fn. The returned func removes the binding.
	Bind(ctx context.Context, name string, fn func(payload string)) (func(), error)
}

// Poster delivers selection outcomes without waiting.
type Poster interface {
	Post(ctx context.Context, msg messages.Message)
}

// Launcher runs at most one selection session per tab.
type Launcher struct {
	poster Poster

	mu       sync.Mutex
	sessions map[string]*session
}

func NewLauncher(poster Poster) *Launcher {
	return &Launcher{poster: poster, sessions: make(map[string]*session)}
}

// Active reports whether a selection session is running on the tab.
func (l *Launcher) Active(tabID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sessions[tabID]
	return ok
}

// Select injects the overlay into page and starts feeding its events
// through the state machine. It returns once the overlay is installed.
func (l *Launcher) Select(ctx context.Context, page capture.Page) error {
	host, ok := page.(Host)
	if !ok {
		return types.NewError(types.CodeValidation, "page does not support region selection", nil)
	}

	s := &session{
		host:     host,
		launcher: l,
		events:   make(chan Event, eventBacklog),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	l.mu.Lock()
	if _, busy := l.sessions[host.ID()]; busy {
		l.mu.Unlock()
		return types.NewError(types.CodeBusy, "selection overlay already active on tab "+host.ID(), nil)
	}
	l.sessions[host.ID()] = s
	l.mu.Unlock()

	unbind, err := host.Bind(ctx, BindingName, s.deliver)
	if err != nil {
		l.remove(host.ID())
		return wrapEval("bind selection events", err)
	}
	s.unbind = unbind

	var res struct {
		Installed bool `json:"installed"`
	}
	if err := host.Eval(ctx, injectBody, &res); err != nil {
		unbind()
		l.remove(host.ID())
		return wrapEval("inject selection overlay", err)
	}
	if !res.Installed {
		unbind()
		l.remove(host.ID())
		return types.NewError(types.CodeBusy, "selection overlay already present in page", nil)
	}

	slog.Info("selection overlay injected", "tab_id", host.ID())
	go s.run(context.WithoutCancel(ctx))
	return nil
}

// Cancel tears down the overlay on page without reporting an outcome.
func (l *Launcher) Cancel(ctx context.Context, page capture.Page) error {
	l.mu.Lock()
	s := l.sessions[page.ID()]
	l.mu.Unlock()
	if s == nil {
		host, ok := page.(Host)
		if !ok {
			return nil
		}
		return host.Eval(ctx, teardownBody, nil)
	}
	s.cancelOnce.Do(func() { close(s.cancelCh) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Launcher) remove(tabID string) {
	l.mu.Lock()
	delete(l.sessions, tabID)
	l.mu.Unlock()
}

type session struct {
	host     Host
	launcher *Launcher
	unbind   func()
	events   chan Event

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}

	state Snapshot
}

// deliver runs on the CDP read loop and must not block.
func (s *session) deliver(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Debug("selection event decode failed", "tab_id", s.host.ID(), "error", err)
		return
	}
	select {
	case s.events <- ev:
	default:
		slog.Debug("selection event dropped", "tab_id", s.host.ID(), "type", ev.Type)
	}
}

func (s *session) run(ctx context.Context) {
	defer close(s.done)
	var pending *Event
	for {
		var ev Event
		if pending != nil {
			ev, pending = *pending, nil
		} else {
			select {
			case ev = <-s.events:
			case <-s.cancelCh:
				s.finish(ctx, nil)
				return
			}
		}
		if ev.Type == EventPointerMove {
			ev, pending = coalesceMoves(ev, s.events)
		}

		next, eff := Step(s.state, ev)
		s.state = next
		switch eff.Kind {
		case EffectRender:
			s.eval(ctx, renderBody(eff.Rect, eff.Label))
		case EffectComplete:
			sel := eff.Selection
			slog.Info("selection complete", "tab_id", s.host.ID(), "x", sel.X, "y", sel.Y, "width", sel.Width, "height", sel.Height)
			s.finish(ctx, &messages.Message{Kind: messages.KindSelectionComplete, TabID: s.host.ID(), Rect: &sel, Source: "selector"})
			return
		case EffectCancel:
			slog.Info("selection cancelled", "tab_id", s.host.ID())
			s.finish(ctx, &messages.Message{Kind: messages.KindSelectionCancelled, TabID: s.host.ID(), Source: "selector"})
			return
		}
	}
}

// finish removes the overlay before the outcome is posted, so the next
// viewport capture never contains it.
func (s *session) finish(ctx context.Context, outcome *messages.Message) {
	s.eval(ctx, teardownBody)
	s.state, _ = Step(s.state, Event{Type: EventTeardown})
	if s.unbind != nil {
		s.unbind()
	}
	s.launcher.remove(s.host.ID())
	if outcome != nil && s.launcher.poster != nil {
		s.launcher.poster.Post(ctx, *outcome)
	}
}

func (s *session) eval(ctx context.Context, body string) {
	ectx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()
	if err := s.host.Eval(ectx, body, nil); err != nil {
		slog.Warn("selection overlay eval failed", "tab_id", s.host.ID(), "error", err)
	}
}

// coalesceMoves folds queued pointer moves into the latest one. A queued
// event of another type is returned as pending.
func coalesceMoves(ev Event, ch <-chan Event) (Event, *Event) {
	for {
		select {
		case next := <-ch:
			if next.Type != EventPointerMove {
				return ev, &next
			}
			ev = next
		default:
			return ev, nil
		}
	}
}

func wrapEval(msg string, err error) error {
	if types.CodeOf(err) != "" {
		return err
	}
	return types.NewError(types.CodeEvalFailure, msg, err)
}
