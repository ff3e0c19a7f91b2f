// Package messages is the typed request/response channel between the
// capture orchestrator, the region selector and editors.
package messages

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Kind identifies a message type.
type Kind string

const (
	KindCaptureRequest     Kind = "CAPTURE_REQUEST"
	KindSelectionComplete  Kind = "SELECTION_COMPLETE"
	KindSelectionCancelled Kind = "SELECTION_CANCELLED"
	KindGetPendingCapture  Kind = "GET_PENDING_CAPTURE"
)

// Message is one request on the router. Only the fields relevant to Kind are set.
type Message struct {
	Kind   Kind                 `json:"type"`
	Mode   types.Mode           `json:"mode,omitempty"`
	TabID  string               `json:"tab_id,omitempty"`
	Rect   *types.SelectionRect `json:"rect,omitempty"`
	Source string               `json:"source,omitempty"`
}

// Response is the single reply to a Message.
type Response struct {
	Image     []byte     `json:"-"`
	SourceURL string     `json:"source_url,omitempty"`
	Mode      types.Mode `json:"mode,omitempty"`
	EditorID  string     `json:"editor_id,omitempty"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
}

// Handler answers one message kind.
type Handler func(ctx context.Context, msg Message) (Response, error)

// Router dispatches messages to the handler registered for their kind.
type Router struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[Kind]Handler)}
}

// Register installs h for kind, replacing any previous handler.
func (r *Router) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Send delivers msg and waits for its response.
func (r *Router) Send(ctx context.Context, msg Message) (Response, error) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Kind]
	r.mu.RUnlock()
	if !ok {
		return Response{}, types.NewError(types.CodeValidation, fmt.Sprintf("no handler for message %s", msg.Kind), nil)
	}
	slog.Debug("message send", "type", msg.Kind, "mode", msg.Mode, "source", msg.Source)
	return h(ctx, msg)
}

// Post delivers msg without waiting for the handler to finish.
func (r *Router) Post(ctx context.Context, msg Message) {
	go func() {
		if _, err := r.Send(context.WithoutCancel(ctx), msg); err != nil {
			slog.Warn("message post failed", "type", msg.Kind, "error", err)
		}
	}()
}
