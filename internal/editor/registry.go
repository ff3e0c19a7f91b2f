package editor

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dgnsrekt/pagesnap/internal/messages"
	"github.com/dgnsrekt/pagesnap/internal/snapshot"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Sender is the request side of the message router.
type Sender interface {
	Send(ctx context.Context, msg messages.Message) (messages.Response, error)
}

// Registry holds open editors keyed by id. Each editor owns its history
// exclusively.
type Registry struct {
	sender          Sender
	historyCapacity int
	exporter        Exporter

	mu      sync.RWMutex
	editors map[string]*Editor
}

func NewRegistry(sender Sender, historyCapacity int, exporter Exporter) *Registry {
	return &Registry{
		sender:          sender,
		historyCapacity: historyCapacity,
		exporter:        exporter,
		editors:         make(map[string]*Editor),
	}
}

// OpenEditor asks for the pending capture once and opens an editor on it.
func (r *Registry) OpenEditor(ctx context.Context) (string, error) {
	resp, err := r.sender.Send(ctx, messages.Message{Kind: messages.KindGetPendingCapture, Source: "editor"})
	if err != nil {
		return "", err
	}
	if len(resp.Image) == 0 {
		return "", types.NewError(types.CodeNoPendingCapture, "no pending capture", nil)
	}
	ed := New(uuid.NewString(), r.historyCapacity)
	if err := ed.Load(resp.Image); err != nil {
		slog.Warn("editor could not decode pending capture", "editor_id", ed.ID(), "bytes", len(resp.Image), "error", err)
		return "", err
	}
	ed.SetSource(resp.SourceURL, resp.Mode)

	r.mu.Lock()
	r.editors[ed.ID()] = ed
	r.mu.Unlock()
	info := ed.Info()
	slog.Info("editor opened", "editor_id", ed.ID(), "width", info.Width, "height", info.Height, "mode", info.Mode, "source_url", info.SourceURL)
	return ed.ID(), nil
}

func (r *Registry) Get(id string) (*Editor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ed, ok := r.editors[id]
	if !ok {
		return nil, types.NewError(types.CodeEditorNotFound, "editor not found: "+id, nil)
	}
	return ed, nil
}

// List returns every editor's info, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	eds := make([]*Editor, 0, len(r.editors))
	for _, ed := range r.editors {
		eds = append(eds, ed)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(eds))
	for _, ed := range eds {
		out = append(out, ed.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close discards an editor and its history.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.editors[id]; !ok {
		return types.NewError(types.CodeEditorNotFound, "editor not found: "+id, nil)
	}
	delete(r.editors, id)
	slog.Info("editor closed", "editor_id", id)
	return nil
}

func (r *Registry) Copy(id string) error {
	ed, err := r.Get(id)
	if err != nil {
		return err
	}
	return r.exporter.Copy(ed)
}

func (r *Registry) Download(id string) (snapshot.Meta, error) {
	ed, err := r.Get(id)
	if err != nil {
		return snapshot.Meta{}, err
	}
	return r.exporter.Download(ed)
}
