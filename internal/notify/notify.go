// Package notify keeps short-lived user-facing notifications. Every failure
// a capture or editor reports lands here and disappears after its TTL.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

const DefaultTTL = 4 * time.Second

// maxKept bounds the center when nobody reads it.
const maxKept = 64

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center holds notifications until they expire.
type Center struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items []Notification
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl, now: time.Now}
}

// Info posts an informational notification.
func (c *Center) Info(message string) Notification {
	return c.post(LevelInfo, "", message)
}

// Error posts err, keeping its code when it carries one. A nil err posts
// nothing.
func (c *Center) Error(op string, err error) (Notification, bool) {
	if err == nil {
		return Notification{}, false
	}
	msg := err.Error()
	if op != "" {
		msg = op + ": " + msg
	}
	return c.post(LevelError, types.CodeOf(err), msg), true
}

func (c *Center) post(level Level, code, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Code:      code,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.pruneLocked(now)
	c.items = append(c.items, n)
	if len(c.items) > maxKept {
		c.items = c.items[len(c.items)-maxKept:]
	}
	c.mu.Unlock()

	if level == LevelError {
		slog.Warn("notification", "code", code, "message", message)
	} else {
		slog.Info("notification", "message", message)
	}
	return n
}

// Active returns the notifications that have not expired, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	return append([]Notification(nil), c.items...)
}

// Dismiss removes a notification before it expires.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	clear(c.items[len(kept):])
	c.items = kept
}
