// Package handoff holds the single pending capture passed from the capture
// orchestrator to the next editor that asks for it.
package handoff

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// Capture is one encoded image and where it came from.
type Capture struct {
	Image     []byte
	SourceURL string
	Mode      types.Mode
}

// Slot is a single-cell, take-once handoff. A Put overwrites any capture
// that was never taken.
type Slot struct {
	mu       sync.Mutex
	pending  Capture
	storedAt time.Time
}

// Put stores c as the pending capture.
func (s *Slot) Put(c Capture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Image != nil {
		slog.Debug("handoff overwriting unconsumed capture", "bytes", len(s.pending.Image), "mode", s.pending.Mode, "stored_at", s.storedAt)
	}
	s.pending = c
	s.storedAt = time.Now()
}

// TakeOnce returns the pending capture and clears the slot. The second call
// without an intervening Put reports false.
func (s *Slot) TakeOnce() (Capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.pending
	s.pending = Capture{}
	s.storedAt = time.Time{}
	return c, c.Image != nil
}

// Pending reports whether a capture is waiting.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Image != nil
}
