package cdpcontrol

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/target"
)

func TestCleanupLockedLogsDetachFailure(t *testing.T) {
	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	session := &tabSession{sessionID: "session-1", runtimeOn: true}
	client := &Client{
		cdp:  newRawCDP("http://example.com"),
		tabs: map[target.ID]*tabSession{"target-1": session},
	}
	client.cleanupLocked()

	if !strings.Contains(buf.String(), "detach cleanup failed") {
		t.Fatalf("expected detach cleanup debug log, got %q", buf.String())
	}
	if session.sessionID != "" || session.runtimeOn {
		t.Fatalf("session not reset: %+v", session)
	}
	if client.cdp != nil || len(client.tabs) != 0 {
		t.Fatal("cleanupLocked() left client state behind")
	}
}
