// Package cdpcontrol attaches to the user's running browser over the
// DevTools protocol and exposes its tabs as capture pages.
package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/pagesnap/internal/capture"
	"github.com/dgnsrekt/pagesnap/internal/types"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, closed session).
var transientHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"no session with given id",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
	"not connected",
}

type tabSession struct {
	info      types.TabInfo
	mu        sync.Mutex
	sessionID string // flat session from Target.attachToTarget
	runtimeOn bool
}

// Client tracks the browser's page targets and lazily attaches a session to
// each one it is asked to work on.
type Client struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu    sync.Mutex
	cdp   *rawCDP
	tabs  map[target.ID]*tabSession
	order []target.ID

	tabLocksMu sync.Mutex
	tabLocks   map[string]*sync.Mutex
}

func NewClient(cdpURL, tabFilter string, evalTimeout time.Duration) *Client {
	if evalTimeout <= 0 {
		evalTimeout = 10 * time.Second
	}
	return &Client{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
		tabs:        make(map[target.ID]*tabSession),
		tabLocks:    make(map[string]*sync.Mutex),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.cdpURL == "" {
		return types.NewError(types.CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("cdpcontrol connect start", "cdp_url", c.cdpURL)
	c.cleanupLocked()

	c.cdp = newRawCDP(c.cdpURL)
	if err := c.cdp.connect(ctx); err != nil {
		c.cdp = nil
		return types.NewError(types.CodeCDPUnavailable, "connect to CDP failed", err)
	}
	if err := c.syncTabsLocked(ctx); err != nil {
		slog.Error("cdpcontrol initial tab sync failed", "error", err)
		c.cleanupLocked()
		return types.NewError(types.CodeCDPUnavailable, "connect to CDP failed", err)
	}

	slog.Info("cdpcontrol connect ok", "cdp_url", c.cdpURL, "tabs", len(c.tabs))
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked()
	return nil
}

// cleanupLocked detaches every session without closing any tab.
func (c *Client) cleanupLocked() {
	if c.cdp != nil {
		for targetID, session := range c.tabs {
			if session == nil {
				continue
			}
			session.mu.Lock()
			if session.sessionID != "" {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := c.cdp.detachFromTarget(ctx, session.sessionID); err != nil {
					slog.Debug("cdpcontrol detach cleanup failed", "target_id", targetID, "error", err)
				}
				cancel()
				session.sessionID = ""
				session.runtimeOn = false
			}
			session.mu.Unlock()
		}
		c.cdp.close()
		c.cdp = nil
	}
	c.tabs = make(map[target.ID]*tabSession)
	c.order = nil
}

// ListTabs returns the browser's page tabs, most recently focused first.
func (c *Client) ListTabs(ctx context.Context) ([]types.TabInfo, error) {
	if err := c.refreshTabs(ctx); err != nil {
		slog.Warn("cdpcontrol list tabs failed", "error", err)
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.TabInfo, 0, len(c.order))
	for _, id := range c.order {
		if s := c.tabs[id]; s != nil {
			out = append(out, s.info)
		}
	}
	slog.Debug("cdpcontrol list tabs", "count", len(out))
	return out, nil
}

// ActiveTab returns the most recently focused page tab.
func (c *Client) ActiveTab(ctx context.Context) (types.TabInfo, error) {
	tabs, err := c.ListTabs(ctx)
	if err != nil {
		return types.TabInfo{}, err
	}
	if len(tabs) == 0 {
		return types.TabInfo{}, types.NewError(types.CodeTabNotFound, "no page tabs open", nil)
	}
	return tabs[0], nil
}

// ResolveTab returns the tab with the given target id, or the active tab
// when tabID is empty.
func (c *Client) ResolveTab(ctx context.Context, tabID string) (capture.Page, error) {
	return c.Tab(ctx, tabID)
}

// Tab is ResolveTab with the concrete type.
func (c *Client) Tab(ctx context.Context, tabID string) (*Tab, error) {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		info, err := c.ActiveTab(ctx)
		if err != nil {
			return nil, err
		}
		return &Tab{client: c, info: info}, nil
	}
	_, info, err := c.resolveTabSession(ctx, tabID)
	if err != nil {
		return nil, err
	}
	return &Tab{client: c, info: info}, nil
}

// ActivateTab brings a tab to the front.
func (c *Client) ActivateTab(ctx context.Context, tabID string) error {
	if _, _, err := c.resolveTabSession(ctx, tabID); err != nil {
		return err
	}
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return types.NewError(types.CodeCDPUnavailable, "CDP client not connected", nil)
	}
	if err := cdp.activateTarget(ctx, tabID); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "activate tab failed", err)
	}
	return nil
}

// sessionOp runs against an attached session of one tab.
type sessionOp func(ctx context.Context, cdp *rawCDP, session *tabSession, sessionID string) error

// onTab serializes work per tab and retries once after a transient failure,
// reconnecting or re-listing targets first. Captures are not retried.
func (c *Client) onTab(ctx context.Context, tabID, op string, fn sessionOp) error {
	tabID = strings.TrimSpace(tabID)
	if tabID == "" {
		return types.NewError(types.CodeTabNotFound, "tab id is required", nil)
	}

	lock := c.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	slog.Debug("cdpcontrol tab op", "tab_id", tabID, "op", op)
	err := c.runOnSession(ctx, tabID, fn)
	if err == nil || !c.shouldRetry(err) {
		return err
	}

	slog.Warn("cdpcontrol tab op retry after transient failure", "tab_id", tabID, "op", op, "error", err)
	if types.HasCode(err, types.CodeCDPUnavailable) {
		if recErr := c.reconnect(ctx); recErr != nil {
			slog.Error("cdpcontrol reconnect failed during retry", "tab_id", tabID, "error", recErr)
			return recErr
		}
	} else if syncErr := c.refreshTabs(ctx); syncErr != nil {
		slog.Warn("cdpcontrol tab refresh failed during retry", "tab_id", tabID, "error", syncErr)
	}
	if !resendable(op) {
		// The connection is repaired for the next request; the failed one
		// is reported as is.
		return err
	}
	return c.runOnSession(ctx, tabID, fn)
}

// opCapture names screenshot operations, which fail on the first transport
// error instead of being sent again.
const opCapture = "capture"

func resendable(op string) bool {
	return op != opCapture
}

func (c *Client) runOnSession(ctx context.Context, tabID string, fn sessionOp) error {
	session, _, err := c.resolveTabSession(ctx, tabID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	cdp := c.cdp
	c.mu.Unlock()
	if cdp == nil {
		return types.NewError(types.CodeCDPUnavailable, "CDP client not connected", nil)
	}
	sessionID, err := c.ensureSession(ctx, cdp, session, tabID)
	if err != nil {
		return err
	}
	if err := fn(ctx, cdp, session, sessionID); err != nil {
		if types.CodeOf(err) == types.CodeEvalFailure || types.CodeOf(err) == types.CodeEvalTimeout {
			// A fresh attach happens on retry.
			session.mu.Lock()
			if session.sessionID == sessionID {
				session.sessionID = ""
				session.runtimeOn = false
			}
			session.mu.Unlock()
		}
		return err
	}
	return nil
}

// evalOnTab evaluates a wrapped expression and decodes its envelope data into out.
func (c *Client) evalOnTab(ctx context.Context, tabID, js string, out any) error {
	return c.onTab(ctx, tabID, "eval", func(ctx context.Context, cdp *rawCDP, _ *tabSession, sessionID string) error {
		evalCtx, cancel := context.WithTimeout(ctx, c.evalTimeout)
		defer cancel()

		raw, err := cdp.evaluate(evalCtx, sessionID, js)
		if err != nil {
			slog.Warn("cdpcontrol eval failed", "tab_id", tabID, "error", err)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
				return types.NewError(types.CodeEvalTimeout, "evaluation timed out", err)
			}
			return types.NewError(types.CodeEvalFailure, "evaluation failed", err)
		}
		return decodeEnvelope(raw, out)
	})
}

func decodeEnvelope(raw json.RawMessage, out any) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.NewError(types.CodeEvalFailure, "evaluation did not return an envelope", err)
	}
	var env evalEnvelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return types.NewError(types.CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = types.CodeEvalFailure
		}
		return types.NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return types.NewError(types.CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

func (c *Client) ensureSession(ctx context.Context, cdp *rawCDP, session *tabSession, tabID string) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.sessionID != "" {
		return session.sessionID, nil
	}
	sid, err := cdp.attachToTarget(ctx, tabID)
	if err != nil {
		return "", types.NewError(types.CodeCDPUnavailable, "attach to target failed", err)
	}
	session.sessionID = sid
	session.runtimeOn = false
	slog.Debug("cdpcontrol session attached", "tab_id", tabID, "session_id", sid)
	return sid, nil
}

func (c *Client) resolveTabSession(ctx context.Context, tabID string) (*tabSession, types.TabInfo, error) {
	if session, info, ok := c.lookupTabSession(tabID); ok {
		return session, info, nil
	}
	if err := c.refreshTabs(ctx); err != nil {
		return nil, types.TabInfo{}, err
	}
	if session, info, ok := c.lookupTabSession(tabID); ok {
		return session, info, nil
	}
	return nil, types.TabInfo{}, types.NewError(types.CodeTabNotFound, "tab not found: "+tabID, nil)
}

func (c *Client) lookupTabSession(tabID string) (*tabSession, types.TabInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session := c.tabs[target.ID(tabID)]
	if session == nil {
		return nil, types.TabInfo{}, false
	}
	return session, session.info, true
}

func (c *Client) refreshTabs(ctx context.Context) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	err := c.syncTabsLocked(ctx)
	c.mu.Unlock()
	if err == nil {
		return nil
	}
	if types.CodeOf(err) != "" {
		return err
	}
	return types.NewError(types.CodeCDPUnavailable, "failed to list targets", err)
}

func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) syncTabsLocked(ctx context.Context) error {
	if c.cdp == nil {
		return types.NewError(types.CodeCDPUnavailable, "CDP client not connected", nil)
	}
	targets, err := c.cdp.listTargets(ctx)
	if err != nil {
		return types.NewError(types.CodeCDPUnavailable, "failed to list targets", err)
	}

	order := make([]target.ID, 0, len(targets))
	seen := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if c.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), c.tabFilter) {
			continue
		}
		info := types.TabInfo{
			TargetID:   string(t.TargetID),
			URL:        t.URL,
			Title:      t.Title,
			Restricted: types.IsRestrictedURL(t.URL),
		}
		if s := c.tabs[t.TargetID]; s != nil {
			s.info = info
		} else {
			c.tabs[t.TargetID] = &tabSession{info: info}
		}
		order = append(order, t.TargetID)
		seen[t.TargetID] = true
	}
	for id := range c.tabs {
		if !seen[id] {
			delete(c.tabs, id)
		}
	}
	c.order = order

	c.tabLocksMu.Lock()
	for id := range c.tabLocks {
		if !seen[target.ID(id)] {
			delete(c.tabLocks, id)
		}
	}
	c.tabLocksMu.Unlock()

	slog.Debug("cdpcontrol tab sync", "targets", len(targets), "tabs", len(order))
	return nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	connected := c.cdp != nil && c.cdp.connected()
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.reconnect(ctx)
}

func (c *Client) tabLock(tabID string) *sync.Mutex {
	c.tabLocksMu.Lock()
	defer c.tabLocksMu.Unlock()
	m, ok := c.tabLocks[tabID]
	if !ok {
		m = &sync.Mutex{}
		c.tabLocks[tabID] = m
	}
	return m
}

func (c *Client) shouldRetry(err error) bool {
	var coded *types.CodedError
	if !errors.As(err, &coded) {
		return false
	}
	switch coded.Code {
	case types.CodeCDPUnavailable:
		return true
	case types.CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}
