package winsys

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Browser queries window geometry of a browser-hosted chart over CDP. The
// overlay handle maps to the browser window id that owns the matched tab.
type Browser struct {
	cdpURL       string
	tabFilter    string
	queryTimeout time.Duration

	mu         sync.Mutex
	allocCtx   context.Context
	browserCtx context.Context
	cancels    []context.CancelFunc
}

// NewBrowser builds an unconnected CDP-backed Querier.
func NewBrowser(cdpURL, tabFilter string, queryTimeout time.Duration) *Browser {
	return &Browser{
		cdpURL:       cdpURL,
		tabFilter:    strings.ToLower(strings.TrimSpace(tabFilter)),
		queryTimeout: queryTimeout,
	}
}

// Connect attaches to the remote browser and verifies it answers.
func (b *Browser) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cdpURL == "" {
		return NewError(CodeBackendUnavailable, "missing CDP URL", nil)
	}

	slog.Info("winsys browser connect start", "cdp_url", b.cdpURL)
	b.cleanupLocked()

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), b.cdpURL)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)
	b.allocCtx = allocCtx
	b.browserCtx = browserCtx
	b.cancels = []context.CancelFunc{cancelCtx, cancelAlloc}

	probeCtx, cancel := context.WithTimeout(browserCtx, b.queryTimeout)
	defer cancel()
	if _, err := chromedp.Targets(probeCtx); err != nil {
		b.cleanupLocked()
		return NewError(CodeBackendUnavailable, "connect to CDP failed", err)
	}

	slog.Info("winsys browser connect ok", "cdp_url", b.cdpURL)
	return nil
}

// Close tears down the CDP connection. Idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanupLocked()
	return nil
}

func (b *Browser) cleanupLocked() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
	b.allocCtx = nil
	b.browserCtx = nil
}

// Resolve finds the browser window hosting the first tab whose URL contains
// the configured filter and returns its window id as an overlay handle.
func (b *Browser) Resolve(ctx context.Context) (Handle, error) {
	b.mu.Lock()
	browserCtx := b.browserCtx
	b.mu.Unlock()
	if browserCtx == nil {
		return 0, NewError(CodeBackendUnavailable, "not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(browserCtx, b.queryTimeout)
	defer cancel()

	targets, err := chromedp.Targets(queryCtx)
	if err != nil {
		return 0, NewError(CodeBackendUnavailable, "target list failed", err)
	}

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if b.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), b.tabFilter) {
			continue
		}
		var windowID browser.WindowID
		err := chromedp.Run(queryCtx, chromedp.ActionFunc(func(c context.Context) error {
			id, _, err := browser.GetWindowForTarget().WithTargetID(t.TargetID).Do(c)
			windowID = id
			return err
		}))
		if err != nil {
			slog.Debug("winsys browser window lookup failed", "target_id", t.TargetID, "error", err)
			continue
		}
		return Handle(windowID), nil
	}
	return 0, NewError(CodeInvalidHandle, "no matching browser tab", nil)
}

// State implements Querier using Browser.getWindowBounds.
func (b *Browser) State(h Handle) (TargetState, error) {
	if h == 0 {
		return TargetState{}, NewError(CodeInvalidHandle, "zero handle", nil)
	}

	b.mu.Lock()
	browserCtx := b.browserCtx
	b.mu.Unlock()
	if browserCtx == nil {
		return TargetState{}, NewError(CodeBackendUnavailable, "not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(browserCtx, b.queryTimeout)
	defer cancel()

	var bounds *browser.Bounds
	err := chromedp.Run(queryCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		bounds, err = browser.GetWindowBounds(browser.WindowID(h)).Do(c)
		return err
	}))
	if err != nil {
		return TargetState{}, NewError(CodeInvalidHandle, "window bounds query failed", err)
	}

	rect := Rect{
		X:      int(bounds.Left),
		Y:      int(bounds.Top),
		Width:  int(bounds.Width),
		Height: int(bounds.Height),
	}
	return TargetState{
		Rect:      rect,
		Visible:   bounds.WindowState != browser.WindowStateMinimized && !rect.Empty(),
		ChangedAt: time.Now(),
	}, nil
}
