package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/cryarchy/fiverr-tools/utils"
)

// SessionOptions configures how a Session talks to the remote browser.
type SessionOptions struct {
	// TabMatch selects the tab to drive by URL substring.
	TabMatch string
	// HomeURL is loaded when no tab matches TabMatch.
	HomeURL string

	CallTimeout       time.Duration
	WaitTimeout       time.Duration
	NavigationTimeout time.Duration
}

// Session is an attachment to an already running browser through its remote
// debugging endpoint. It owns exactly one Tab.
type Session struct {
	opts   SessionOptions
	logger *utils.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelTab     context.CancelFunc
	tab           *Tab
}

// Connect attaches to the browser at wsURL and picks the tab whose URL
// contains opts.TabMatch.
func Connect(ctx context.Context, wsURL string, opts SessionOptions, logger *utils.Logger) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), wsURL)

	s := &Session{
		opts:        opts,
		logger:      logger.Named("browser"),
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}
	if err := s.attach(ctx); err != nil {
		cancelAlloc()
		return nil, err
	}
	return s, nil
}

// Tab returns the tab driven by this session. The same *Tab stays valid
// across Reconnect.
func (s *Session) Tab() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Reconnect re-picks the tab by URL match after the previous target was lost.
func (s *Session) Reconnect(ctx context.Context) error {
	s.logger.Warn("[browser] Reconnecting to tab matching %q", s.opts.TabMatch)
	return s.attach(ctx)
}

// Ping evaluates a no-op expression to keep the remote connection alive.
func (s *Session) Ping(ctx context.Context) error {
	return s.Tab().Evaluate(ctx, "1", nil)
}

// Close detaches from the browser. The remote browser keeps running.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelTab != nil {
		s.cancelTab()
	}
	if s.cancelBrowser != nil {
		s.cancelBrowser()
	}
	s.cancelAlloc()
}

func (s *Session) attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil || s.browserCtx.Err() != nil {
		browserCtx, cancel := chromedp.NewContext(s.allocCtx,
			chromedp.WithLogf(func(string, ...interface{}) {}),
			chromedp.WithErrorf(func(format string, args ...interface{}) {
				s.logger.Debug("[browser] cdp: "+format, args...)
			}),
		)
		if err := chromedp.Run(browserCtx); err != nil {
			cancel()
			return fmt.Errorf("browser: connect: %w", err)
		}
		s.browserCtx, s.cancelBrowser = browserCtx, cancel
	}

	targets, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		return fmt.Errorf("browser: list targets: %w", err)
	}

	if s.cancelTab != nil {
		s.cancelTab()
		s.cancelTab = nil
	}

	tabCtx := s.browserCtx
	id := pickTarget(targets, s.opts.TabMatch)
	if id != "" {
		attached, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(id))
		if err := chromedp.Run(attached); err != nil {
			cancel()
			return fmt.Errorf("browser: attach to %s: %w", id, err)
		}
		tabCtx, s.cancelTab = attached, cancel
		s.logger.Info("[browser] Attached to tab %s", id)
	}

	driver := &chromeDriver{
		ctx:         tabCtx,
		callTimeout: s.opts.CallTimeout,
		navTimeout:  s.opts.NavigationTimeout,
	}
	if s.tab == nil {
		s.tab = NewTab(driver, s.opts.WaitTimeout)
	} else {
		s.tab.swap(driver)
	}

	if id == "" {
		s.logger.Warn("[browser] No tab matches %q, opening %s", s.opts.TabMatch, s.opts.HomeURL)
		if err := s.tab.NavigateTo(ctx, s.opts.HomeURL); err != nil {
			return fmt.Errorf("browser: open home: %w", err)
		}
	}
	return nil
}

func pickTarget(targets []*target.Info, match string) target.ID {
	for _, t := range targets {
		if t.Type == "page" && strings.Contains(t.URL, match) {
			return t.TargetID
		}
	}
	return ""
}
