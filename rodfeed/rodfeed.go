// Package rodfeed binds the engine to a live browser page via Rod. It
// implements both sides of the engine's host contract: the Source (DOM
// snapshots with viewport stamping) and the Surface (trigger affordances and
// translation renderings injected into the page).
//
// The feed tree is never mutated structurally beyond additive affordance
// nodes; message identity is anchored with a data-lingo-mark attribute the
// snapshot script stamps once per message container.
package rodfeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/lingo/feed"
)

// Config configures a browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an already-running Chrome. Empty =
	// launch a local Chrome via launcher.
	RemoteURL string

	// PageURL is the chat application to navigate to after attach.
	PageURL string

	// Headless launches Chrome headless. Ignored when RemoteURL is set.
	Headless bool

	// NavigateTimeout bounds the initial navigation. Default: 30s.
	NavigateTimeout time.Duration

	// Selectors drive snapshot stamping and discovery. Zero value = feed
	// defaults.
	Selectors feed.Selectors

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one attached browser page. It is safe for concurrent use by the
// scheduler and manual triggers.
type Session struct {
	cfg    Config
	logger *slog.Logger

	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page

	// marks maps resolved message IDs to the page-side data-lingo-mark
	// values, refreshed on every snapshot. Surface operations address nodes
	// through marks so fallback IDs stay locatable.
	mu    sync.Mutex
	marks map[string]string
}

// Open launches (or attaches to) Chrome, applies stealth, and navigates to
// the configured page. Close must be called when done.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	s := &Session{cfg: cfg, logger: cfg.Logger, marks: make(map[string]string)}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodfeed: launch: %w", err)
		}
		s.lnch = l
		wsURL = u
		s.logger.Info("rodfeed: launched local chrome", "headless", cfg.Headless)
	} else {
		s.logger.Info("rodfeed: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("rodfeed: connect: %w", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("rodfeed: create page: %w", err)
	}
	s.page = page

	if cfg.PageURL != "" {
		navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
		defer cancel()
		if err := page.Context(navCtx).Navigate(cfg.PageURL); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("rodfeed: navigate %s: %w", cfg.PageURL, err)
		}
		if err := page.Context(navCtx).WaitLoad(); err != nil {
			s.logger.Warn("rodfeed: wait load timeout", "url", cfg.PageURL, "error", err)
		}
	}

	return s, nil
}

// Close shuts down the page and, when launched locally, Chrome itself.
func (s *Session) Close() error {
	return s.cleanup()
}

func (s *Session) cleanup() error {
	if s.page != nil {
		s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return nil
}

// setMarks replaces the ID→mark table after a snapshot.
func (s *Session) setMarks(m map[string]string) {
	s.mu.Lock()
	s.marks = m
	s.mu.Unlock()
}

// mark resolves a message ID to its current page-side mark.
func (s *Session) mark(messageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.marks[messageID]
	return m, ok
}
