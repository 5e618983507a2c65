// Package browser starts or connects to Chrome and hands out tabs for
// covwatch sessions to attach to.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/covwatch/session"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty = launch a local Chrome.
	RemoteURL string

	// Bin is the Chrome binary to launch. Empty lets the launcher find or
	// download one.
	Bin string

	Headless bool

	// Stealth opens tabs with go-rod/stealth evasions applied.
	Stealth bool

	// ResourceBlocking lists resource types to fail (images, fonts, media,
	// stylesheets). Scripts are never blocked.
	ResourceBlocking []string

	Logger *slog.Logger
}

// Manager owns the browser connection.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool

	// routers holds the interception router of every prepared tab; a nil
	// entry marks a tab prepared with nothing to block.
	routers map[string]*rod.HijackRouter

	findPage func(*rod.Browser, proto.TargetTargetID) (*rod.Page, error)
	hijack   func(blocker, *rod.Page) (*rod.HijackRouter, error)
}

// NewManager creates a Manager. Call Start to launch or connect.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		routers:  make(map[string]*rod.HijackRouter),
		findPage: (*rod.Browser).PageFromTarget,
		hijack:   blocker.hijack,
	}
}

// Start launches Chrome, or connects to RemoteURL.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}

	log := m.cfg.Logger
	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx).Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		if m.cfg.Stealth {
			l = l.Set("disable-blink-features", "AutomationControlled")
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headless", m.cfg.Headless)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return nil
}

// Browser returns the current rod handle, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// TabInfo describes an open page.
type TabInfo struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Tabs lists the open pages.
func (m *Manager) Tabs() ([]TabInfo, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	out := make([]TabInfo, 0, len(pages))
	for _, p := range pages {
		ti := TabInfo{ID: string(p.TargetID)}
		if info, err := p.Info(); err == nil {
			ti.URL, ti.Title = info.URL, info.Title
		}
		out = append(out, ti)
	}
	return out, nil
}

// Attach resolves a page by DevTools target ID and applies resource
// blocking to it, plus the stealth script when configured. It implements
// control.Attacher.
func (m *Manager) Attach(_ context.Context, tabID string) (session.Target, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	page, err := m.findPage(b, proto.TargetTargetID(tabID))
	if err != nil {
		return nil, fmt.Errorf("browser: attach %s: %w", tabID, err)
	}
	if m.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			return nil, fmt.Errorf("browser: stealth %s: %w", tabID, err)
		}
	}
	if err := m.prepare(tabID, page); err != nil {
		return nil, err
	}
	return session.RodTarget{Page: page}, nil
}

// prepare starts request interception for tabID unless the tab already has
// it.
func (m *Manager) prepare(tabID string, page *rod.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routers[tabID]; ok {
		return nil
	}
	router, err := m.hijack(newBlocker(m.cfg.ResourceBlocking), page)
	if err != nil {
		return fmt.Errorf("browser: resource blocking %s: %w", tabID, err)
	}
	m.routers[tabID] = router
	return nil
}

// Release stops request interception on tabID. The next Attach prepares the
// tab again. It implements control.Releaser.
func (m *Manager) Release(tabID string) error {
	m.mu.Lock()
	router, ok := m.routers[tabID]
	delete(m.routers, tabID)
	m.mu.Unlock()
	if !ok || router == nil {
		return nil
	}
	return router.Stop()
}

// Close disconnects, and kills Chrome if this manager launched it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) cleanup() error {
	var err error
	for id, router := range m.routers {
		if router != nil {
			_ = router.Stop()
		}
		delete(m.routers, id)
	}
	if m.browser != nil {
		if m.lnch != nil {
			err = m.browser.Close()
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}
