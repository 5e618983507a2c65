package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/covwatch/session"
)

// NavigateTimeout bounds Tab.Navigate including the wait for the load event.
const NavigateTimeout = 60 * time.Second

// Tab is a page opened by the manager.
type Tab struct {
	Page *rod.Page
	ID   string

	m *Manager
}

// OpenTab creates a blank tab. Nothing is loaded yet, so a session can
// attach and start listening before the first script is parsed.
func (m *Manager) OpenTab(ctx context.Context) (*Tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	id := string(page.TargetID)
	if err := m.prepare(id, page); err != nil {
		page.Close()
		return nil, err
	}
	return &Tab{Page: page, ID: id, m: m}, nil
}

// Target returns the session view of the tab.
func (t *Tab) Target() session.Target {
	return session.RodTarget{Page: t.Page}
}

// Navigate loads url and waits for the load event. A load that does not
// finish in time is logged by the caller, not fatal: coverage of what did
// run is still worth taking.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, NavigateTimeout)
	defer cancel()

	p := t.Page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.m != nil {
		_ = t.m.Release(t.ID)
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
