// Package control exposes covwatch sessions to remote drivers: a named
// action dispatcher, served over HTTP (with a WebSocket report stream) and
// as MCP tools.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/covwatch/guard"
	"github.com/hazyhaar/covwatch/kit"
	"github.com/hazyhaar/covwatch/report"
	"github.com/hazyhaar/covwatch/session"
)

// Action names accepted by Dispatch.
const (
	ActionAttachDevTools             = "attachDevTools"
	ActionDetachDevTools             = "detachDevTools"
	ActionEnableNetwork              = "enableNetwork"
	ActionSetCacheDisabled           = "setCacheDisabled"
	ActionDisableNetwork             = "disableNetwork"
	ActionAddScriptParsedListener    = "addScriptParsedListener"
	ActionRemoveScriptParsedListener = "removeScriptParsedListener"
	ActionEnableDebugger             = "enableDebugger"
	ActionDisableDebugger            = "disableDebugger"
	ActionGetParsedScriptsURLs       = "getParsedScriptsUrls"
	ActionSetTargetScriptURL         = "setTargetScriptUrl"
	ActionNavigate                   = "navigate"
	ActionEnableProfiler             = "enableProfiler"
	ActionStartPreciseCoverage       = "startPreciseCoverage"
	ActionTakePreciseCoverage        = "takePreciseCoverage"
	ActionStopPreciseCoverage        = "stopPreciseCoverage"
	ActionDisableProfiler            = "disableProfiler"
)

// Actions lists every action name in the order a full coverage run uses them.
var Actions = []string{
	ActionAttachDevTools,
	ActionEnableNetwork,
	ActionSetCacheDisabled,
	ActionAddScriptParsedListener,
	ActionEnableDebugger,
	ActionEnableProfiler,
	ActionStartPreciseCoverage,
	ActionSetTargetScriptURL,
	ActionNavigate,
	ActionGetParsedScriptsURLs,
	ActionTakePreciseCoverage,
	ActionStopPreciseCoverage,
	ActionDisableProfiler,
	ActionRemoveScriptParsedListener,
	ActionDisableDebugger,
	ActionDisableNetwork,
	ActionDetachDevTools,
}

var (
	ErrUnknownAction = errors.New("control: unknown action")
	ErrBadPayload    = errors.New("control: bad payload")
	ErrNoReport      = errors.New("control: no report taken for tab")
)

// Attacher resolves a tab ID to a drivable target.
type Attacher interface {
	Attach(ctx context.Context, tabID string) (session.Target, error)
}

// Releaser is implemented by attachers that hold per-tab resources from
// Attach until the tab is detached.
type Releaser interface {
	Release(tabID string) error
}

// Request is one action for one tab.
type Request struct {
	Action  string          `json:"action"`
	TabID   string          `json:"tab_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is returned for every successful action. Data depends on the
// action: session info, a URL list, a report, or nothing.
type Result struct {
	Action string `json:"action"`
	TabID  string `json:"tab_id"`
	Data   any    `json:"data,omitempty"`
}

// Config for creating a Dispatcher.
type Config struct {
	Registry *session.Registry
	Attacher Attacher
	// Sink receives every report built by takePreciseCoverage. May be nil.
	Sink report.Sink
	// Report carries Concurrency and KeepRaw; TargetURL and SessionID are
	// filled in per session.
	Report report.Options
	Logger *slog.Logger
}

// Dispatcher runs named actions against the session registry.
type Dispatcher struct {
	registry *session.Registry
	attacher Attacher
	sink     report.Sink
	reportOp report.Options
	logger   *slog.Logger

	mu        sync.RWMutex
	last      map[string]*report.Report
	attaching map[string]bool
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = report.NewCallback(nil)
	}
	cfg.Report.Logger = cfg.Logger
	return &Dispatcher{
		registry: cfg.Registry,
		attacher: cfg.Attacher,
		sink:     cfg.Sink,
		reportOp: cfg.Report,
		logger:   cfg.Logger,
		last:      make(map[string]*report.Report),
		attaching: make(map[string]bool),
	}
}

// Dispatch runs one action.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	ctx = kit.WithTabID(ctx, req.TabID)
	data, err := d.dispatch(ctx, req)
	if err != nil {
		d.logger.Warn("control: action failed", "action", req.Action, "tab", req.TabID,
			"transport", kit.GetTransport(ctx), "trace_id", kit.GetTraceID(ctx), "error", err)
		return nil, err
	}
	d.logger.Info("control: action done", "action", req.Action, "tab", req.TabID, "transport", kit.GetTransport(ctx))
	return &Result{Action: req.Action, TabID: req.TabID, Data: data}, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (any, error) {
	if err := guard.CheckIdentifier(req.TabID); err != nil {
		return nil, fmt.Errorf("%w: tab: %w", ErrBadPayload, err)
	}
	switch req.Action {
	case ActionAttachDevTools:
		return d.attach(ctx, req.TabID)
	case ActionDetachDevTools:
		return nil, d.detach(ctx, req.TabID)
	}

	var op func(context.Context, *session.Session) (any, error)
	switch req.Action {
	case ActionEnableNetwork:
		op = noData((*session.Session).EnableNetwork)
	case ActionSetCacheDisabled:
		op = noData((*session.Session).SetCacheDisabled)
	case ActionDisableNetwork:
		op = noData((*session.Session).DisableNetwork)
	case ActionAddScriptParsedListener:
		op = noData((*session.Session).AddScriptParsedListener)
	case ActionRemoveScriptParsedListener:
		op = noData((*session.Session).RemoveScriptParsedListener)
	case ActionEnableDebugger:
		op = noData((*session.Session).EnableDebugger)
	case ActionDisableDebugger:
		op = noData((*session.Session).DisableDebugger)
	case ActionEnableProfiler:
		op = noData((*session.Session).EnableProfiler)
	case ActionStartPreciseCoverage:
		op = noData((*session.Session).StartPreciseCoverage)
	case ActionStopPreciseCoverage:
		op = noData((*session.Session).StopPreciseCoverage)
	case ActionDisableProfiler:
		op = noData((*session.Session).DisableProfiler)
	case ActionGetParsedScriptsURLs:
		op = func(ctx context.Context, s *session.Session) (any, error) {
			return s.ParsedScriptURLs(ctx)
		}
	case ActionSetTargetScriptURL:
		url, err := decodeURL(req.Payload)
		if err != nil {
			return nil, err
		}
		op = func(_ context.Context, s *session.Session) (any, error) {
			s.SetTargetScriptURL(url)
			return nil, nil
		}
	case ActionNavigate:
		url, err := decodeURL(req.Payload)
		if err != nil {
			return nil, err
		}
		if url == "" {
			return nil, fmt.Errorf("%w: navigate needs a url", ErrBadPayload)
		}
		if err := guard.CheckURL(url, guard.Navigable); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
		op = func(ctx context.Context, s *session.Session) (any, error) {
			return nil, s.Navigate(ctx, url)
		}
	case ActionTakePreciseCoverage:
		op = func(ctx context.Context, s *session.Session) (any, error) {
			return d.takeCoverage(ctx, s)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}

	sess, err := d.registry.Get(req.TabID)
	if err != nil {
		return nil, err
	}
	return op(ctx, sess)
}

func noData(fn func(*session.Session, context.Context) error) func(context.Context, *session.Session) (any, error) {
	return func(ctx context.Context, s *session.Session) (any, error) {
		return nil, fn(s, ctx)
	}
}

func (d *Dispatcher) attach(ctx context.Context, tabID string) (any, error) {
	if d.attacher == nil {
		return nil, errors.New("control: no browser to attach to")
	}

	d.mu.Lock()
	_, err := d.registry.Get(tabID)
	if err == nil || d.attaching[tabID] {
		d.mu.Unlock()
		return nil, fmt.Errorf("session: tab %s: %w", tabID, session.ErrAttached)
	}
	d.attaching[tabID] = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.attaching, tabID)
		d.mu.Unlock()
	}()

	target, err := d.attacher.Attach(ctx, tabID)
	if err != nil {
		return nil, fmt.Errorf("control: attach %s: %w", tabID, err)
	}
	s, err := d.registry.Attach(tabID, target)
	if err != nil {
		d.release(tabID)
		return nil, err
	}
	return session.Info{TabID: s.TabID, SessionID: s.ID, CreatedAt: s.CreatedAt}, nil
}

// detach closes the tab's session. The latest report is dropped only once
// the session closed cleanly; a failed close keeps it readable.
func (d *Dispatcher) detach(ctx context.Context, tabID string) error {
	err := d.registry.Detach(ctx, tabID)
	if errors.Is(err, session.ErrNotAttached) {
		return err
	}
	d.release(tabID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.last, tabID)
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) release(tabID string) {
	r, ok := d.attacher.(Releaser)
	if !ok {
		return
	}
	if err := r.Release(tabID); err != nil {
		d.logger.Warn("control: release tab", "tab", tabID, "error", err)
	}
}

// takeCoverage builds the report, hands it to the sink and keeps it as the
// tab's latest report. A sink failure is logged, not returned.
func (d *Dispatcher) takeCoverage(ctx context.Context, s *session.Session) (*report.Report, error) {
	scripts, err := s.TakePreciseCoverage(ctx)
	if err != nil {
		return nil, err
	}
	opts := d.reportOp
	opts.TargetURL = s.TargetScriptURL()
	opts.SessionID = s.ID
	rep, err := report.Build(ctx, scripts, s.Lookup(), opts)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.last[s.TabID] = rep
	d.mu.Unlock()

	if err := d.sink.Send(ctx, rep); err != nil {
		d.logger.Warn("control: deliver report", "report", rep.ID, "error", err)
	}
	return rep, nil
}

// decodeURL accepts a JSON string or {"url": "..."}. An absent payload
// clears the target.
func decodeURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: want a URL string or {\"url\": ...}", ErrBadPayload)
	}
	return obj.URL, nil
}

// LastReport returns the latest report taken for tabID.
func (d *Dispatcher) LastReport(tabID string) (*report.Report, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rep, ok := d.last[tabID]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoReport, tabID)
	}
	return rep, nil
}

// Tabs lists the attached sessions.
func (d *Dispatcher) Tabs() []session.Info { return d.registry.List() }

// Endpoint adapts Dispatch to a kit.Endpoint taking a *Request.
func (d *Dispatcher) Endpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r, ok := req.(*Request)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected request %T", ErrBadPayload, req)
		}
		return d.Dispatch(ctx, *r)
	}
}
