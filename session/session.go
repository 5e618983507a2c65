package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/covwatch/coverage"
	"github.com/hazyhaar/covwatch/sourcestore"
)

// Options tunes Profiler.startPreciseCoverage.
type Options struct {
	CallCount bool
	Detailed  bool
}

// DefaultOptions collects block coverage without call counts.
func DefaultOptions() Options {
	return Options{Detailed: true}
}

// Session is the state of one attached tab. It is created by
// Registry.Attach and ends with Close.
type Session struct {
	ID        string
	TabID     string
	CreatedAt time.Time

	target Target
	store  sourcestore.Store
	opts   Options
	logger *slog.Logger

	// ctx outlives individual calls; the listener runs under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listened  bool
	stop      context.CancelFunc
	done      chan struct{}
	targetURL string
	closed    bool
}

// Config for creating a Session.
type Config struct {
	ID      string
	TabID   string
	Target  Target
	Store   sourcestore.Store
	Options Options
	Logger  *slog.Logger
}

// New creates a session. parent bounds the lifetime of its listener.
func New(parent context.Context, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:        cfg.ID,
		TabID:     cfg.TabID,
		CreatedAt: time.Now(),
		target:    cfg.Target,
		store:     cfg.Store,
		opts:      cfg.Options,
		logger:    cfg.Logger.With("session", cfg.ID, "tab", cfg.TabID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Session) client(ctx context.Context) proto.Client {
	return s.target.Client(ctx)
}

func (s *Session) EnableNetwork(ctx context.Context) error {
	if err := (proto.NetworkEnable{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Network.enable: %w", err)
	}
	return nil
}

func (s *Session) DisableNetwork(ctx context.Context) error {
	if err := (proto.NetworkDisable{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Network.disable: %w", err)
	}
	return nil
}

// SetCacheDisabled turns the browser cache off so every script is fetched
// and parsed again on reload.
func (s *Session) SetCacheDisabled(ctx context.Context) error {
	if err := (proto.NetworkSetCacheDisabled{CacheDisabled: true}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Network.setCacheDisabled: %w", err)
	}
	return nil
}

func (s *Session) EnableDebugger(ctx context.Context) error {
	if _, err := (proto.DebuggerEnable{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Debugger.enable: %w", err)
	}
	return nil
}

func (s *Session) DisableDebugger(ctx context.Context) error {
	if err := (proto.DebuggerDisable{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Debugger.disable: %w", err)
	}
	return nil
}

func (s *Session) EnableProfiler(ctx context.Context) error {
	if err := (proto.ProfilerEnable{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Profiler.enable: %w", err)
	}
	return nil
}

func (s *Session) DisableProfiler(ctx context.Context) error {
	if err := (proto.ProfilerDisable{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Profiler.disable: %w", err)
	}
	return nil
}

func (s *Session) StartPreciseCoverage(ctx context.Context) error {
	req := proto.ProfilerStartPreciseCoverage{CallCount: s.opts.CallCount, Detailed: s.opts.Detailed}
	if _, err := req.Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Profiler.startPreciseCoverage: %w", err)
	}
	return nil
}

func (s *Session) StopPreciseCoverage(ctx context.Context) error {
	if err := (proto.ProfilerStopPreciseCoverage{}).Call(s.client(ctx)); err != nil {
		return fmt.Errorf("session: Profiler.stopPreciseCoverage: %w", err)
	}
	return nil
}

// Navigate loads url in the attached tab. It returns once the navigation
// is committed; scripts keep arriving through the listener afterwards.
func (s *Session) Navigate(ctx context.Context, url string) error {
	res, err := (proto.PageNavigate{URL: url}).Call(s.client(ctx))
	if err != nil {
		return fmt.Errorf("session: Page.navigate: %w", err)
	}
	if res.ErrorText != "" {
		return fmt.Errorf("session: Page.navigate %s: %s", url, res.ErrorText)
	}
	return nil
}

// TakePreciseCoverage returns the coverage collected since the last take.
func (s *Session) TakePreciseCoverage(ctx context.Context) ([]coverage.ScriptCoverage, error) {
	res, err := (proto.ProfilerTakePreciseCoverage{}).Call(s.client(ctx))
	if err != nil {
		return nil, fmt.Errorf("session: Profiler.takePreciseCoverage: %w", err)
	}
	return fromProto(res.Result), nil
}

func fromProto(in []*proto.ProfilerScriptCoverage) []coverage.ScriptCoverage {
	out := make([]coverage.ScriptCoverage, 0, len(in))
	for _, sc := range in {
		script := coverage.ScriptCoverage{
			ScriptID:  string(sc.ScriptID),
			URL:       sc.URL,
			Functions: make([]coverage.FunctionCoverage, 0, len(sc.Functions)),
		}
		for _, fn := range sc.Functions {
			f := coverage.FunctionCoverage{
				FunctionName:    fn.FunctionName,
				IsBlockCoverage: fn.IsBlockCoverage,
				Ranges:          make([]coverage.Range, 0, len(fn.Ranges)),
			}
			for _, r := range fn.Ranges {
				f.Ranges = append(f.Ranges, coverage.Range{StartOffset: r.StartOffset, EndOffset: r.EndOffset, Count: r.Count})
			}
			script.Functions = append(script.Functions, f)
		}
		out = append(out, script)
	}
	return out
}

// AddScriptParsedListener starts storing the source of every script the
// tab parses. Scripts without a URL are skipped. A main-frame navigation
// clears what was stored so far.
func (s *Session) AddScriptParsedListener(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.stop != nil {
		return ErrListenerActive
	}

	ctx, stop := context.WithCancel(s.ctx)
	events := s.target.Events(ctx)
	done := make(chan struct{})
	s.stop, s.done, s.listened = stop, done, true

	go func() {
		defer close(done)
		s.listen(ctx, events)
	}()
	s.logger.Debug("session: script parsed listener added")
	return nil
}

// RemoveScriptParsedListener stops the listener. Sources stored so far are kept.
func (s *Session) RemoveScriptParsedListener(context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return fmt.Errorf("session: tab %s has no listener: %w", s.TabID, ErrNoListener)
	}
	stop()
	<-done
	s.logger.Debug("session: script parsed listener removed")
	return nil
}

func (s *Session) listen(ctx context.Context, events <-chan Event) {
	for ev := range events {
		switch {
		case ev.Navigated:
			if err := s.store.Clear(ctx, s.ID); err != nil {
				s.logger.Warn("session: clear sources on navigation", "error", err)
				continue
			}
			s.logger.Debug("session: navigation, sources cleared")

		case ev.ScriptParsed != nil:
			s.storeScript(ctx, ev.ScriptParsed)
		}
	}
}

func (s *Session) storeScript(ctx context.Context, e *proto.DebuggerScriptParsed) {
	if e.URL == "" {
		return
	}
	res, err := (proto.DebuggerGetScriptSource{ScriptID: e.ScriptID}).Call(s.client(ctx))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("session: get script source", "url", e.URL, "script_id", e.ScriptID, "error", err)
		}
		return
	}
	err = s.store.Put(ctx, sourcestore.Source{
		SessionID: s.ID,
		URL:       e.URL,
		ScriptID:  string(e.ScriptID),
		Text:      res.ScriptSource,
		ParsedAt:  time.Now(),
	})
	if err != nil {
		s.logger.Warn("session: store script source", "url", e.URL, "error", err)
		return
	}
	s.logger.Debug("session: script parsed", "url", e.URL, "script_id", e.ScriptID)
}

// ParsedScriptURLs lists the URLs of the scripts stored for this session.
func (s *Session) ParsedScriptURLs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	listened := s.listened
	s.mu.Unlock()
	if !listened {
		return nil, ErrNoListener
	}

	urls, err := s.store.URLs(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("session: tab %s: %w", s.TabID, ErrNoScripts)
	}
	return urls, nil
}

// SetTargetScriptURL restricts reports to scripts loaded from url. An empty
// url selects every script.
func (s *Session) SetTargetScriptURL(url string) {
	s.mu.Lock()
	s.targetURL = url
	s.mu.Unlock()
}

func (s *Session) TargetScriptURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetURL
}

// Lookup returns the session's view of the source store.
func (s *Session) Lookup() sourcestore.LookupFunc {
	return sourcestore.Scoped(s.store, s.ID)
}

// Close stops the listener and drops the session's stored sources.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	done := s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	s.cancel()
	if done != nil {
		<-done
	}
	if err := s.store.Clear(ctx, s.ID); err != nil {
		return fmt.Errorf("session: clear sources: %w", err)
	}
	s.logger.Info("session: closed")
	return nil
}
