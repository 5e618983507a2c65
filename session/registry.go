package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/covwatch/idgen"
	"github.com/hazyhaar/covwatch/sourcestore"
)

// Registry maps tab IDs to their attached sessions.
type Registry struct {
	ctx    context.Context
	store  sourcestore.Store
	opts   Options
	newID  idgen.Generator
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(gen idgen.Generator) RegistryOption {
	return func(r *Registry) { r.newID = gen }
}

// WithOptions sets the coverage options every new session starts with.
func WithOptions(o Options) RegistryOption {
	return func(r *Registry) { r.opts = o }
}

// WithLogger sets the logger handed to sessions.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry. Sessions live at most as long as ctx.
func NewRegistry(ctx context.Context, store sourcestore.Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		ctx:      ctx,
		store:    store,
		opts:     DefaultOptions(),
		newID:    idgen.Session,
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Attach creates a session for tabID.
func (r *Registry) Attach(tabID string, t Target) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[tabID]; ok {
		return nil, fmt.Errorf("session: tab %s: %w", tabID, ErrAttached)
	}
	s := New(r.ctx, Config{
		ID:      r.newID(),
		TabID:   tabID,
		Target:  t,
		Store:   r.store,
		Options: r.opts,
		Logger:  r.logger,
	})
	r.sessions[tabID] = s
	r.logger.Info("session: attached", "tab", tabID, "session", s.ID)
	return s, nil
}

// Get returns the session attached to tabID.
func (r *Registry) Get(tabID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tabID]
	if !ok {
		return nil, fmt.Errorf("session: tab %s: %w", tabID, ErrNotAttached)
	}
	return s, nil
}

// Detach closes and forgets the session attached to tabID.
func (r *Registry) Detach(ctx context.Context, tabID string) error {
	r.mu.Lock()
	s, ok := r.sessions[tabID]
	delete(r.sessions, tabID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: tab %s: %w", tabID, ErrNotAttached)
	}
	return s.Close(ctx)
}

// Info describes an attached session.
type Info struct {
	TabID     string    `json:"tab_id"`
	SessionID string    `json:"session_id"`
	TargetURL string    `json:"target_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the attached sessions ordered by tab ID.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, Info{TabID: s.TabID, SessionID: s.ID, TargetURL: s.TargetScriptURL(), CreatedAt: s.CreatedAt})
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Info) int { return cmp.Compare(a.TabID, b.TabID) })
	return out
}

// Close detaches every session.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close(ctx))
	}
	return errors.Join(errs...)
}
