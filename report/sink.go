package report

import (
	"context"
	"log/slog"
)

// Sink delivers finished reports to an output backend.
type Sink interface {
	Send(ctx context.Context, rep *Report) error
	Close() error
}

// Router fans a report out to every sink. A failing sink does not stop the
// others: failures are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add registers another sink. Not safe to call concurrently with Send.
func (r *Router) Add(s Sink) { r.sinks = append(r.sinks, s) }

func (r *Router) Send(ctx context.Context, rep *Report) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, rep); err != nil {
			r.logger.Warn("report: sink send failed", "report", rep.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Func is called with every report, in process.
type Func func(ctx context.Context, rep *Report) error

// Callback delivers reports through a Go function call.
type Callback struct {
	fn Func
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn Func) *Callback { return &Callback{fn: fn} }

func (c *Callback) Send(ctx context.Context, rep *Report) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, rep)
}

func (c *Callback) Close() error { return nil }
