package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/covwatch/annotate"
	"github.com/hazyhaar/covwatch/coverage"
	"github.com/hazyhaar/covwatch/idgen"
	"github.com/hazyhaar/covwatch/sourcestore"
)

// Options for Build.
type Options struct {
	// TargetURL keeps only scripts loaded from this URL. Empty keeps all.
	TargetURL string
	// Concurrency bounds the scripts processed at once. Default: GOMAXPROCS.
	Concurrency int
	SessionID   string
	// KeepRaw copies each script's raw function ranges into the report.
	KeepRaw bool
	NewID   idgen.Generator
	Logger  *slog.Logger
}

// Build aggregates and annotates every script of a snapshot. Scripts are
// processed independently: one that fails is marked in its Status and the
// others still render. The only error returned is ctx's.
func Build(ctx context.Context, scripts []coverage.ScriptCoverage, lookup sourcestore.LookupFunc, opts Options) (*Report, error) {
	if opts.NewID == nil {
		opts.NewID = idgen.Report
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}

	rep := &Report{
		ID:        opts.NewID(),
		SessionID: opts.SessionID,
		TargetURL: opts.TargetURL,
		CreatedAt: time.Now().UTC(),
		Scripts:   []Script{},
	}

	if len(scripts) == 0 {
		rep.Warnings = append(rep.Warnings, Warning{
			Code:    WarnEmptySnapshot,
			Message: "no coverage to print, try to perform some actions on the target tab",
		})
		return rep, nil
	}

	selected := scripts
	if opts.TargetURL != "" {
		selected = nil
		for _, s := range scripts {
			if s.URL == opts.TargetURL {
				selected = append(selected, s)
			}
		}
		if len(selected) == 0 {
			rep.Warnings = append(rep.Warnings, Warning{
				Code:    WarnNoTargetCoverage,
				Message: "no coverage for scripts from target url",
				URL:     opts.TargetURL,
			})
			return rep, nil
		}
	}

	results := make([]Script, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, sc := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = buildScript(gctx, sc, lookup, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	rep.Scripts = results
	for _, s := range results {
		if s.Status == StatusSourceUnavailable {
			rep.Warnings = append(rep.Warnings, Warning{
				Code:     WarnSourceUnavailable,
				Message:  s.Error,
				URL:      s.URL,
				ScriptID: s.ScriptID,
			})
		}
	}
	return rep, nil
}

func buildScript(ctx context.Context, sc coverage.ScriptCoverage, lookup sourcestore.LookupFunc, opts Options) Script {
	out := Script{ScriptID: sc.ScriptID, URL: sc.URL}
	if opts.KeepRaw {
		out.Functions = sc.Functions
	}
	log := opts.Logger.With("url", sc.URL, "script_id", sc.ScriptID)

	source, err := lookup(ctx, sc.URL, sc.ScriptID)
	if err != nil {
		out.Status = StatusSourceUnavailable
		if errors.Is(err, sourcestore.ErrNotFound) {
			out.Error = fmt.Sprintf("source for script %s not found", sc.ScriptID)
		} else {
			out.Error = err.Error()
		}
		log.Warn("report: source unavailable", "error", err)
		return out
	}

	segments, err := coverage.Aggregate(sc)
	switch {
	case errors.Is(err, coverage.ErrMalformedRange):
		out.Status = StatusMalformed
		out.Error = err.Error()
		log.Warn("report: malformed coverage", "error", err)
		return out
	case errors.Is(err, coverage.ErrInvariantViolation):
		out.Status = StatusInvariant
		out.Error = err.Error()
		log.Error("report: partition invariant violated", "error", err)
		return out
	case err != nil:
		out.Status = StatusMalformed
		out.Error = err.Error()
		return out
	}

	a := annotate.Annotate(source, segments)
	out.Status = StatusOK
	out.Segments = segments
	out.Summary = coverage.Summarize(segments)
	out.Annotated = &a
	return out
}
