package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/covwatch/dbopen"
	"github.com/hazyhaar/covwatch/internal/browser"
	"github.com/hazyhaar/covwatch/internal/config"
	"github.com/hazyhaar/covwatch/report"
	"github.com/hazyhaar/covwatch/session"
	"github.com/hazyhaar/covwatch/sourcestore"
	"github.com/hazyhaar/covwatch/sqltrace"
)

func openStore(c config.SourcesConfig) (sourcestore.Store, error) {
	switch c.Driver {
	case "sqlite":
		return openSQLite(c.Path, c.Trace)
	default:
		return sourcestore.NewMemory(c.Capacity), nil
	}
}

func openSQLite(path string, trace bool) (*sourcestore.SQLite, error) {
	if !trace {
		return sourcestore.OpenSQLite(path)
	}
	sqltrace.SetLogger(logger.With("component", "sql"))
	return sourcestore.OpenSQLite(path, dbopen.WithDriver(sqltrace.DriverName))
}

// sinkSet is the configured report outputs plus the files they write to.
type sinkSet struct {
	*report.Router
	files []*os.File
}

func (s *sinkSet) Close() error {
	errs := []error{s.Router.Close()}
	for _, f := range s.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// openSinks builds one report sink per config entry. Entries without a path
// write to out; text written to a file is never colored.
func openSinks(entries []config.SinkConfig, out io.Writer, logger *slog.Logger) (*sinkSet, error) {
	set := &sinkSet{Router: report.NewRouter(logger)}
	for i, e := range entries {
		w := out
		if e.Path != "" && e.Type != "webhook" {
			f, err := os.Create(e.Path)
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("sinks[%d]: %w", i, err)
			}
			set.files = append(set.files, f)
			w = f
		}

		switch e.Type {
		case "text":
			var opts []report.TextOption
			if e.Raw || cfg.Coverage.RawCoverage {
				opts = append(opts, report.WithRawCoverage())
			}
			if e.Path != "" {
				opts = append(opts, report.WithoutColor())
			}
			set.Add(report.NewText(w, opts...))
		case "json":
			set.Add(report.NewJSON(w))
		case "html":
			set.Add(report.NewHTML(w))
		case "webhook":
			set.Add(report.NewWebhook(e.URL, report.WithWebhookLogger(logger)))
		}
	}
	return set, nil
}

func browserConfig(c config.BrowserConfig, logger *slog.Logger) browser.Config {
	return browser.Config{
		RemoteURL:        c.Remote,
		Bin:              c.Bin,
		Headless:         c.Headless == nil || *c.Headless,
		Stealth:          c.Stealth,
		ResourceBlocking: c.ResourceBlocking,
		Logger:           logger,
	}
}

func sessionOptions(c config.CoverageConfig) session.Options {
	return session.Options{
		CallCount: c.CallCount,
		Detailed:  c.Detailed == nil || *c.Detailed,
	}
}

// reportOptions keeps raw ranges when any text sink dumps them.
func reportOptions(c *config.Config, logger *slog.Logger) report.Options {
	keep := c.Coverage.RawCoverage
	for _, s := range c.Sinks {
		keep = keep || s.Raw
	}
	return report.Options{
		TargetURL:   c.Coverage.TargetURL,
		Concurrency: c.Coverage.Concurrency,
		KeepRaw:     keep,
		Logger:      logger,
	}
}
