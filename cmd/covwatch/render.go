package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/covwatch/coverage"
	"github.com/hazyhaar/covwatch/internal/config"
	"github.com/hazyhaar/covwatch/report"
	"github.com/hazyhaar/covwatch/sourcestore"
)

var (
	renderSources   string
	renderSession   string
	renderTargetURL string
	renderFormat    string
	renderOutput    string
	renderRaw       bool
)

var renderCmd = &cobra.Command{
	Use:   "render <coverage.json>",
	Short: "Annotate a saved coverage snapshot against sources kept in SQLite",
	Long: `render rebuilds a report offline. The snapshot is the JSON written by
"run --save-coverage" or a raw Profiler.takePreciseCoverage result; the
sources come from a SQLite store filled during the session that took it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderSources, "sources", "", "SQLite source store (default: sources.path from config)")
	renderCmd.Flags().StringVar(&renderSession, "session", "", "session whose sources to use (default: most recent)")
	renderCmd.Flags().StringVar(&renderTargetURL, "target-url", "", "report only the script loaded from this URL")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "text", "output format: text, json, html")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output file (default: stdout)")
	renderCmd.Flags().BoolVar(&renderRaw, "raw", false, "print the raw function ranges after each script")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path := renderSources
	if path == "" {
		path = cfg.Sources.Path
	}
	if path == "" {
		return errors.New("render: no source store, use --sources")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	scripts, err := coverage.DecodeSnapshot(f)
	f.Close()
	if err != nil {
		return err
	}

	store, err := openSQLite(path, cfg.Sources.Trace)
	if err != nil {
		return err
	}
	defer store.Close()

	sessionID := renderSession
	if sessionID == "" {
		ids, err := store.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return fmt.Errorf("render: %s holds no sources", path)
		}
		sessionID = ids[0]
	}

	sink := config.SinkConfig{Type: renderFormat, Path: renderOutput, Raw: renderRaw}
	switch sink.Type {
	case "text", "json", "html":
	default:
		return fmt.Errorf("render: format %q: want text, json or html", renderFormat)
	}
	sinks, err := openSinks([]config.SinkConfig{sink}, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	opts := report.Options{
		TargetURL:   renderTargetURL,
		Concurrency: cfg.Coverage.Concurrency,
		SessionID:   sessionID,
		KeepRaw:     renderRaw || cfg.Coverage.RawCoverage,
		Logger:      logger,
	}
	if opts.TargetURL == "" {
		opts.TargetURL = cfg.Coverage.TargetURL
	}
	rep, err := report.Build(ctx, scripts, sourcestore.Scoped(store, sessionID), opts)
	if err != nil {
		return err
	}
	logger.Debug("covwatch: rendered", "report", rep.ID, "session", sessionID, "scripts", len(rep.Scripts))
	return sinks.Send(ctx, rep)
}
