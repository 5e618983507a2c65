package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/covwatch/coverage"
	"github.com/hazyhaar/covwatch/internal/browser"
	"github.com/hazyhaar/covwatch/report"
	"github.com/hazyhaar/covwatch/session"
)

var (
	runTargetURL    string
	runSettle       time.Duration
	runRaw          bool
	runSaveCoverage string
)

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Load a page in a fresh tab and report the coverage of its scripts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTargetURL, "target-url", "", "report only the script loaded from this URL")
	runCmd.Flags().DurationVar(&runSettle, "settle", 0, "wait after the load event before taking coverage")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "print the raw function ranges after each script")
	runCmd.Flags().StringVar(&runSaveCoverage, "save-coverage", "", "write the raw coverage snapshot to this file")
}

type step struct {
	name string
	fn   func(*session.Session, context.Context) error
}

var (
	startSteps = []step{
		{"enableNetwork", (*session.Session).EnableNetwork},
		{"setCacheDisabled", (*session.Session).SetCacheDisabled},
		{"addScriptParsedListener", (*session.Session).AddScriptParsedListener},
		{"enableDebugger", (*session.Session).EnableDebugger},
		{"enableProfiler", (*session.Session).EnableProfiler},
		{"startPreciseCoverage", (*session.Session).StartPreciseCoverage},
	}
	stopSteps = []step{
		{"stopPreciseCoverage", (*session.Session).StopPreciseCoverage},
		{"disableProfiler", (*session.Session).DisableProfiler},
		{"removeScriptParsedListener", (*session.Session).RemoveScriptParsedListener},
		{"disableDebugger", (*session.Session).DisableDebugger},
		{"disableNetwork", (*session.Session).DisableNetwork},
	}
)

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pageURL := args[0]
	if runTargetURL != "" {
		cfg.Coverage.TargetURL = runTargetURL
	}
	if runSettle > 0 {
		cfg.Coverage.Settle = runSettle
	}
	if runRaw {
		cfg.Coverage.RawCoverage = true
	}

	store, err := openStore(cfg.Sources)
	if err != nil {
		return err
	}
	defer store.Close()

	sinks, err := openSinks(cfg.Sinks, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	mgr := browser.NewManager(browserConfig(cfg.Browser, logger))
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := mgr.OpenTab(ctx)
	if err != nil {
		return err
	}
	defer tab.Close()

	registry := session.NewRegistry(ctx, store,
		session.WithOptions(sessionOptions(cfg.Coverage)),
		session.WithLogger(logger),
	)
	defer registry.Close(context.WithoutCancel(ctx))

	sess, err := registry.Attach(tab.ID, tab.Target())
	if err != nil {
		return err
	}
	for _, st := range startSteps {
		logger.Debug("covwatch: step", "step", st.name, "tab", tab.ID)
		if err := st.fn(sess, ctx); err != nil {
			return err
		}
	}
	sess.SetTargetScriptURL(cfg.Coverage.TargetURL)

	logger.Info("covwatch: navigating", "url", pageURL, "tab", tab.ID, "session", sess.ID)
	if err := tab.Navigate(ctx, pageURL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("covwatch: page did not finish loading", "url", pageURL, "error", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cfg.Coverage.Settle):
	}

	scripts, err := sess.TakePreciseCoverage(ctx)
	if err != nil {
		return err
	}
	if runSaveCoverage != "" {
		if err := saveSnapshot(runSaveCoverage, scripts); err != nil {
			return err
		}
	}

	opts := reportOptions(cfg, logger)
	opts.SessionID = sess.ID
	rep, err := report.Build(ctx, scripts, sess.Lookup(), opts)
	if err != nil {
		return err
	}
	logger.Info("covwatch: coverage taken",
		"report", rep.ID, "scripts", len(rep.Scripts), "failed", rep.Failed(), "warnings", len(rep.Warnings))
	if err := sinks.Send(ctx, rep); err != nil {
		return err
	}

	for _, st := range stopSteps {
		if err := st.fn(sess, ctx); err != nil {
			logger.Warn("covwatch: teardown", "step", st.name, "error", err)
		}
	}
	return nil
}

func saveSnapshot(path string, scripts []coverage.ScriptCoverage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save coverage: %w", err)
	}
	if err := coverage.EncodeSnapshot(f, scripts); err != nil {
		f.Close()
		return fmt.Errorf("save coverage: %w", err)
	}
	return f.Close()
}
