package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/covwatch/control"
	"github.com/hazyhaar/covwatch/internal/browser"
	"github.com/hazyhaar/covwatch/session"
)

var (
	serveAddr string
	serveTabs int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API (HTTP, WebSocket report stream, MCP) over a shared browser",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().IntVar(&serveTabs, "tabs", 1, "blank tabs to open at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
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

	for range serveTabs {
		tab, err := mgr.OpenTab(ctx)
		if err != nil {
			return err
		}
		logger.Info("covwatch: tab ready", "tab", tab.ID)
	}

	registry := session.NewRegistry(ctx, store,
		session.WithOptions(sessionOptions(cfg.Coverage)),
		session.WithLogger(logger),
	)
	defer registry.Close(context.WithoutCancel(ctx))

	hub := control.NewHub(logger)
	sinks.Add(hub)

	d := control.NewDispatcher(control.Config{
		Registry: registry,
		Attacher: mgr,
		Sink:     sinks,
		Report:   reportOptions(cfg, logger),
		Logger:   logger,
	})

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "covwatch", Version: version}, nil)
	d.RegisterMCP(mcpSrv)

	return control.Serve(ctx, cfg.Server.Addr, control.NewHandler(d, hub, mcpSrv), logger)
}
