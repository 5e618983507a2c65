package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hazyhaar/covwatch/internal/config"
)

var (
	configPath string
	logLevel   string
	colorMode  string

	cfg    *config.Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "covwatch",
	Short: "Precise JavaScript coverage from Chrome, annotated on the source",
	Long: `covwatch drives Chrome over the DevTools protocol, takes precise block
coverage of the scripts a page runs and prints each script's source with
covered and uncovered ranges highlighted.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "", "color output: auto, always, never")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and installs the logger and color mode.
// Flags win over the file and the environment.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if colorMode != "" {
		c.Color = colorMode
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	logger = newLogger(c.LogLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	setColor(c.Color, os.Stdout)
	return nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func setColor(mode string, out *os.File) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		_, noColor := os.LookupEnv("NO_COLOR")
		color.NoColor = noColor || !term.IsTerminal(int(out.Fd()))
	}
}
