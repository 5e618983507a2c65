// Command covwatch collects precise JavaScript coverage from Chrome and
// prints each script's source with executed and unexecuted code marked.
//
// Usage:
//
//	covwatch run https://example.com --target-url https://example.com/app.js
//	covwatch serve --addr 127.0.0.1:9223
//	covwatch render coverage.json --sources covwatch.db
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("covwatch: fatal", "error", err)
		os.Exit(1)
	}
}
