// Package shield is the HTTP middleware stack of the covwatch control
// server: request hygiene, security headers, panic recovery and per-request
// trace IDs with an access log.
//
//	r := chi.NewRouter()
//	r.Use(shield.Stack(logger)...)
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// MaxRequestBody is the body limit Stack applies.
const MaxRequestBody = 1 << 20

// Stack returns the middlewares every covwatch route runs behind, outermost
// first.
func Stack(logger *slog.Logger) []func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return []func(http.Handler) http.Handler{
		Trace(logger),
		Recover,
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(MaxRequestBody),
	}
}

// GetLogger retrieves the per-request logger set by Trace.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
