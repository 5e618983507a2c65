package shield

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/covwatch/idgen"
	"github.com/hazyhaar/covwatch/kit"
)

var traceIDs = idgen.Prefixed("trc_", idgen.UUIDv7())

// Trace tags each request with a trace ID (X-Trace-ID response header,
// kit.GetTraceID in the context) and a request logger carrying it, then
// logs the request once it completes.
func Trace(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := traceIDs()
			w.Header().Set("X-Trace-ID", id)

			reqLog := logger.With("trace_id", id)
			ctx := kit.WithTraceID(r.Context(), id)
			ctx = context.WithValue(ctx, LoggerKey, reqLog)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			reqLog.Log(ctx, level, "shield: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
