// Package sqltrace registers "sqlite-trace", a modernc.org/sqlite driver
// that logs every statement through slog: Debug normally, Warn past
// SlowQuery, Error on failure. The trace ID of the HTTP or MCP request that
// caused a query (kit.GetTraceID) is attached when present.
//
//	db, err := dbopen.Open("sources.db", dbopen.WithDriver(sqltrace.DriverName))
package sqltrace

import (
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql name of the tracing driver.
const DriverName = "sqlite-trace"

// SlowQuery is the duration past which a statement is logged at Warn.
const SlowQuery = 100 * time.Millisecond

var logger atomic.Pointer[slog.Logger]

// SetLogger routes trace records to l. nil restores slog.Default.
func SetLogger(l *slog.Logger) { logger.Store(l) }

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func init() {
	sql.Register(DriverName, &Driver{Driver: &sqlite.Driver{}})
}
