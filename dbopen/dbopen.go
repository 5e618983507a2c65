// Package dbopen opens the SQLite databases covwatch keeps parsed script
// sources in. Pragmas travel in the DSN as _pragma parameters, so every
// connection of the pool gets them, not only the first:
//
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// The caller blank-imports the driver:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("sources.db", dbopen.WithSchema(sourcestore.Schema))
//
// Tests use OpenMemory, which closes the database on cleanup.
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// DefaultDriver is the database/sql name modernc.org/sqlite registers.
const DefaultDriver = "sqlite"

type pragma struct{ name, value string }

type config struct {
	driver   string
	pragmas  []pragma
	mkdirAll bool
	schemas  []string
}

func defaults() config {
	return config{
		driver: DefaultDriver,
		pragmas: []pragma{
			{"journal_mode", "WAL"},
			{"busy_timeout", "10000"},
			{"synchronous", "NORMAL"},
		},
	}
}

func (c *config) set(name, value string) {
	for i := range c.pragmas {
		if c.pragmas[i].name == name {
			c.pragmas[i].value = value
			return
		}
	}
	c.pragmas = append(c.pragmas, pragma{name, value})
}

// Option customises Open behaviour.
type Option func(*config)

// WithDriver opens the database through another registered driver, such
// as the query-logging wrapper in package sqltrace.
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithPragma sets a pragma on every connection, replacing a default of the
// same name.
func WithPragma(name, value string) Option { return func(c *config) { c.set(name, value) } }

// WithBusyTimeout sets busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return WithPragma("busy_timeout", strconv.Itoa(ms)) }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues SQL to execute once the database is open.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// DSN returns the data source name Open would use for path.
func DSN(path string, opts ...Option) string {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	return cfg.dsn(path)
}

func (c *config) dsn(path string) string {
	if len(c.pragmas) == 0 {
		return path
	}
	q := make([]string, len(c.pragmas))
	for i, p := range c.pragmas {
		q[i] = "_pragma=" + url.QueryEscape(p.name+"("+p.value+")")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}

// Open opens the SQLite database at path, then runs the queued schemas.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, cfg.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping: %w", err)
	}
	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests. MaxOpenConns is 1
// because every connection to ":memory:" is a separate database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
