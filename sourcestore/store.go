// Package sourcestore keeps the source text of scripts parsed in a tab so
// coverage can be laid over it after the fact.
//
// Entries are keyed by (session, url, script id). Two implementations are
// provided: Memory, a bounded LRU for live sessions, and SQLite, which
// survives the browser and backs offline rendering.
package sourcestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Lookup when no source is stored for the key.
var ErrNotFound = errors.New("sourcestore: source not found")

// Source is the text of one parsed script.
type Source struct {
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	ScriptID  string    `json:"script_id"`
	Text      string    `json:"text"`
	ParsedAt  time.Time `json:"parsed_at"`
}

// Store is safe for concurrent use.
type Store interface {
	Put(ctx context.Context, src Source) error
	Lookup(ctx context.Context, sessionID, url, scriptID string) (string, error)
	// URLs lists the distinct script URLs of a session, sorted.
	URLs(ctx context.Context, sessionID string) ([]string, error)
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// LookupFunc resolves the source of a script within one session.
type LookupFunc func(ctx context.Context, url, scriptID string) (string, error)

// Scoped binds a store to a session.
func Scoped(s Store, sessionID string) LookupFunc {
	return func(ctx context.Context, url, scriptID string) (string, error) {
		return s.Lookup(ctx, sessionID, url, scriptID)
	}
}

type key struct {
	session, url, script string
}
