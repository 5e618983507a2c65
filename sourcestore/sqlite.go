package sourcestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/covwatch/dbopen"
)

// Schema creates the parsed_sources table. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS parsed_sources (
	session_id TEXT    NOT NULL,
	url        TEXT    NOT NULL,
	script_id  TEXT    NOT NULL,
	source     TEXT    NOT NULL,
	parsed_at  INTEGER NOT NULL,
	PRIMARY KEY (session_id, url, script_id)
);
CREATE INDEX IF NOT EXISTS idx_parsed_sources_url ON parsed_sources(session_id, url);
`

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db    *sql.DB
	owned bool
}

// OpenSQLite opens (or creates) the database at path and applies Schema.
// The caller must blank-import a driver registered as "sqlite" unless opts
// select another one.
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("sourcestore: %w", err)
	}
	return &SQLite{db: db, owned: true}, nil
}

// NewSQLite wraps an already open database. Close does not close db.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("sourcestore: schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, src Source) error {
	parsed := src.ParsedAt
	if parsed.IsZero() {
		parsed = time.Now()
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO parsed_sources (session_id, url, script_id, source, parsed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(session_id, url, script_id) DO UPDATE SET
				source = excluded.source, parsed_at = excluded.parsed_at`,
			src.SessionID, src.URL, src.ScriptID, src.Text, parsed.UnixMilli())
		if err != nil {
			return fmt.Errorf("sourcestore: put %s %s: %w", src.URL, src.ScriptID, err)
		}
		return nil
	})
}

func (s *SQLite) Lookup(ctx context.Context, sessionID, url, scriptID string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT source FROM parsed_sources WHERE session_id = ? AND url = ? AND script_id = ?`,
		sessionID, url, scriptID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sourcestore: lookup: %w", err)
	}
	return text, nil
}

func (s *SQLite) URLs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT url FROM parsed_sources WHERE session_id = ? ORDER BY url`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sourcestore: urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("sourcestore: urls: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (s *SQLite) Clear(ctx context.Context, sessionID string) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM parsed_sources WHERE session_id = ?`, sessionID)
		return err
	})
}

// Sessions lists the session IDs with stored sources, most recent first.
// covwatch render uses it to pick a default session.
func (s *SQLite) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM parsed_sources GROUP BY session_id ORDER BY MAX(parsed_at) DESC, session_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sourcestore: sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
