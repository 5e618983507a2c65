package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// backoff holds the pause before each retry; its length plus one is the
// attempt budget of RunTx.
var backoff = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

// IsBusy reports whether err is SQLite refusing a write because another
// connection holds the lock. Driver errors are matched by primary result
// code; anything else falls back to the message.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn in a transaction. While the database reports busy it is
// retried after each pause in backoff; any other error returns at once.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	err := runOnce(ctx, db, fn)
	for _, pause := range backoff {
		if !IsBusy(err) {
			return err
		}
		if serr := sleepCtx(ctx, pause); serr != nil {
			return fmt.Errorf("dbopen: context cancelled during retry: %w", serr)
		}
		err = runOnce(ctx, db, fn)
	}
	if IsBusy(err) {
		return fmt.Errorf("dbopen: busy after %d attempts: %w", len(backoff)+1, err)
	}
	return err
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
