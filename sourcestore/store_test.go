package sourcestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/covwatch/dbopen"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLite(dbopen.OpenMemory(t))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemory(0),
		"sqlite": sq,
	}
}

func TestStore_PutLookup(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, Source{SessionID: "s1", URL: "https://a/app.js", ScriptID: "17", Text: "var a = 1"}))

			text, err := s.Lookup(ctx, "s1", "https://a/app.js", "17")
			require.NoError(t, err)
			assert.Equal(t, "var a = 1", text)

			_, err = s.Lookup(ctx, "s1", "https://a/app.js", "18")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, Source{SessionID: "s1", URL: "u", ScriptID: "1", Text: "old"}))
			require.NoError(t, s.Put(ctx, Source{SessionID: "s1", URL: "u", ScriptID: "1", Text: "new"}))

			text, err := s.Lookup(ctx, "s1", "u", "1")
			require.NoError(t, err)
			assert.Equal(t, "new", text)
		})
	}
}

func TestStore_SessionScoping(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, Source{SessionID: "s1", URL: "b.js", ScriptID: "1", Text: "b"}))
			require.NoError(t, s.Put(ctx, Source{SessionID: "s1", URL: "a.js", ScriptID: "2", Text: "a"}))
			require.NoError(t, s.Put(ctx, Source{SessionID: "s1", URL: "a.js", ScriptID: "3", Text: "a2"}))
			require.NoError(t, s.Put(ctx, Source{SessionID: "s2", URL: "c.js", ScriptID: "1", Text: "c"}))

			urls, err := s.URLs(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, []string{"a.js", "b.js"}, urls)

			_, err = Scoped(s, "s2")(ctx, "b.js", "1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Clear(ctx, "s1"))
			urls, err = s.URLs(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, urls)

			text, err := Scoped(s, "s2")(ctx, "c.js", "1")
			require.NoError(t, err)
			assert.Equal(t, "c", text)
		})
	}
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	require.NoError(t, m.Put(ctx, Source{SessionID: "s", URL: "u", ScriptID: "1", Text: "one"}))
	require.NoError(t, m.Put(ctx, Source{SessionID: "s", URL: "u", ScriptID: "2", Text: "two"}))
	_, err := m.Lookup(ctx, "s", "u", "1")
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, Source{SessionID: "s", URL: "u", ScriptID: "3", Text: "three"}))

	assert.Equal(t, 2, m.Len())
	_, err = m.Lookup(ctx, "s", "u", "2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				m.Put(ctx, Source{SessionID: "s", URL: "u", ScriptID: string(rune('a'+i)) + string(rune('a'+j%26)), Text: "x"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8*26, m.Len())
}

func TestSQLite_SessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(dbopen.OpenMemory(t))
	require.NoError(t, err)

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, s.Put(ctx, Source{SessionID: "old", URL: "u", ScriptID: "1", Text: "x", ParsedAt: base}))
	require.NoError(t, s.Put(ctx, Source{SessionID: "new", URL: "u", ScriptID: "1", Text: "x", ParsedAt: base.Add(time.Minute)}))

	ids, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids)
}

func TestOpenSQLite_File(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/nested/sources.db"

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, Source{SessionID: "s", URL: "u", ScriptID: "1", Text: "persisted"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	text, err := s.Lookup(ctx, "s", "u", "1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", text)
}
