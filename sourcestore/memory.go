package sourcestore

import (
	"context"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of scripts a Memory store holds.
const DefaultCapacity = 4096

// Memory is an in-process Store. When full, the least recently used script
// is evicted; a later Lookup for it returns ErrNotFound.
type Memory struct {
	mu    sync.Mutex // serialises Clear against concurrent Put
	cache *lru.Cache[key, Source]
}

// NewMemory creates a Memory store holding at most capacity scripts.
// capacity <= 0 selects DefaultCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[key, Source](capacity)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Memory{cache: cache}
}

func (m *Memory) Put(_ context.Context, src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(key{src.SessionID, src.URL, src.ScriptID}, src)
	return nil
}

func (m *Memory) Lookup(_ context.Context, sessionID, url, scriptID string) (string, error) {
	src, ok := m.cache.Get(key{sessionID, url, scriptID})
	if !ok {
		return "", ErrNotFound
	}
	return src.Text, nil
}

func (m *Memory) URLs(_ context.Context, sessionID string) ([]string, error) {
	var urls []string
	for _, k := range m.cache.Keys() {
		if k.session == sessionID && !slices.Contains(urls, k.url) {
			urls = append(urls, k.url)
		}
	}
	slices.Sort(urls)
	return urls, nil
}

func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.cache.Keys() {
		if k.session == sessionID {
			m.cache.Remove(k)
		}
	}
	return nil
}

// Len returns the number of stored scripts across all sessions.
func (m *Memory) Len() int { return m.cache.Len() }

func (m *Memory) Close() error {
	m.cache.Purge()
	return nil
}
