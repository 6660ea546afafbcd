package generator

import (
	"context"
	"fmt"
	"sync"

	"github.com/tartampluch/go-congrats/internal/config"
)

// CacheKey identifies one cached result. An empty Tone means the
// segment-derived tone was used.
type CacheKey struct {
	ClientID  int64
	EventType string
	Tone      string
}

// Format renders the key under prefix, e.g. "congrats:gen:42:birthday:formal".
func (k CacheKey) Format(prefix string) string {
	return fmt.Sprintf(config.FormatCacheKey, prefix, k.ClientID, k.EventType, k.Tone)
}

// Cache stores the last result produced per key. Entries never expire;
// callers drop them with Invalidate or Clear.
type Cache interface {
	Get(ctx context.Context, key CacheKey) (Result, bool, error)
	Set(ctx context.Context, key CacheKey, r Result) error
	Invalidate(ctx context.Context, clientID int64) error
	Clear(ctx context.Context) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[CacheKey]Result
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[CacheKey]Result)}
}

func (m *MemoryCache) Get(_ context.Context, key CacheKey) (Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[key]
	return r, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key CacheKey, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = r
	return nil
}

func (m *MemoryCache) Invalidate(_ context.Context, clientID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.items {
		if k.ClientID == clientID {
			delete(m.items, k)
		}
	}
	return nil
}

func (m *MemoryCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.items)
	return nil
}

// Len reports the number of cached results.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
