// Package cache holds listing lookups so repeated price fills for the same
// item do not hit the marketplace API. Only successful lookups are cached.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andrrrrey/avito-crm/internal/normalize"
)

// DefaultTTL is used when a non-positive TTL is configured.
const DefaultTTL = 5 * time.Minute

// ItemCache stores item info by listing id. A miss is (zero, false, nil).
type ItemCache interface {
	Get(ctx context.Context, itemID int64) (normalize.ItemInfo, bool, error)
	Set(ctx context.Context, info normalize.ItemInfo) error
}

// New returns a Redis-backed cache when redisURL is set, otherwise an
// in-memory one. A Redis that cannot be reached falls back to memory.
func New(ctx context.Context, redisURL string, ttl time.Duration) ItemCache {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemory(ttl)
	}
	rc, err := NewRedis(ctx, redisURL, ttl)
	if err != nil {
		log.Warn().Err(err).Msg("item cache: redis unavailable, using memory")
		return NewMemory(ttl)
	}
	return rc
}

type entry struct {
	info    normalize.ItemInfo
	expires time.Time
}

// Memory is a process-local TTL cache.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]entry
}

// NewMemory returns an empty in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[int64]entry)}
}

func (m *Memory) Get(_ context.Context, itemID int64) (normalize.ItemInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[itemID]
	if !ok {
		return normalize.ItemInfo{}, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, itemID)
		return normalize.ItemInfo{}, false, nil
	}
	return e.info, true, nil
}

func (m *Memory) Set(_ context.Context, info normalize.ItemInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[info.ItemID] = entry{info: info, expires: m.now().Add(m.ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
