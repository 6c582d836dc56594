// Package cache holds the recommender's read-through caches. Entries live
// until Clear is called.
package cache

import (
	"sync"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/pkg/metrics"
)

// Cache names used in metrics and stats.
const (
	NameSessions = "this_year_sessions"
	NameVisitors = "visitors"
	NameSimilar  = "similar_visitors"
)

const sessionsKey = "all"

// Section is one named map guarded by its own lock.
type Section[V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]V
}

func newSection[V any](name string) *Section[V] {
	return &Section[V]{name: name, entries: make(map[string]V)}
}

// Get returns the value for key and whether it was present.
func (s *Section[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		metrics.RecordCacheHit(s.name)
	} else {
		metrics.RecordCacheMiss(s.name)
	}
	return v, ok
}

// Set stores v under key.
func (s *Section[V]) Set(key string, v V) {
	s.mu.Lock()
	s.entries[key] = v
	n := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateCacheEntries(s.name, n)
}

// Len returns the number of entries.
func (s *Section[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Section[V]) clear() {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()
	metrics.UpdateCacheEntries(s.name, 0)
}

// Cache groups the three caches owned by one service instance.
type Cache struct {
	sessions *Section[[]model.Session]
	visitors *Section[model.Visitor]
	similar  *Section[[]model.SimilarVisitor]

	hookMu  sync.Mutex
	onClear []func()
}

// New returns empty caches.
func New() *Cache {
	return &Cache{
		sessions: newSection[[]model.Session](NameSessions),
		visitors: newSection[model.Visitor](NameVisitors),
		similar:  newSection[[]model.SimilarVisitor](NameSimilar),
	}
}

// Sessions returns the cached this-year session snapshot.
func (c *Cache) Sessions() ([]model.Session, bool) { return c.sessions.Get(sessionsKey) }

// SetSessions stores the this-year session snapshot.
func (c *Cache) SetSessions(s []model.Session) { c.sessions.Set(sessionsKey, s) }

// Visitor returns a cached visitor.
func (c *Cache) Visitor(badgeID string) (model.Visitor, bool) { return c.visitors.Get(badgeID) }

// SetVisitor caches a visitor.
func (c *Cache) SetVisitor(v model.Visitor) { c.visitors.Set(v.BadgeID, v) }

// Similar returns the cached similar-visitor list for badgeID.
func (c *Cache) Similar(badgeID string) ([]model.SimilarVisitor, bool) { return c.similar.Get(badgeID) }

// SetSimilar caches the similar-visitor list for badgeID.
func (c *Cache) SetSimilar(badgeID string, s []model.SimilarVisitor) { c.similar.Set(badgeID, s) }

// OnClear registers fn to run after every Clear.
func (c *Cache) OnClear(fn func()) {
	if fn == nil {
		return
	}
	c.hookMu.Lock()
	c.onClear = append(c.onClear, fn)
	c.hookMu.Unlock()
}

// Clear empties every cache and runs the registered hooks.
func (c *Cache) Clear() {
	c.sessions.clear()
	c.visitors.clear()
	c.similar.clear()
	metrics.RecordCacheClear()

	c.hookMu.Lock()
	hooks := append([]func(){}, c.onClear...)
	c.hookMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Sizes reports the entry count of each cache.
func (c *Cache) Sizes() map[string]int {
	return map[string]int{
		NameSessions: c.sessions.Len(),
		NameVisitors: c.visitors.Len(),
		NameSimilar:  c.similar.Len(),
	}
}
