package dashboard

import (
	"strings"
	"sync"
	"time"
)

// RenderCache memoizes rendered section fragments. Keys start with the mount
// id followed by a colon, so a mount drops its own entries with Purge.
type RenderCache interface {
	GetOrRender(key string, render func() (string, error)) (string, error)
	Purge(prefix string) int
}

var _ RenderCache = (*FragmentCache)(nil)

// FragmentCache is an in-memory TTL cache for rendered fragments.
type FragmentCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cachedFragment
}

type cachedFragment struct {
	html    string
	expires time.Time
}

// NewFragmentCache builds a cache with the provided TTL. A non-positive TTL
// disables caching.
func NewFragmentCache(ttl time.Duration) *FragmentCache {
	return &FragmentCache{
		ttl:     ttl,
		entries: make(map[string]cachedFragment),
	}
}

// GetOrRender returns a cached entry or renders/stores a new one. Failed
// renders are never cached.
func (c *FragmentCache) GetOrRender(key string, render func() (string, error)) (string, error) {
	if html, ok := c.get(key); ok {
		return html, nil
	}
	html, err := render()
	if err != nil {
		return "", err
	}
	c.set(key, html)
	return html, nil
}

// Purge drops every entry whose key starts with prefix.
func (c *FragmentCache) Purge(prefix string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (c *FragmentCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *FragmentCache) get(key string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		if ok {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		return "", false
	}
	return entry.html, true
}

func (c *FragmentCache) set(key, html string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cachedFragment{
		html:    html,
		expires: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
