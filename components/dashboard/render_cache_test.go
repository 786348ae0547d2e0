package dashboard

import (
	"errors"
	"testing"
	"time"
)

func TestFragmentCacheMemoizes(t *testing.T) {
	cache := NewFragmentCache(time.Minute)
	calls := 0
	render := func() (string, error) {
		calls++
		return "<p>hi</p>", nil
	}
	for i := 0; i < 3; i++ {
		html, err := cache.GetOrRender("m:s:1", render)
		if err != nil || html != "<p>hi</p>" {
			t.Fatalf("unexpected result %q %v", html, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single render, got %d", calls)
	}
}

func TestFragmentCacheSkipsErrors(t *testing.T) {
	cache := NewFragmentCache(time.Minute)
	if _, err := cache.GetOrRender("k", func() (string, error) { return "", errors.New("boom") }); err == nil {
		t.Fatalf("expected error")
	}
	if cache.Len() != 0 {
		t.Fatalf("failed renders must not be cached")
	}
}

func TestFragmentCacheDisabledWithoutTTL(t *testing.T) {
	cache := NewFragmentCache(0)
	calls := 0
	for i := 0; i < 2; i++ {
		cache.GetOrRender("k", func() (string, error) {
			calls++
			return "x", nil
		})
	}
	if calls != 2 {
		t.Fatalf("expected caching disabled, got %d renders", calls)
	}
}

func TestFragmentCachePurgeByPrefix(t *testing.T) {
	cache := NewFragmentCache(time.Minute)
	for _, key := range []string{"m1:a", "m1:b", "m2:a"} {
		cache.GetOrRender(key, func() (string, error) { return key, nil })
	}
	if removed := cache.Purge("m1:"); removed != 2 {
		t.Fatalf("expected 2 entries purged, got %d", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", cache.Len())
	}
	var nilCache *FragmentCache
	if nilCache.Purge("x") != 0 || nilCache.Len() != 0 {
		t.Fatalf("nil cache must be inert")
	}
}
