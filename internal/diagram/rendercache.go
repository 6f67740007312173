package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// renderCache caches successful render markup with TTL-based expiration,
// keyed by a digest of the sanitized source and the render options.
type renderCache struct {
	entries map[string]*cachedRender
	mu      sync.RWMutex
	ttl     time.Duration
	done    chan struct{}
}

type cachedRender struct {
	markup    string
	cachedAt  time.Time
	expiresAt time.Time
}

// newRenderCache creates a cache with the given TTL and starts a background
// cleanup goroutine. Call Close to stop it.
func newRenderCache(ttl time.Duration) *renderCache {
	cache := &renderCache{
		entries: make(map[string]*cachedRender),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go cache.cleanupLoop()
	return cache
}

// cacheKey digests the inputs that determine a render's output.
func cacheKey(source, theme string) string {
	sum := sha256.Sum256([]byte(theme + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

func (rc *renderCache) store(key, markup string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	rc.entries[key] = &cachedRender{
		markup:    markup,
		cachedAt:  now,
		expiresAt: now.Add(rc.ttl),
	}
}

func (rc *renderCache) get(key string) (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	cached, ok := rc.entries[key]
	if !ok || time.Now().After(cached.expiresAt) {
		return "", false
	}
	return cached.markup, true
}

func (rc *renderCache) size() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.entries)
}

// Close stops the cleanup goroutine.
func (rc *renderCache) Close() {
	close(rc.done)
}

func (rc *renderCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *renderCache) cleanup() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	for key, cached := range rc.entries {
		if now.After(cached.expiresAt) {
			delete(rc.entries, key)
		}
	}
}
