package confhttpd

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// assetCache is an in-memory byte cache sitting in front of StaticHandler's
// filesystem reads. Entries are keyed by the xxhash digest of their absolute
// path and invalidated as soon as the underlying file changes, via an
// fsnotify watch registered the first time each file is served.
type assetCache struct {
	cache   *fastcache.Cache
	entries sync.Map // path (string) -> struct{}, tracks which paths are watched
	watcher *fsnotify.Watcher
}

// newAssetCache returns an assetCache holding up to maxBytes of content. A
// background goroutine drains the fsnotify watcher for the life of the
// cache; it is never stopped because the cache itself is process-lifetime.
func newAssetCache(maxBytes int) *assetCache {
	c := &assetCache{cache: fastcache.New(maxBytes)}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		// Asset caching is a pure optimization; without a working
		// watcher we fall back to an always-miss cache rather than
		// risk serving stale content forever.
		return c
	}
	c.watcher = w

	go func() {
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				c.invalidate(e.Name)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return c
}

func assetKey(path string) []byte {
	h := xxhash.Sum64String(path)
	key := make([]byte, 8)
	for i := 0; i < 8; i++ {
		key[i] = byte(h >> (8 * i))
	}
	return key
}

// get returns the cached content for path, if present.
func (c *assetCache) get(path string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v := c.cache.Get(nil, assetKey(path))
	if v == nil {
		return nil, false
	}
	return v, true
}

// put stores content for path and, the first time path is seen, registers an
// fsnotify watch on it so a later write or removal evicts it. Without a
// watcher it stores nothing, so every get misses.
func (c *assetCache) put(path string, content []byte) {
	if c == nil || c.watcher == nil {
		return
	}
	c.cache.Set(assetKey(path), content)

	if _, loaded := c.entries.LoadOrStore(path, struct{}{}); !loaded {
		c.watcher.Add(path)
	}
}

// invalidate drops path from the cache, called on an fsnotify event.
func (c *assetCache) invalidate(path string) {
	c.cache.Del(assetKey(path))
	c.entries.Delete(path)
	if c.watcher != nil {
		c.watcher.Remove(path)
	}
}
