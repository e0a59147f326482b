package confhttpd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssetCachePutGet(t *testing.T) {
	c := newAssetCache(1 << 20)

	_, ok := c.get("/tmp/does-not-matter")
	assert.False(t, ok)

	c.put("/tmp/does-not-matter", []byte("hello"))
	v, ok := c.get("/tmp/does-not-matter")
	assert.True(t, ok)
	assert.Equal(t, "hello", string(v))
}

func TestAssetCacheInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	assert.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	c := newAssetCache(1 << 20)
	c.put(path, []byte("v1"))

	v, ok := c.get(path)
	assert.True(t, ok)
	assert.Equal(t, "v1", string(v))

	assert.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	if c.watcher != nil {
		assert.Eventually(t, func() bool {
			_, stillCached := c.get(path)
			return !stillCached
		}, time.Second, 10*time.Millisecond)
	}
}
