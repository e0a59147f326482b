package confhttpd

import (
	"path/filepath"
	"strings"
)

// staticAssetCache is shared by every StaticHandler instance: it is keyed by
// absolute path, so mounts never collide, and there is no benefit to one
// cache per location.
var staticAssetCache = newAssetCache(64 << 20)

// StaticHandler serves regular files out of a root directory, rejecting
// path traversal attempts.
type StaticHandler struct {
	prefix  string
	rootDir string
	fs      FileSystem
	cache   *assetCache
	minify  bool
}

// Configure implements Handler.
func (h *StaticHandler) Configure(prefix string, block *Block) error {
	root, err := requiredDirective(block, "root", "StaticHandler")
	if err != nil {
		return err
	}
	h.prefix = prefix
	h.rootDir = filepath.Clean(root)
	h.minify = minifyDirective(block)
	return nil
}

// Handle implements Handler.
func (h *StaticHandler) Handle(req *Request) *Response {
	target := unescape(requestPath(req.Target))

	if !strings.HasPrefix(target, h.prefix) {
		return NewResponse(404).Text("text/plain", "404 Not Found")
	}

	rel := strings.TrimPrefix(target, h.prefix)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}

	if strings.Contains(rel, "..") {
		return NewResponse(404).Text("text/plain", "404 Not Found")
	}

	full := filepath.Join(h.rootDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, h.rootDir) {
		return NewResponse(404).Text("text/plain", "404 Not Found")
	}

	if !h.fs.Exists(full) || h.isDir(full) {
		return NewResponse(404).Text("text/plain", "404 Not Found")
	}

	var content []byte
	if cached, ok := h.cache.get(full); ok {
		content = cached
	} else {
		b, err := h.fs.Read(full)
		if err != nil {
			return NewResponse(500).Text("text/plain", "500 Internal Server Error")
		}
		content = b
		h.cache.put(full, b)
	}

	resp := NewResponse(200)
	resp.Headers.SetFirst("Content-Type", contentTypeFor(full, content))
	resp.Body = content
	resp.Minify = h.minify
	return resp
}

// isDir reports whether full names a directory; StaticHandler only serves
// regular files (spec step 5: "If the target is not a regular file: 404").
func (h *StaticHandler) isDir(full string) bool {
	fi, err := osStat(full)
	return err == nil && fi.IsDir()
}

// requestPath strips the query string, if any, from a request target.
func requestPath(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
