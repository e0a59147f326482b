package confhttpd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const markdownDirCacheTTL = 5 * time.Second
const markdownMaxFileSize = 1 << 20 // 1 MiB

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// markdownDirEntry is one cached rendering of a directory index.
type markdownDirEntry struct {
	html         string
	etag         string
	lastModified string
	insertedAt   time.Time
}

// markdownDirCache memoizes rendered directory indexes for markdownDirCacheTTL.
type markdownDirCache struct {
	mu      sync.Mutex
	entries map[string]*markdownDirEntry
}

var globalMarkdownCache = &markdownDirCache{entries: map[string]*markdownDirEntry{}}

func (c *markdownDirCache) get(dir string) (*markdownDirEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[dir]
	if !ok || time.Since(e.insertedAt) >= markdownDirCacheTTL {
		return nil, false
	}
	return e, true
}

func (c *markdownDirCache) put(dir string, e *markdownDirEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dir] = e
}

// MarkdownHandler renders a tree of Markdown files: directory requests get
// a generated index, file requests get rendered HTML, both support
// conditional GET via ETag/Last-Modified.
type MarkdownHandler struct {
	prefix       string
	root         string
	templatePath string
	fs           FileSystem
	cache        *markdownDirCache
	minify       bool
}

// Configure implements Handler.
func (h *MarkdownHandler) Configure(prefix string, block *Block) error {
	root, err := requiredDirective(block, "root", "MarkdownHandler")
	if err != nil {
		return err
	}
	tmpl, err := requiredDirective(block, "template", "MarkdownHandler")
	if err != nil {
		return err
	}
	h.prefix = prefix
	h.root = filepath.Clean(root)
	h.templatePath = tmpl
	h.minify = minifyDirective(block)
	return nil
}

// Handle implements Handler.
func (h *MarkdownHandler) Handle(req *Request) *Response {
	target := requestPath(req.Target)
	rawQuery := false
	if i := strings.IndexByte(req.Target, '?'); i >= 0 {
		rawQuery = strings.Contains(req.Target[i:], "raw=1")
	}

	if !strings.HasPrefix(target, h.prefix) {
		return notFoundText()
	}
	rel := strings.TrimPrefix(target, h.prefix)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}

	full := filepath.Join(h.root, filepath.FromSlash(rel))
	cleanRoot, err := filepath.Abs(h.root)
	if err != nil {
		return notFoundText()
	}
	cleanFull, err := filepath.Abs(full)
	if err != nil || !(cleanFull == cleanRoot || strings.HasPrefix(cleanFull, cleanRoot+string(filepath.Separator))) {
		return notFoundText()
	}

	if h.isDir(cleanFull) {
		return h.handleDir(req, target, cleanFull)
	}
	return h.handleFile(req, cleanFull, rawQuery)
}

func notFoundText() *Response {
	return NewResponse(404).Text("text/plain", "404 Not Found")
}

// isDir reports whether full names a directory, the only filesystem
// predicate MarkdownHandler needs beyond Exists/Read, so it is implemented
// locally against the real OS rather than widening the FileSystem
// interface for every handler.
func (h *MarkdownHandler) isDir(full string) bool {
	fi, err := osStat(full)
	return err == nil && fi.IsDir()
}

func (h *MarkdownHandler) handleDir(req *Request, target, full string) *Response {
	if !strings.HasSuffix(target, "/") {
		resp := NewResponse(301)
		resp.Headers.SetFirst("Location", target+"/")
		return resp
	}

	if e, ok := h.cache.get(full); ok {
		if cond := checkConditional(req, e.etag, e.lastModified); cond != nil {
			return cond
		}
		return h.render(e)
	}

	entries, err := h.fs.ListDirectory(full)
	if err != nil {
		return NewResponse(500).Text("text/plain", "500 Internal Server Error")
	}

	var dirs, mdFiles []string
	subEntries := listSubdirs(full)
	dirs = append(dirs, subEntries...)
	for _, n := range entries {
		if strings.EqualFold(filepath.Ext(n), ".md") {
			mdFiles = append(mdFiles, n)
		}
	}
	sort.Strings(dirs)
	sort.Strings(mdFiles)

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>Index of %s</h1>\n<ul>\n", target)
	for _, d := range dirs {
		fmt.Fprintf(&body, "<li><a href=\"%s/\">%s/</a></li>\n", d, d)
	}
	for _, f := range mdFiles {
		fmt.Fprintf(&body, "<li><a href=\"%s\">%s</a></li>\n", f, f)
	}
	body.WriteString("</ul>\n")

	indexHTML := body.String()
	finalHTML := h.applyTemplateLoose(indexHTML)

	modTime := time.Now()
	if fi, err := osStat(full); err == nil {
		modTime = fi.ModTime()
	}

	entry := &markdownDirEntry{
		html:         finalHTML,
		etag:         fmt.Sprintf(`"%d-%d"`, len(finalHTML), time.Now().Unix()),
		lastModified: modTime.UTC().Format(time.RFC1123),
		insertedAt:   time.Now(),
	}
	h.cache.put(full, entry)

	return h.render(entry)
}

func (h *MarkdownHandler) render(e *markdownDirEntry) *Response {
	resp := NewResponse(200)
	resp.Headers.SetFirst("Content-Type", "text/html")
	resp.Headers.SetFirst("ETag", e.etag)
	resp.Headers.SetFirst("Last-Modified", e.lastModified)
	resp.Body = []byte(e.html)
	resp.Minify = h.minify
	return resp
}

func (h *MarkdownHandler) handleFile(req *Request, full string, raw bool) *Response {
	if !strings.EqualFold(filepath.Ext(full), ".md") {
		return notFoundText()
	}

	fi, err := osStat(full)
	if err != nil || fi.IsDir() {
		return notFoundText()
	}

	etag := fmt.Sprintf(`"%d-%d"`, fi.Size(), fi.ModTime().Unix())
	lastModified := fi.ModTime().UTC().Format(time.RFC1123)

	if cond := checkConditional(req, etag, lastModified); cond != nil {
		return cond
	}

	if fi.Size() > markdownMaxFileSize {
		return NewResponse(413).Text("text/plain", "413 Payload Too Large")
	}

	if fi.Size() == 0 {
		resp := NewResponse(200)
		resp.Headers.SetFirst("Content-Type", "text/html")
		return resp
	}

	content, err := h.fs.Read(full)
	if err != nil {
		return NewResponse(500).Text("text/plain", "500 Internal Server Error")
	}

	if raw {
		resp := NewResponse(200)
		resp.Headers.SetFirst("Content-Type", "text/markdown")
		resp.Headers.SetFirst("ETag", etag)
		resp.Headers.SetFirst("Last-Modified", lastModified)
		resp.Body = content
		return resp
	}

	var buf bytes.Buffer
	if err := markdownRenderer.Convert(content, &buf); err != nil {
		return NewResponse(500).Text("text/plain", "500 Internal Server Error")
	}

	finalHTML, err := h.applyTemplateStrict(buf.String())
	if err != nil {
		return NewResponse(500).Text("text/plain", "500 Internal Server Error")
	}

	resp := NewResponse(200)
	resp.Headers.SetFirst("Content-Type", "text/html")
	resp.Headers.SetFirst("ETag", etag)
	resp.Headers.SetFirst("Last-Modified", lastModified)
	resp.Body = []byte(finalHTML)
	resp.Minify = h.minify
	return resp
}

// applyTemplateLoose substitutes the first "{{content}}" in the configured
// template for fragment. If the template cannot be read or lacks the
// placeholder, fragment is returned unwrapped. Used for directory index
// rendering, where the spec does not call for a 500 on template trouble.
func (h *MarkdownHandler) applyTemplateLoose(fragment string) string {
	rendered, err := h.applyTemplateStrict(fragment)
	if err != nil {
		return fragment
	}
	return rendered
}

// applyTemplateStrict is applyTemplateLoose's counterpart for file
// requests, where a template read failure or a missing file is a 500 per
// spec (directory indexes fall back silently instead).
func (h *MarkdownHandler) applyTemplateStrict(fragment string) (string, error) {
	tb, err := h.fs.Read(h.templatePath)
	if err != nil {
		return "", err
	}
	if len(tb) > markdownMaxFileSize {
		return "", fmt.Errorf("confhttpd: markdown template exceeds %d bytes", markdownMaxFileSize)
	}
	tmpl := string(tb)
	if !strings.Contains(tmpl, "{{content}}") {
		return fragment, nil
	}
	return strings.Replace(tmpl, "{{content}}", fragment, 1), nil
}

// checkConditional returns a 304 response if req's conditional headers
// match etag/lastModified, or nil if the caller should proceed normally.
func checkConditional(req *Request, etag, lastModified string) *Response {
	if v := req.Headers.First("If-None-Match"); v != "" && v == etag {
		resp := NewResponse(304)
		resp.Headers.SetFirst("ETag", etag)
		resp.Headers.SetFirst("Last-Modified", lastModified)
		return resp
	}
	if v := req.Headers.First("If-Modified-Since"); v != "" && v == lastModified {
		resp := NewResponse(304)
		resp.Headers.SetFirst("ETag", etag)
		resp.Headers.SetFirst("Last-Modified", lastModified)
		return resp
	}
	return nil
}

// listSubdirs returns the immediate subdirectory names of full. It is a
// thin wrapper kept separate from FileSystem.ListDirectory (which only
// yields regular files) since directory indexing needs both kinds of entry.
func listSubdirs(full string) []string {
	entries, err := osReadDir(full)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}
