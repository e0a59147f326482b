package confhttpd

import (
	"bytes"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// minifiableContentTypes is the subset of Content-Types the Response
// Post-processor will minify when a route opts in with `minify on;`.
var minifiableContentTypes = map[string]bool{
	"text/html":              true,
	"text/css":               true,
	"application/javascript": true,
}

// minifier wraps a minify.M configured once with the minifiers this server
// needs; minify.M itself is safe for concurrent use.
type minifier struct {
	m *minify.M
}

var minifierSingleton = newMinifier()

func newMinifier() *minifier {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return &minifier{m: m}
}

// minify minifies b according to mimeType, stripping any ";param=..."
// suffix first. An unrecognized or unsupported mimeType, or a minification
// failure, returns b unchanged rather than an error: minification is a
// pure optimization and must never change the response status.
func (mn *minifier) minify(mimeType string, b []byte) []byte {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !minifiableContentTypes[mimeType] {
		return b
	}

	var buf bytes.Buffer
	if err := mn.m.Minify(mimeType, &buf, bytes.NewReader(b)); err != nil {
		return b
	}
	return buf.Bytes()
}

// minifyResponse runs resp.Body through the shared minifier when resp asked
// for it (Minify) and its Content-Type is one of minifiableContentTypes.
// Content-Length is not set here: the gzip step sets it when it compresses,
// and writeResponse otherwise fills it in from the final body.
func minifyResponse(resp *Response) {
	if !resp.Minify || len(resp.Body) == 0 {
		return
	}
	resp.Body = minifierSingleton.minify(resp.Headers.First("Content-Type"), resp.Body)
}
