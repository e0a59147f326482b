package confhttpd

import (
	"strings"

	"github.com/aofei/mimesniffer"
)

// fixedExtensionContentTypes is the extension table StaticHandler consults
// before falling back to content sniffing.
var fixedExtensionContentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
}

const defaultContentType = "application/octet-stream"

// contentTypeFor returns the Content-Type for name based on its extension,
// falling back to sniffing the first bytes of content when the extension is
// unrecognized.
func contentTypeFor(name string, content []byte) string {
	ext := strings.ToLower(extOf(name))
	if ct, ok := fixedExtensionContentTypes[ext]; ok {
		return ct
	}
	if ct := mimesniffer.Sniff(content); ct != "" {
		return ct
	}
	return defaultContentType
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}
