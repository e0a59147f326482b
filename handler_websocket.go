package confhttpd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(*http.Request) bool { return true },
}

// WebSocketHandler upgrades a matching request to the WebSocket protocol and
// echoes every text or binary frame it receives back to the peer until the
// peer closes the connection or an I/O error occurs. It implements
// ConnHijacker rather than doing its work through Handle, since a session
// that upgrades hands the raw connection to gorilla/websocket for the rest
// of its life.
type WebSocketHandler struct {
	prefix string
}

// Configure implements Handler.
func (h *WebSocketHandler) Configure(prefix string, block *Block) error {
	h.prefix = prefix
	return nil
}

// Handle implements Handler. It is only reached when HijackConn declines the
// request, so it always reports the upgrade as malformed.
func (h *WebSocketHandler) Handle(req *Request) *Response {
	return NewResponse(400).Text("text/plain", "400 Bad Request")
}

// HijackConn implements ConnHijacker.
func (h *WebSocketHandler) HijackConn(req *Request, conn net.Conn, br *bufio.Reader, bw *bufio.Writer) bool {
	if !strings.EqualFold(req.Method, "GET") {
		return false
	}
	if !strings.EqualFold(req.Headers.First("Upgrade"), "websocket") {
		return false
	}

	u, err := url.ParseRequestURI(req.Target)
	if err != nil {
		return false
	}
	httpReq := &http.Request{
		Method:     req.Method,
		RequestURI: req.Target,
		URL:        u,
		Proto:      req.Proto,
		Header:     toHTTPHeader(req.Headers),
		Host:       req.Headers.First("Host"),
		RemoteAddr: req.RemoteAddr,
	}

	rw := &hijackedResponseWriter{
		conn:   conn,
		rw:     bufio.NewReadWriter(br, bw),
		header: http.Header{},
	}

	wsConn, err := wsUpgrader.Upgrade(rw, httpReq, nil)
	if err != nil {
		rw.flush()
		return true
	}
	defer wsConn.Close()

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			return true
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if err := wsConn.WriteMessage(msgType, data); err != nil {
				return true
			}
		}
	}
}

// hijackedResponseWriter adapts a Session's already-hijacked connection into
// the http.ResponseWriter + http.Hijacker pair that (*websocket.Upgrader).
// Upgrade requires. It only needs to produce a well-formed response on the
// handshake failure path; a successful upgrade writes its own 101 response
// directly to the net.Conn once Hijack returns it.
type hijackedResponseWriter struct {
	conn        net.Conn
	rw          *bufio.ReadWriter
	header      http.Header
	wroteHeader bool
	status      int
}

func (w *hijackedResponseWriter) Header() http.Header { return w.header }

func (w *hijackedResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
	fmt.Fprintf(w.rw, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	w.header.Write(w.rw)
	io.WriteString(w.rw, "\r\n")
}

func (w *hijackedResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.rw.Write(b)
}

func (w *hijackedResponseWriter) flush() {
	w.rw.Flush()
}

// Hijack implements http.Hijacker. The connection is already hijacked from
// the Session's perspective; this just hands the same reader/writer pair to
// the caller, which is what gorilla/websocket's Upgrade expects.
func (w *hijackedResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.conn, w.rw, nil
}

func toHTTPHeader(h Headers) http.Header {
	out := http.Header{}
	for k, vs := range h {
		canon := textproto.CanonicalMIMEHeaderKey(k)
		out[canon] = append([]string(nil), vs...)
	}
	return out
}
