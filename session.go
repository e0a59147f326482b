package confhttpd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
)

// sessionPool is shared by every Session; see Pool.
var sessionPool = newPool()

// statusText names the subset of HTTP status codes this server's handlers
// can produce.
var statusText = map[int]string{
	200: "OK",
	201: "Created",
	204: "No Content",
	301: "Moved Permanently",
	304: "Not Modified",
	400: "Bad Request",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	500: "Internal Server Error",
}

// ConnHijacker is implemented by handler types that need to take the raw
// connection over entirely instead of producing a Response — today, only
// WebSocketHandler. HijackConn reports whether it took ownership of conn;
// false means req didn't qualify (wrong method, missing upgrade header) and
// the Session should fall back to calling Handle normally. br and bw are
// the Session's own buffered reader/writer, already positioned right after
// req's header block, so a successful hijack sees exactly the bytes that
// follow on the wire.
type ConnHijacker interface {
	HijackConn(req *Request, conn net.Conn, br *bufio.Reader, bw *bufio.Writer) bool
}

// dispatchLimiter is a counting semaphore bounding how many handler
// invocations may run concurrently across every Session that shares it. It
// realizes spec.md §5's worker pool ("long-running handlers block one
// worker, not the reactor"): accept, read, and write are reactor-driven via
// Go's netpoller and stay unbounded (one goroutine per connection, however
// many connections are open), but the CPU/blocking work a Handle call can do
// is capped. A nil dispatchLimiter never blocks, which is what a Session
// built directly (without going through Server) gets.
type dispatchLimiter chan struct{}

func newDispatchLimiter(n int) dispatchLimiter {
	if n <= 0 {
		n = 1
	}
	return make(dispatchLimiter, n)
}

func (d dispatchLimiter) acquire() {
	if d != nil {
		d <- struct{}{}
	}
}

func (d dispatchLimiter) release() {
	if d != nil {
		<-d
	}
}

// Session is the per-connection state machine: read a request, dispatch it
// to the handler the Registry selects, write the response, and either read
// the next request (keep-alive) or close. One Session owns one net.Conn for
// its entire lifetime, which may span many requests (keep-alive) or, for a
// handler that hijacks the connection (see ConnHijacker), the rest of the
// connection's life.
type Session struct {
	conn     net.Conn
	registry *Registry
	logger   *Logger
	limiter  dispatchLimiter
}

// NewSession returns a Session that will serve requests arriving on conn by
// routing them through registry. Its handler invocations are unbounded
// unless WithDispatchLimiter is also called.
func NewSession(conn net.Conn, registry *Registry, logger *Logger) *Session {
	return &Session{conn: conn, registry: registry, logger: logger}
}

// WithDispatchLimiter sets the semaphore Serve acquires around every
// handler.Handle call, and returns s for chaining. Server shares one
// dispatchLimiter across every Session it spawns, so the limiter bounds
// concurrent handler execution process-wide, not per connection.
func (s *Session) WithDispatchLimiter(l dispatchLimiter) *Session {
	s.limiter = l
	return s
}

// Serve runs the READING -> DISPATCH -> WRITING loop described by the
// Session design until the peer closes the connection, an I/O error occurs,
// or neither side wants the connection kept alive. It always closes the
// connection before returning, and it never panics on a dropped peer: I/O
// errors simply end the loop.
func (s *Session) Serve() {
	defer s.conn.Close()

	br := sessionPool.Reader(s.conn)
	bw := sessionPool.Writer(s.conn)
	defer sessionPool.PutReader(br)
	defer sessionPool.PutWriter(bw)

	for {
		req, err := readRequest(br)
		if err != nil {
			if err == io.EOF {
				return
			}
			resp := NewResponse(400).Text("text/plain", "400 Bad Request")
			resp.Headers.SetFirst("Connection", "close")
			s.write(bw, resp)
			s.log(nil, resp, "")
			return
		}
		req.RemoteAddr = s.conn.RemoteAddr().String()

		handler := s.registry.Match(req.Target)
		if hj, ok := handler.(ConnHijacker); ok {
			if hj.HijackConn(req, s.conn, br, bw) {
				return
			}
		}

		resp := s.dispatch(handler, req)
		postProcess(req, resp)

		keepAlive := wantsKeepAlive(req, resp)
		if !keepAlive {
			resp.Headers.SetFirst("Connection", "close")
		}

		if err := s.write(bw, resp); err != nil {
			return
		}
		s.log(req, resp, handlerTypeName(handler))

		if !keepAlive {
			return
		}
	}
}

// dispatch invokes handler.Handle, converting a panic inside the handler
// into a 500 response instead of tearing down the whole session; a bug in
// one handler must not take unrelated connections down with it. It acquires
// s.limiter for the duration of the call, so a burst of slow handlers across
// many connections is throttled without blocking this Session's own I/O or
// any other connection's accept/read/write.
func (s *Session) dispatch(handler Handler, req *Request) (resp *Response) {
	s.limiter.acquire()
	defer s.limiter.release()

	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Errorj(map[string]interface{}{
					"event": "handler_panic",
					"panic": fmt.Sprintf("%v", r),
				})
			}
			resp = NewResponse(500).Text("text/plain", "500 Internal Server Error")
		}
	}()
	return handler.Handle(req)
}

func (s *Session) write(bw *bufio.Writer, resp *Response) error {
	if err := writeResponse(bw, resp); err != nil {
		return err
	}
	return bw.Flush()
}

// log emits the one-record-per-write structured log line the Session
// design calls for: status, method, target, peer address, handler type.
func (s *Session) log(req *Request, resp *Response, handlerType string) {
	if s.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"status": resp.Status,
		"peer":   s.conn.RemoteAddr().String(),
	}
	if req != nil {
		fields["method"] = req.Method
		fields["target"] = req.Target
	}
	if handlerType != "" {
		fields["handler"] = handlerType
	}
	s.logger.Infoj(fields)
}

// handlerTypeName returns the unqualified Go type name of handler, used only
// for the session's log line (e.g. "*StaticHandler" -> "StaticHandler").
func handlerTypeName(handler Handler) string {
	name := fmt.Sprintf("%T", handler)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "*")
}

// readRequest parses one HTTP/1.x request off br: a request line, a header
// block, and (if Content-Length is present) a fixed-size body. It accepts
// both CRLF and bare-LF line endings. A clean io.EOF before any bytes of a
// new request have arrived means the peer closed the connection normally.
// Any other I/O error while reading the request line is returned as is;
// every other failure is reported as a *requestParseError.
func readRequest(br *bufio.Reader) (*Request, error) {
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, err // io.EOF on a clean connection close
	}
	if line == "" {
		return nil, &requestParseError{"empty request line"}
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, &requestParseError{"malformed request line: " + line}
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		return nil, &requestParseError{"unsupported protocol version: " + proto}
	}
	if method == "" || target == "" {
		return nil, &requestParseError{"malformed request line: " + line}
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, &requestParseError{"malformed header block: " + err.Error()}
	}

	headers := Headers{}
	for k, vs := range mimeHeader {
		headers.Set(k, vs)
	}

	var body []byte
	if cl := headers.First("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, &requestParseError{"invalid Content-Length: " + cl}
		}
		if n > 0 {
			body = make([]byte, n)
			if _, err := io.ReadFull(br, body); err != nil {
				return nil, &requestParseError{"truncated request body: " + err.Error()}
			}
		}
	}

	return &Request{
		Method:  method,
		Target:  target,
		Proto:   proto,
		Headers: headers,
		Body:    body,
	}, nil
}

// wantsKeepAlive decides whether the connection should be reused for
// another request, per the rule in the Session design: HTTP/1.1 defaults to
// keep-alive unless either side says "Connection: close"; HTTP/1.0 defaults
// to close unless the request explicitly asks for keep-alive.
func wantsKeepAlive(req *Request, resp *Response) bool {
	if connectionSaysClose(resp.Headers.First("Connection")) {
		return false
	}
	reqConn := req.Headers.First("Connection")
	if connectionSaysClose(reqConn) {
		return false
	}
	if req.Proto == "HTTP/1.1" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(reqConn), "keep-alive")
}

func connectionSaysClose(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "close")
}

// writeResponse renders resp onto bw as an HTTP/1.1 response message:
// status line, headers (Content-Length filled in if the handler didn't set
// one), a blank line, and the body. It does not flush; callers decide when.
func writeResponse(bw *bufio.Writer, resp *Response) error {
	text := statusText[resp.Status]
	if text == "" {
		text = "Unknown"
	}
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", resp.Status, text); err != nil {
		return err
	}

	if !resp.Headers.Has("Content-Length") {
		resp.Headers.SetFirst("Content-Length", strconv.Itoa(len(resp.Body)))
	}

	for k, vs := range resp.Headers {
		canon := textproto.CanonicalMIMEHeaderKey(k)
		for _, v := range vs {
			if _, err := fmt.Fprintf(bw, "%s: %s\r\n", canon, v); err != nil {
				return err
			}
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	if len(resp.Body) > 0 {
		if _, err := bw.Write(resp.Body); err != nil {
			return err
		}
	}
	return nil
}
