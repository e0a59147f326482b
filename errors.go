package confhttpd

// configError reports a problem with the declarative configuration that
// should prevent the server from starting: an unknown handler type, a
// malformed or duplicate route prefix, a missing required directive.
type configError struct {
	msg string
}

func (e *configError) Error() string { return e.msg }

// requestParseError reports a malformed HTTP/1.x request: a bad request
// line, an unterminated header block, or an invalid Content-Length. The
// Session responds 400 and closes the connection rather than trying to
// resynchronize on the byte stream.
type requestParseError struct {
	msg string
}

func (e *requestParseError) Error() string { return "confhttpd: " + e.msg }
