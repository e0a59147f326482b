package confhttpd

// NotFoundHandler always answers 404. It is also what Registry.Match
// returns when no configured prefix matches a request target.
type NotFoundHandler struct{}

// Configure implements Handler.
func (h *NotFoundHandler) Configure(prefix string, block *Block) error {
	return nil
}

// Handle implements Handler.
func (h *NotFoundHandler) Handle(req *Request) *Response {
	return NewResponse(404).Text("text/plain", "404 Not Found")
}
