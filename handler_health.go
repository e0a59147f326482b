package confhttpd

// HealthRequestHandler always answers 200 OK with a fixed body. It takes no
// configuration.
type HealthRequestHandler struct{}

// Configure implements Handler.
func (h *HealthRequestHandler) Configure(prefix string, block *Block) error {
	return nil
}

// Handle implements Handler.
func (h *HealthRequestHandler) Handle(req *Request) *Response {
	return NewResponse(200).Text("text/plain", "OK")
}
