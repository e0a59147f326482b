package confhttpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newCrudHandler(t *testing.T) *CrudHandler {
	root, err := Parse(`location /api CrudHandler { data_path /data; }`)
	assert.NoError(t, err)
	h := &CrudHandler{fs: NewMemFileSystem()}
	assert.NoError(t, h.Configure("/api", root.Statements[0].Child))
	return h
}

func TestCrudHandlerCreateThenGet(t *testing.T) {
	h := newCrudHandler(t)

	createResp := h.Handle(&Request{Method: "POST", Target: "/api/widgets", Body: []byte(`{"name":"a"}`)})
	assert.Equal(t, 201, createResp.Status)
	assert.NotEmpty(t, createResp.Headers.First("Location"))

	getResp := h.Handle(&Request{Method: "GET", Target: "/api/widgets/1"})
	assert.Equal(t, 200, getResp.Status)
	assert.Equal(t, `{"name":"a"}`, string(getResp.Body))
}

func TestCrudHandlerCreateRejectsMalformedJSON(t *testing.T) {
	h := newCrudHandler(t)
	resp := h.Handle(&Request{Method: "POST", Target: "/api/widgets", Body: []byte(`{not json`)})
	assert.Equal(t, 400, resp.Status)
}

func TestCrudHandlerCreateRejectsNonJSONContentType(t *testing.T) {
	h := newCrudHandler(t)
	headers := Headers{}
	headers.SetFirst("Content-Type", "text/plain")
	resp := h.Handle(&Request{Method: "POST", Target: "/api/widgets", Body: []byte(`{}`), Headers: headers})
	assert.Equal(t, 415, resp.Status)
}

func TestCrudHandlerCreateRejectsCharsetQualifiedContentType(t *testing.T) {
	h := newCrudHandler(t)
	headers := Headers{}
	headers.SetFirst("Content-Type", "application/json; charset=utf-8")
	resp := h.Handle(&Request{Method: "POST", Target: "/api/widgets", Body: []byte(`{}`), Headers: headers})
	assert.Equal(t, 415, resp.Status)
}

func TestCrudHandlerGetMissingIsNotFound(t *testing.T) {
	h := newCrudHandler(t)
	resp := h.Handle(&Request{Method: "GET", Target: "/api/widgets/99"})
	assert.Equal(t, 404, resp.Status)
}

func TestCrudHandlerPutCreatesThenUpdates(t *testing.T) {
	h := newCrudHandler(t)

	first := h.Handle(&Request{Method: "PUT", Target: "/api/widgets/5", Body: []byte(`{"v":1}`)})
	assert.Equal(t, 201, first.Status)

	second := h.Handle(&Request{Method: "PUT", Target: "/api/widgets/5", Body: []byte(`{"v":2}`)})
	assert.Equal(t, 204, second.Status)

	getResp := h.Handle(&Request{Method: "GET", Target: "/api/widgets/5"})
	assert.Equal(t, `{"v":2}`, string(getResp.Body))
}

func TestCrudHandlerDeleteThenGetIsNotFound(t *testing.T) {
	h := newCrudHandler(t)
	h.Handle(&Request{Method: "PUT", Target: "/api/widgets/1", Body: []byte(`{}`)})

	del := h.Handle(&Request{Method: "DELETE", Target: "/api/widgets/1"})
	assert.Equal(t, 204, del.Status)

	get := h.Handle(&Request{Method: "GET", Target: "/api/widgets/1"})
	assert.Equal(t, 404, get.Status)
}

func TestCrudHandlerDeleteMissingIsNotFound(t *testing.T) {
	h := newCrudHandler(t)
	resp := h.Handle(&Request{Method: "DELETE", Target: "/api/widgets/1"})
	assert.Equal(t, 404, resp.Status)
}

func TestCrudHandlerListReturnsIDsSorted(t *testing.T) {
	h := newCrudHandler(t)
	h.Handle(&Request{Method: "POST", Target: "/api/widgets", Body: []byte(`{}`)})
	h.Handle(&Request{Method: "POST", Target: "/api/widgets", Body: []byte(`{}`)})

	resp := h.Handle(&Request{Method: "GET", Target: "/api/widgets"})
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, `["1","2"]`, string(resp.Body))
}

func TestCrudHandlerUnsupportedMethod(t *testing.T) {
	h := newCrudHandler(t)
	resp := h.Handle(&Request{Method: "PATCH", Target: "/api/widgets/1"})
	assert.Equal(t, 405, resp.Status)
}

func TestCrudHandlerPostWithIDIsBadRequest(t *testing.T) {
	h := newCrudHandler(t)
	resp := h.Handle(&Request{Method: "POST", Target: "/api/widgets/1", Body: []byte(`{}`)})
	assert.Equal(t, 400, resp.Status)
}

func TestCrudHandlerMissingEntityTypeIsBadRequest(t *testing.T) {
	h := newCrudHandler(t)
	resp := h.Handle(&Request{Method: "GET", Target: "/api/"})
	assert.Equal(t, 400, resp.Status)
}
