package confhttpd

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func pipeSession(t *testing.T, registry *Registry) (client net.Conn) {
	client, server := net.Pipe()
	go NewSession(server, registry, nil).Serve()
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSessionServesSingleRequest(t *testing.T) {
	root, err := Parse(`location /health HealthRequestHandler {}`)
	assert.NoError(t, err)
	registry, err := BuildRegistry(root)
	assert.NoError(t, err)

	client := pipeSession(t, registry)

	_, err = client.Write([]byte("GET /health HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	assert.NoError(t, err)

	br := bufio.NewReader(client)
	line, err := br.ReadString('\n')
	assert.NoError(t, err)
	assert.Contains(t, line, "200 OK")
}

func TestSessionKeepAliveServesMultipleRequests(t *testing.T) {
	root, err := Parse(`location /health HealthRequestHandler {}`)
	assert.NoError(t, err)
	registry, err := BuildRegistry(root)
	assert.NoError(t, err)

	client := pipeSession(t, registry)
	br := bufio.NewReader(client)

	for i := 0; i < 2; i++ {
		_, err = client.Write([]byte("GET /health HTTP/1.1\r\nHost: x\r\n\r\n"))
		assert.NoError(t, err)

		status, err := br.ReadString('\n')
		assert.NoError(t, err)
		assert.Contains(t, status, "200 OK")

		for {
			line, err := br.ReadString('\n')
			assert.NoError(t, err)
			if line == "\r\n" {
				break
			}
		}
		body := make([]byte, 2)
		_, err = io.ReadFull(br, body)
		assert.NoError(t, err)
		assert.Equal(t, "OK", string(body))
	}
}

func TestSessionMalformedRequestLineGets400(t *testing.T) {
	root, err := Parse(``)
	assert.NoError(t, err)
	registry, err := BuildRegistry(root)
	assert.NoError(t, err)

	client := pipeSession(t, registry)
	_, err = client.Write([]byte("NOT A REQUEST\r\n\r\n"))
	assert.NoError(t, err)

	br := bufio.NewReader(client)
	line, err := br.ReadString('\n')
	assert.NoError(t, err)
	assert.Contains(t, line, "400 Bad Request")
}

func TestWantsKeepAliveDefaults(t *testing.T) {
	req11 := &Request{Proto: "HTTP/1.1", Headers: Headers{}}
	resp := NewResponse(200)
	assert.True(t, wantsKeepAlive(req11, resp))

	req10 := &Request{Proto: "HTTP/1.0", Headers: Headers{}}
	assert.False(t, wantsKeepAlive(req10, resp))

	reqClose := &Request{Proto: "HTTP/1.1", Headers: Headers{}}
	reqClose.Headers.SetFirst("Connection", "close")
	assert.False(t, wantsKeepAlive(reqClose, resp))
}

func TestHandlerTypeName(t *testing.T) {
	assert.Equal(t, "HealthRequestHandler", handlerTypeName(&HealthRequestHandler{}))
}

// TestDispatchLimiterSerializesHandlerExecution proves the semaphore shared
// via WithDispatchLimiter bounds concurrent handler.Handle calls across
// distinct Sessions (spec.md §5's worker pool), independent of how many
// connections are open: two sessions sharing a limiter of size 1, both
// sleeping, must run their handlers one after another rather than overlap.
func TestDispatchLimiterSerializesHandlerExecution(t *testing.T) {
	root, err := Parse(`location /sleep SleepHandler { delay_ms 50; }`)
	assert.NoError(t, err)
	registry, err := BuildRegistry(root)
	assert.NoError(t, err)

	limiter := newDispatchLimiter(1)

	client1, server1 := net.Pipe()
	client2, server2 := net.Pipe()
	t.Cleanup(func() { client1.Close(); client2.Close() })

	go NewSession(server1, registry, nil).WithDispatchLimiter(limiter).Serve()
	go NewSession(server2, registry, nil).WithDispatchLimiter(limiter).Serve()

	start := time.Now()
	done := make(chan struct{}, 2)
	for _, c := range []net.Conn{client1, client2} {
		go func(c net.Conn) {
			_, err := c.Write([]byte("GET /sleep HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
			assert.NoError(t, err)
			br := bufio.NewReader(c)
			line, err := br.ReadString('\n')
			assert.NoError(t, err)
			assert.Contains(t, line, "200 OK")
			done <- struct{}{}
		}(c)
	}

	<-done
	<-done
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
