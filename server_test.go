package confhttpd

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServerServesAcceptedConnections(t *testing.T) {
	root, err := Parse(`location /health HealthRequestHandler {}`)
	assert.NoError(t, err)
	registry, err := BuildRegistry(root)
	assert.NoError(t, err)

	nl, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	srv := NewServer(registry, nil)
	srv.Workers = 2

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.Serve(newListener(nl.(*net.TCPListener))) }()

	conn, err := net.Dial("tcp", nl.Addr().String())
	assert.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /health HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
	assert.NoError(t, err)

	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	assert.NoError(t, err)
	assert.Contains(t, line, "200 OK")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-serveErrCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServerAcceptsMoreConnectionsThanWorkerCount(t *testing.T) {
	root, err := Parse(`location /health HealthRequestHandler {}`)
	assert.NoError(t, err)
	registry, err := BuildRegistry(root)
	assert.NoError(t, err)

	nl, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	srv := NewServer(registry, nil)
	srv.Workers = 1

	go srv.Serve(newListener(nl.(*net.TCPListener)))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	// These connections never send a request, so each one's Session sits
	// blocked reading forever. With a fixed-size pool draining a shared
	// channel (Workers=1), two idle connections alone would occupy every
	// worker and the accept loop would block on the next connection
	// indefinitely. With one goroutine per connection, idle connections
	// never hold back the accept loop.
	idle1, err := net.Dial("tcp", nl.Addr().String())
	assert.NoError(t, err)
	defer idle1.Close()
	idle2, err := net.Dial("tcp", nl.Addr().String())
	assert.NoError(t, err)
	defer idle2.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := net.Dial("tcp", nl.Addr().String())
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		conn.Write([]byte("GET /health HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"))
		br := bufio.NewReader(conn)
		line, err := br.ReadString('\n')
		assert.NoError(t, err)
		assert.Contains(t, line, "200 OK")
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("accept loop blocked once idle connections reached the worker count")
	}
}

func TestServerWorkerCountDefaultsToAtLeastTwo(t *testing.T) {
	srv := NewServer(nil, nil)
	assert.GreaterOrEqual(t, srv.workerCount(), 2)
}

func TestServerWorkerCountHonorsOverride(t *testing.T) {
	srv := NewServer(nil, nil)
	srv.Workers = 7
	assert.Equal(t, 7, srv.workerCount())
}
