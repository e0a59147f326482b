package confhttpd

import (
	"bufio"
	"io"
	"sync"
)

// Pool supplies bufio.Reader/Writer pairs to Sessions. A connection's
// keep-alive lifetime can span many requests, but the Pool itself is
// process-lifetime: returning a pair after one connection closes lets the
// next accepted connection reuse its buffers instead of allocating new ones.
type Pool struct {
	readerPool *sync.Pool
	writerPool *sync.Pool
}

const sessionBufferSize = 4096

// newPool returns a new instance of the Pool.
func newPool() *Pool {
	return &Pool{
		readerPool: &sync.Pool{
			New: func() interface{} {
				return bufio.NewReaderSize(nil, sessionBufferSize)
			},
		},
		writerPool: &sync.Pool{
			New: func() interface{} {
				return bufio.NewWriterSize(nil, sessionBufferSize)
			},
		},
	}
}

// Reader returns a *bufio.Reader from p reset to read from r.
func (p *Pool) Reader(r io.Reader) *bufio.Reader {
	br := p.readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader returns br to p for reuse by a later connection.
func (p *Pool) PutReader(br *bufio.Reader) {
	br.Reset(nil)
	p.readerPool.Put(br)
}

// Writer returns a *bufio.Writer from p reset to write to w.
func (p *Pool) Writer(w io.Writer) *bufio.Writer {
	bw := p.writerPool.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// PutWriter returns bw to p for reuse by a later connection.
func (p *Pool) PutWriter(bw *bufio.Writer) {
	bw.Reset(nil)
	p.writerPool.Put(bw)
}
