package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrLimitExceeded is returned by LimitedReader once more than Max bytes
// are available.
var ErrLimitExceeded = errors.New("read limit exceeded")

// Buffers that grew past this are left to the GC.
const maxPooledCap = 8 << 20

var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledCap {
		return
	}
	bufPool.Put(b)
}

// DrainReader copies r into a pooled buffer, checking ctx between chunks.
// sizeHint, when positive, pre-sizes the buffer.  Hand the buffer back with
// ReleaseBuffer once its bytes have been copied out.
func DrainReader(ctx context.Context, r io.Reader, chunkSize int, sizeHint int64) (*bytes.Buffer, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	if sizeHint > 0 && sizeHint < maxPooledCap {
		buf.Grow(int(sizeHint))
	}
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		switch {
		case err == io.EOF:
			return buf, nil
		case err != nil:
			ReleaseBuffer(buf)
			return nil, err
		}
	}
}

// LimitedReader passes through at most Max bytes of R and fails with
// ErrLimitExceeded if R has more.  An input of exactly Max bytes succeeds.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max <= 0 {
		return l.R.Read(p)
	}
	if l.n > l.Max {
		return 0, ErrLimitExceeded
	}
	// Allow one byte past the limit so overflow is distinguishable from EOF.
	if remain := l.Max + 1 - l.n; int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	if l.n > l.Max {
		return n - int(l.n-l.Max), ErrLimitExceeded
	}
	return n, err
}

// ChunkedWriter splits writes into fixed-size chunks.
type ChunkedWriter struct {
	W         io.Writer
	ChunkSize int
}

func (c *ChunkedWriter) Write(p []byte) (int, error) {
	size := c.ChunkSize
	if size <= 0 {
		size = len(p)
	}
	total := 0
	for len(p) > 0 {
		end := size
		if end > len(p) {
			end = len(p)
		}
		n, err := c.W.Write(p[:end])
		total += n
		if err != nil {
			return total, err
		}
		p = p[end:]
	}
	return total, nil
}
