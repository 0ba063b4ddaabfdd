package download

import (
	"fmt"
	"sync"
)

// Buffer is an in-memory destination supporting both sequential and
// positioned writes. It grows to fit the highest offset written.
type Buffer struct {
	mu  sync.Mutex
	buf []byte
	pos int64
}

// NewBuffer creates a Buffer with room for size bytes.
func NewBuffer(size int64) *Buffer {
	return &Buffer{buf: make([]byte, 0, max(size, 0))}
}

// Write appends p at the current position.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.writeAt(p, b.pos)
	b.pos += int64(n)
	return n, nil
}

// WriteAt writes p at off.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeAt(p, off), nil
}

func (b *Buffer) writeAt(p []byte, off int64) int {
	end := off + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			grown := make([]byte, end, max(end, 2*int64(cap(b.buf))))
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	return copy(b.buf[off:], p)
}

// Bytes returns the buffered content.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf
}
