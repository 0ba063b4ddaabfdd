package pool

import (
	"sync"
)

// BufferPool manages reusable chunk buffers, one sync.Pool per buffer size.
type BufferPool struct {
	mu    sync.RWMutex
	pools map[int]*sync.Pool
}

// NewBufferPool creates an empty buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pools: make(map[int]*sync.Pool),
	}
}

func (bp *BufferPool) poolFor(size int) *sync.Pool {
	bp.mu.RLock()
	p, ok := bp.pools[size]
	bp.mu.RUnlock()
	if ok {
		return p
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if p, ok = bp.pools[size]; ok {
		return p
	}
	p = &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	}
	bp.pools[size] = p
	return p
}

// Get returns a buffer with length and capacity size.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	bufPtr := bp.poolFor(size).Get().(*[]byte)
	return (*bufPtr)[:size]
}

// Put returns a buffer to the pool matching its capacity.
// The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:cap(buf)]
	bp.poolFor(cap(buf)).Put(&buf)
}

// Sizes returns the number of distinct buffer sizes seen so far.
func (bp *BufferPool) Sizes() int {
	bp.mu.RLock()
	defer bp.mu.RUnlock()
	return len(bp.pools)
}

// Global buffer pool instance shared by all transfers in the process.
var globalBufferPool = NewBufferPool()

// Default returns the process-wide buffer pool.
func Default() *BufferPool {
	return globalBufferPool
}

// GetBuffer returns a buffer from the global pool for the specified size.
func GetBuffer(size int) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}
