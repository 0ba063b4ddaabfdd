package chunked

import "sync"

// progress is the byte counter shared by all workers of one transfer.
// The callback runs under the same lock, so totals reach it in
// non-decreasing order.
type progress struct {
	mu        sync.Mutex
	completed int64
	chunks    int
	total     int64
	fn        func(current, total int64)
}

func newProgress(total int64, fn func(current, total int64)) *progress {
	return &progress{total: total, fn: fn}
}

// add records one successful chunk.
func (p *progress) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed += n
	p.chunks++
	if p.fn != nil {
		p.fn(p.completed, p.total)
	}
}

func (p *progress) snapshot() (bytes int64, chunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.chunks
}
