package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// progressTracker renders transfer progress as a terminal progress bar. The
// bar is created on the first update, once the total is known; an unknown
// total shows a spinner.
type progressTracker struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	bar   *progressbar.ProgressBar
}

var _ storagetypes.ProgressTracker = (*progressTracker)(nil)

func newProgressTracker(w io.Writer, label string) *progressTracker {
	return &progressTracker{w: w, label: label}
}

func (p *progressTracker) Update(current, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
	}
	_ = p.bar.Set64(current)
}

func (p *progressTracker) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *progressTracker) Error(error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Exit()
	}
}
