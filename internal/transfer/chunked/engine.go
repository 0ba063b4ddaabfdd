package chunked

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/pool"
)

// ChunkFunc performs one remote request for chunk c.
// For uploads buf holds exactly the chunk's bytes. For downloads the function
// must fill buf, which is exactly c.Length long. It may be called again for the
// same chunk when an earlier attempt failed.
type ChunkFunc func(ctx context.Context, c Chunk, buf []byte) error

// Observer receives chunk outcomes, typically to feed metrics.
type Observer interface {
	ChunkCompleted(mode Mode, bytes int64)
	ChunkRetried(mode Mode)
	ChunkFailed(mode Mode)
}

type nopObserver struct{}

func (nopObserver) ChunkCompleted(Mode, int64) {}
func (nopObserver) ChunkRetried(Mode)          {}
func (nopObserver) ChunkFailed(Mode)           {}

// Options configures an Engine.
type Options struct {
	// MaxConnections bounds concurrent chunk requests. 1 (or less) runs chunks
	// sequentially in index order.
	MaxConnections int

	// Retry is the per-chunk retry budget.
	Retry RetryPolicy

	// Progress is called after every successful chunk with the cumulative byte
	// count and the total (UnknownSize for streaming plans). Calls are serialized.
	Progress func(current, total int64)

	// Observer receives chunk outcomes. Optional.
	Observer Observer

	// Logger receives per-transfer debug and retry logs. Optional.
	Logger *slog.Logger

	// Buffers supplies chunk buffers. Defaults to the process-wide pool.
	Buffers *pool.BufferPool
}

// Result summarizes a completed transfer.
type Result struct {
	// ID identifies the transfer in logs.
	ID string

	// Chunks is the number of chunks transferred.
	Chunks int

	// Bytes is the number of bytes transferred.
	Bytes int64

	// Attempts is the number of chunk requests issued, retries included.
	Attempts int

	// Duration is how long the transfer took.
	Duration time.Duration
}

// Engine executes chunked transfers. It holds no per-transfer state and is
// safe for concurrent use.
type Engine struct {
	maxConnections int
	retry          RetryPolicy
	progress       func(current, total int64)
	observer       Observer
	logger         *slog.Logger
	buffers        *pool.BufferPool
}

// New creates an engine from opts.
func New(opts Options) *Engine {
	e := &Engine{
		maxConnections: max(opts.MaxConnections, 1),
		retry:          opts.Retry,
		progress:       opts.Progress,
		observer:       opts.Observer,
		logger:         opts.Logger,
		buffers:        opts.Buffers,
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.buffers == nil {
		e.buffers = pool.Default()
	}
	return e
}

// MaxConnections returns the concurrency bound.
func (e *Engine) MaxConnections() int {
	return e.maxConnections
}

// Upload reads plan's chunks from src and hands each to fn.
//
// Sequential runs read src front to back. Parallel runs need src to be an
// io.ReaderAt or a working io.Seeker. Streaming plans always run sequentially
// and read until src is exhausted.
func (e *Engine) Upload(ctx context.Context, plan Plan, src io.Reader, fn ChunkFunc) (*Result, error) {
	if plan.Mode() != Upload {
		return nil, fmt.Errorf("%w: upload needs an upload plan, got %v", storageerrors.ErrInvalidInput, plan.Mode())
	}
	if src == nil || fn == nil {
		return nil, fmt.Errorf("%w: source and chunk function are required", storageerrors.ErrInvalidInput)
	}

	parallel := e.maxConnections > 1 && !plan.Streaming()
	var (
		ra     io.ReaderAt
		finish finishFunc
		err    error
	)
	if parallel {
		if ra, finish, err = newReaderAt(src); err != nil {
			return nil, err
		}
	}

	r := e.newRun(ctx, plan)
	switch {
	case plan.Streaming():
		err = r.uploadStream(ctx, src, fn)
	case !parallel:
		err = r.uploadSequential(ctx, src, fn)
	default:
		err = r.parallel(ctx, fn,
			func(c Chunk, buf []byte) error {
				if rerr := readFullAt(ra, buf, c.Offset); rerr != nil {
					return fmt.Errorf("read chunk %d at offset %d: %w", c.Index, c.Offset, rerr)
				}
				return nil
			},
			nil,
		)
		if err == nil {
			err = finish(plan.TotalSize())
		}
	}
	return r.finish(ctx, err)
}

// Download fetches plan's chunks with fn and writes them to dst.
//
// Sequential runs append to dst in index order. Parallel runs need dst to be an
// io.WriterAt or a working io.WriteSeeker.
func (e *Engine) Download(ctx context.Context, plan Plan, dst io.Writer, fn ChunkFunc) (*Result, error) {
	if plan.Mode() != Download {
		return nil, fmt.Errorf("%w: download needs a download plan, got %v", storageerrors.ErrInvalidInput, plan.Mode())
	}
	if dst == nil || fn == nil {
		return nil, fmt.Errorf("%w: destination and chunk function are required", storageerrors.ErrInvalidInput)
	}

	var (
		wa     io.WriterAt
		finish finishFunc
		err    error
	)
	if e.maxConnections > 1 {
		if wa, finish, err = newWriterAt(dst); err != nil {
			return nil, err
		}
	}

	r := e.newRun(ctx, plan)
	if e.maxConnections == 1 {
		err = r.downloadSequential(ctx, dst, fn)
	} else {
		err = r.parallel(ctx, fn,
			nil,
			func(c Chunk, buf []byte) error {
				if _, werr := wa.WriteAt(buf, c.Offset); werr != nil {
					return fmt.Errorf("write chunk %d at offset %d: %w", c.Index, c.Offset, werr)
				}
				return nil
			},
		)
		if err == nil {
			err = finish(plan.TotalSize())
		}
	}
	return r.finish(ctx, err)
}

// run is the state of one transfer.
type run struct {
	e        *Engine
	plan     Plan
	id       string
	logger   *slog.Logger
	progress *progress
	attempts atomic.Int64
	start    time.Time
}

func (e *Engine) newRun(ctx context.Context, plan Plan) *run {
	id := uuid.NewString()
	r := &run{
		e:        e,
		plan:     plan,
		id:       id,
		logger:   e.logger.With("transfer_id", id, "mode", plan.Mode().String()),
		progress: newProgress(plan.TotalSize(), e.progress),
		start:    time.Now(),
	}
	r.logger.DebugContext(ctx, "transfer started",
		"total_size", plan.TotalSize(),
		"chunk_size", plan.ChunkSize(),
		"chunks", plan.NumChunks(),
		"max_connections", e.maxConnections,
	)
	return r
}

func (r *run) finish(ctx context.Context, err error) (*Result, error) {
	bytes, chunks := r.progress.snapshot()
	res := &Result{
		ID:       r.id,
		Chunks:   chunks,
		Bytes:    bytes,
		Attempts: int(r.attempts.Load()),
		Duration: time.Since(r.start),
	}
	if err != nil {
		r.logger.WarnContext(ctx, "transfer failed",
			"chunks_done", chunks,
			"bytes_done", bytes,
			"error", err,
		)
		return nil, err
	}
	r.logger.DebugContext(ctx, "transfer completed",
		"chunks", chunks,
		"bytes", bytes,
		"attempts", res.Attempts,
		"duration", res.Duration,
	)
	return res, nil
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", storageerrors.ErrCancelled, cause)
}

// attempt runs fn for c until it succeeds or the retry budget is spent.
func (r *run) attempt(ctx context.Context, c Chunk, buf []byte, fn ChunkFunc, abort <-chan struct{}) error {
	mode := r.plan.Mode()
	state := r.e.retry.newState()
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if isClosed(abort) {
			return errAborted
		}

		state.attempts++
		r.attempts.Add(1)
		err := fn(ctx, c, buf)
		if err == nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cancelled(cerr)
		}

		if state.exhausted() {
			r.e.observer.ChunkFailed(mode)
			return &storageerrors.ChunkError{
				Index:    c.Index,
				Offset:   c.Offset,
				Length:   c.Length,
				Attempts: state.attempts,
				Err:      err,
			}
		}

		r.e.observer.ChunkRetried(mode)
		r.logger.WarnContext(ctx, "chunk attempt failed, retrying",
			"chunk", c.Index,
			"offset", c.Offset,
			"attempt", state.attempts,
			"max_attempts", state.maxAttempts,
			"wait", state.wait,
			"error", err,
		)
		if werr := state.sleep(ctx, abort); werr != nil {
			if errors.Is(werr, errAborted) {
				return werr
			}
			return cancelled(werr)
		}
	}
}

// isClosed reports whether ch is closed. A nil channel is never closed.
func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (r *run) completed(ctx context.Context, c Chunk) {
	r.e.observer.ChunkCompleted(r.plan.Mode(), c.Length)
	r.progress.add(c.Length)
	r.logger.DebugContext(ctx, "chunk completed", "chunk", c.Index, "offset", c.Offset, "length", c.Length)
}

func (r *run) uploadSequential(ctx context.Context, src io.Reader, fn ChunkFunc) error {
	buf := r.e.buffers.Get(r.plan.bufferSize())
	defer r.e.buffers.Put(buf)

	for _, c := range r.plan.Chunks() {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		b := buf[:c.Length]
		if _, err := io.ReadFull(src, b); err != nil {
			return fmt.Errorf("read chunk %d at offset %d: %w", c.Index, c.Offset, err)
		}
		if err := r.attempt(ctx, c, b, fn, nil); err != nil {
			return err
		}
		r.completed(ctx, c)
	}
	return nil
}

func (r *run) uploadStream(ctx context.Context, src io.Reader, fn ChunkFunc) error {
	if r.e.maxConnections > 1 {
		r.logger.DebugContext(ctx, "streaming upload runs sequentially", "max_connections", r.e.maxConnections)
	}

	buf := r.e.buffers.Get(r.plan.bufferSize())
	defer r.e.buffers.Put(buf)

	var offset int64
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}

		n, err := io.ReadFull(src, buf)
		last := false
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			last = true
		case err != nil:
			return fmt.Errorf("read chunk %d at offset %d: %w", index, offset, err)
		}

		c := Chunk{Index: index, Offset: offset, Length: int64(n)}
		if err := r.attempt(ctx, c, buf[:n], fn, nil); err != nil {
			return err
		}
		r.completed(ctx, c)
		offset += int64(n)

		if last {
			return nil
		}
	}
}

func (r *run) downloadSequential(ctx context.Context, dst io.Writer, fn ChunkFunc) error {
	buf := r.e.buffers.Get(r.plan.bufferSize())
	defer r.e.buffers.Put(buf)

	for _, c := range r.plan.Chunks() {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		b := buf[:c.Length]
		if err := r.attempt(ctx, c, b, fn, nil); err != nil {
			return err
		}
		if _, err := dst.Write(b); err != nil {
			return fmt.Errorf("write chunk %d at offset %d: %w", c.Index, c.Offset, err)
		}
		r.completed(ctx, c)
	}
	return nil
}

// parallel dispatches every chunk to a pool of at most maxConnections workers.
// before fills the buffer ahead of fn and after consumes it once fn succeeded.
// The first failure stops dispatch; workers already running finish their
// current attempt and any retry wait is cut short.
func (r *run) parallel(ctx context.Context, fn ChunkFunc, before, after func(Chunk, []byte) error) error {
	var (
		g        errgroup.Group
		once     sync.Once
		firstErr error
		abort    = make(chan struct{})
	)
	g.SetLimit(r.e.maxConnections)

	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			close(abort)
		})
	}

	chunks := r.plan.Chunks()
	for _, c := range chunks {
		if isClosed(abort) || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if isClosed(abort) {
				return nil
			}

			buf := r.e.buffers.Get(int(c.Length))
			defer r.e.buffers.Put(buf)

			if before != nil {
				if err := before(c, buf); err != nil {
					fail(err)
					return nil
				}
			}
			if err := r.attempt(ctx, c, buf, fn, abort); err != nil {
				if !errors.Is(err, errAborted) {
					fail(err)
				}
				return nil
			}
			if after != nil {
				if err := after(c, buf); err != nil {
					r.e.observer.ChunkFailed(r.plan.Mode())
					fail(err)
					return nil
				}
			}
			r.completed(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	if firstErr != nil {
		return firstErr
	}
	if _, done := r.progress.snapshot(); done < len(chunks) {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
	}
	return nil
}
