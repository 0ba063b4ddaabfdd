package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

const (
	// DefaultMaxSingleGetSize is the smallest range downloaded in chunks.
	DefaultMaxSingleGetSize = 64 * 1024 * 1024

	// DefaultChunkSize is the size of each ranged request.
	DefaultChunkSize = chunked.DefaultChunkSize
)

// ErrModified reports that the remote content changed while it was being read.
var ErrModified = errors.New("content modified during download")

// Request describes one download.
type Request struct {
	// Container is the blob container, file share or bucket
	Container string

	// Name is the blob name, file path or object key
	Name string

	// Range limits the download to an inclusive byte range. Optional.
	Range *storagetypes.ByteRange

	// Progress receives cumulative byte counts. Optional.
	Progress func(current, total int64)
}

// Config configures a Downloader.
type Config struct {
	// Transfer is the engine configuration. Its Progress field is replaced by
	// the progress function of each request.
	Transfer chunked.Options

	// MaxSingleGetSize is the chunked download threshold. Defaults to DefaultMaxSingleGetSize.
	MaxSingleGetSize int64

	// ChunkSize is the ranged request size. Defaults to DefaultChunkSize.
	ChunkSize int64
}

// Downloader runs downloads against a Source.
type Downloader struct {
	transfer  chunked.Options
	singleGet int64
	chunkSize int64
	logger    *slog.Logger
}

// New creates a Downloader.
func New(cfg Config) *Downloader {
	d := &Downloader{
		transfer:  cfg.Transfer,
		singleGet: cfg.MaxSingleGetSize,
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Transfer.Logger,
	}
	if d.singleGet <= 0 {
		d.singleGet = DefaultMaxSingleGetSize
	}
	if d.chunkSize <= 0 {
		d.chunkSize = DefaultChunkSize
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Download writes the requested range of src to dst.
//
// With more than one connection, dst must support positioned writes and is
// checked before any request is made. The remote size is then fetched and a
// range of at least the single-get threshold is downloaded in chunks pinned
// to the remote ETag. Every other download is one streamed request.
func (d *Downloader) Download(
	ctx context.Context,
	src Source,
	req Request,
	dst io.Writer,
) (*storagetypes.DownloadResult, error) {
	start := time.Now()
	offset, count, err := requestedRange(req.Range)
	if err != nil {
		return nil, err
	}

	if d.transfer.MaxConnections <= 1 {
		return d.single(ctx, src, req, dst, offset, count, start)
	}

	if err := chunked.CanWriteAt(dst); err != nil {
		return nil, err
	}
	props, err := src.Properties(ctx)
	if err != nil {
		return nil, err
	}
	length, err := resolveLength(props.Size, offset, count)
	if err != nil {
		return nil, err
	}
	if length < d.singleGet {
		return d.single(ctx, src, req, dst, offset, length, start)
	}

	plan, err := chunked.NewPlan(chunked.Download, length, d.chunkSize)
	if err != nil {
		return nil, err
	}
	d.logger.DebugContext(ctx, "downloading in chunks",
		"container", req.Container, "name", req.Name,
		"offset", offset, "length", length, "etag", props.ETag)

	opts := d.transfer
	opts.Progress = req.Progress
	res, err := chunked.New(opts).Download(ctx, plan, dst,
		func(ctx context.Context, c chunked.Chunk, buf []byte) error {
			resp, err := src.Range(ctx, offset+c.Offset, c.Length, props.ETag)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if _, err := io.ReadFull(resp.Body, buf); err != nil {
				return fmt.Errorf("read range at %d: %w", offset+c.Offset, err)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	return &storagetypes.DownloadResult{
		Container:   req.Container,
		Name:        req.Name,
		Size:        res.Bytes,
		ETag:        props.ETag,
		ContentType: props.ContentType,
		Chunks:      res.Chunks,
		Duration:    time.Since(start),
	}, nil
}

// single streams one request into dst. A count of 0 reads to the end.
func (d *Downloader) single(
	ctx context.Context,
	src Source,
	req Request,
	dst io.Writer,
	offset, count int64,
	start time.Time,
) (*storagetypes.DownloadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storageerrors.ErrCancelled, err)
	}
	resp, err := src.Range(ctx, offset, count, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	report(req.Progress, 0, resp.Length)
	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%w: %w", storageerrors.ErrCancelled, cerr)
		}
		return nil, fmt.Errorf("copy response body: %w", err)
	}
	report(req.Progress, n, n)

	return &storagetypes.DownloadResult{
		Container:   req.Container,
		Name:        req.Name,
		Size:        n,
		ETag:        resp.ETag,
		ContentType: resp.ContentType,
		Duration:    time.Since(start),
	}, nil
}

// requestedRange converts an inclusive range to an offset and a count, where
// a count of 0 means to the end.
func requestedRange(r *storagetypes.ByteRange) (offset, count int64, err error) {
	if r == nil {
		return 0, 0, nil
	}
	if r.Start < 0 {
		return 0, 0, fmt.Errorf("%w: range start %d is negative", storageerrors.ErrInvalidInput, r.Start)
	}
	if r.End < 0 {
		return r.Start, 0, nil
	}
	if r.End < r.Start {
		return 0, 0, fmt.Errorf("%w: range end %d is before start %d", storageerrors.ErrInvalidInput, r.End, r.Start)
	}
	return r.Start, r.End - r.Start + 1, nil
}

// resolveLength clips the requested range to the remote size.
func resolveLength(size, offset, count int64) (int64, error) {
	if offset > 0 && offset >= size {
		return 0, fmt.Errorf("%w: range start %d is beyond the size %d", storageerrors.ErrInvalidInput, offset, size)
	}
	available := size - offset
	if count == 0 || count > available {
		return available, nil
	}
	return count, nil
}

func report(progress func(current, total int64), current, total int64) {
	if progress != nil {
		progress(current, total)
	}
}
