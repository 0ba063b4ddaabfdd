package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/localfile"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

const textContentType = "text/plain; charset=utf-8"

func validateBlob(container, name string, cfg *storagetypes.TransferOptionConfig) error {
	if err := validation.ValidateContainerName(container); err != nil {
		return err
	}
	if err := validation.ValidateBlobName(name); err != nil {
		return err
	}
	return validateTransfer(cfg)
}

// CreateBlobFromStream uploads size bytes from r as a block blob, replacing
// any existing blob. A negative size reads r to the end.
//
// Blobs smaller than the single-put threshold (64 MiB by default) are sent in
// one request. Larger or unsized blobs are staged in blocks and committed
// once every block succeeded. With more than one connection, r must be an
// io.ReaderAt or an io.Seeker; unsized streams are always sent sequentially.
//
// Errors:
//   - ErrInvalidInput: If a name, option or the reader is invalid
//   - ErrNotSeekable: If parallel upload was requested on a plain stream
//   - ErrContainerNotFound: If the container does not exist
//   - ErrChunkFailed: If a block exhausted its retries (see ChunkError)
//   - ErrCancelled: If ctx was cancelled
func (c *Client) CreateBlobFromStream(
	ctx context.Context,
	container, name string,
	r io.Reader,
	size int64,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	return c.createBlob(ctx, "createBlobFromStream", container, name, r, size,
		contentTypeOf(cfg.ContentType, nil, name), cfg)
}

// CreateBlobFromBytes uploads data as a block blob.
func (c *Client) CreateBlobFromBytes(
	ctx context.Context,
	container, name string,
	data []byte,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	return c.createBlob(ctx, "createBlobFromBytes", container, name, bytes.NewReader(data), int64(len(data)),
		contentTypeOf(cfg.ContentType, data, name), cfg)
}

// CreateBlobFromText uploads text as a UTF-8 block blob.
func (c *Client) CreateBlobFromText(
	ctx context.Context,
	container, name, text string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = textContentType
	}
	return c.createBlob(ctx, "createBlobFromText", container, name, bytes.NewReader([]byte(text)), int64(len(text)),
		cfg.ContentType, cfg)
}

// CreateBlobFromPath uploads a local file as a block blob. The content type
// is detected from the file content, then its extension, unless given.
func (c *Client) CreateBlobFromPath(
	ctx context.Context,
	container, name, path string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	const op = "createBlobFromPath"
	cfg := c.transferConfig(opts)

	f, size, err := c.openLocal(ctx, op, container, name, path, cfg)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.createBlob(ctx, op, container, name, f, size,
		contentTypeOf(cfg.ContentType, localfile.Sniff(c.fs, path), path), cfg)
}

func (c *Client) createBlob(
	ctx context.Context,
	op, container, name string,
	r io.Reader,
	size int64,
	contentType string,
	cfg *storagetypes.TransferOptionConfig,
) (*storagetypes.UploadResult, error) {
	if err := validateBlob(container, name, cfg); err != nil {
		return nil, c.reject(ctx, op, container, name, cfg, err)
	}
	if r == nil {
		return nil, c.reject(ctx, op, container, name, cfg,
			storageerrors.NewObjectError(op, container, name, storageerrors.ErrInvalidInput).
				WithMessage("reader cannot be nil"))
	}

	start := time.Now()
	res, err := c.uploader(cfg, c.config.MaxBlockSize).BlockBlob(ctx, c.blobs.BlockBlob(container, name), upload.Request{
		Container:   container,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		Metadata:    cfg.Metadata,
		Progress:    progressFunc(cfg),
	}, r)
	if err := c.finish(ctx, op, container, name, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}

// GetBlobToStream downloads a blob, or the range set with WithRange, into w.
//
// With more than one connection, w must be an io.WriterAt or an
// io.WriteSeeker; this is checked before any request is made. Ranges of at
// least 64 MiB are then downloaded in parallel chunks pinned to the blob's
// ETag. Everything else is one streamed request.
//
// Errors:
//   - ErrInvalidInput: If a name or option is invalid
//   - ErrNotSeekable: If parallel download was requested on a plain stream
//   - ErrNotFound: If the blob does not exist
//   - ErrChunkFailed: If a range exhausted its retries
//   - ErrCancelled: If ctx was cancelled
func (c *Client) GetBlobToStream(
	ctx context.Context,
	container, name string,
	w io.Writer,
	opts ...storagetypes.TransferOption,
) (*storagetypes.DownloadResult, error) {
	return c.getBlob(ctx, "getBlobToStream", container, name, w, c.transferConfig(opts))
}

// GetBlobToBytes downloads a blob into memory.
func (c *Client) GetBlobToBytes(
	ctx context.Context,
	container, name string,
	opts ...storagetypes.TransferOption,
) ([]byte, error) {
	buf := download.NewBuffer(0)
	if _, err := c.getBlob(ctx, "getBlobToBytes", container, name, buf, c.transferConfig(opts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetBlobToText downloads a blob as UTF-8 text.
func (c *Client) GetBlobToText(
	ctx context.Context,
	container, name string,
	opts ...storagetypes.TransferOption,
) (string, error) {
	data, err := c.GetBlobToBytes(ctx, container, name, opts...)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetBlobToPath downloads a blob to a local file, creating or truncating it.
// The file is removed when the download fails.
func (c *Client) GetBlobToPath(
	ctx context.Context,
	container, name, path string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.DownloadResult, error) {
	const op = "getBlobToPath"
	cfg := c.transferConfig(opts)
	if err := validateBlob(container, name, cfg); err != nil {
		return nil, c.reject(ctx, op, container, name, cfg, err)
	}
	return c.downloadToPath(ctx, op, container, name, path, cfg, func(w io.Writer) (*storagetypes.DownloadResult, error) {
		return c.getBlob(ctx, op, container, name, w, cfg)
	})
}

func (c *Client) getBlob(
	ctx context.Context,
	op, container, name string,
	w io.Writer,
	cfg *storagetypes.TransferOptionConfig,
) (*storagetypes.DownloadResult, error) {
	if err := validateBlob(container, name, cfg); err != nil {
		return nil, c.reject(ctx, op, container, name, cfg, err)
	}
	if w == nil {
		return nil, c.reject(ctx, op, container, name, cfg,
			storageerrors.NewObjectError(op, container, name, storageerrors.ErrInvalidInput).
				WithMessage("writer cannot be nil"))
	}

	start := time.Now()
	res, err := c.downloader(cfg).Download(ctx, download.BlobSource{API: c.blobs.Blob(container, name)}, download.Request{
		Container: container,
		Name:      name,
		Range:     cfg.Range,
		Progress:  progressFunc(cfg),
	}, w)
	if err := c.finish(ctx, op, container, name, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}
