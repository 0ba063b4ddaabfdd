package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// CreateAppendBlob creates an empty append blob, replacing any existing blob.
func (c *Client) CreateAppendBlob(
	ctx context.Context,
	container, name string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	const op = "createAppendBlob"
	cfg := c.transferConfig(opts)
	if err := validateBlob(container, name, cfg); err != nil {
		return nil, c.reject(ctx, op, container, name, cfg, err)
	}

	start := time.Now()
	res, err := c.uploader(cfg, c.config.MaxBlockSize).CreateAppendBlob(ctx, c.blobs.AppendBlob(container, name), upload.Request{
		Container:   container,
		Name:        name,
		ContentType: contentTypeOf(cfg.ContentType, nil, name),
		Metadata:    cfg.Metadata,
	})
	if err := c.finish(ctx, op, container, name, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}

// AppendBlobFromStream appends size bytes from r to an existing append blob.
// A negative size reads r to the end. Blocks are always appended one at a
// time in source order, whatever the connection setting.
//
// Content type and metadata options are ignored; they are set by CreateAppendBlob.
func (c *Client) AppendBlobFromStream(
	ctx context.Context,
	container, name string,
	r io.Reader,
	size int64,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	return c.appendBlob(ctx, "appendBlobFromStream", container, name, r, size, c.transferConfig(opts))
}

// AppendBlobFromBytes appends data to an existing append blob.
func (c *Client) AppendBlobFromBytes(
	ctx context.Context,
	container, name string,
	data []byte,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	return c.appendBlob(ctx, "appendBlobFromBytes", container, name,
		bytes.NewReader(data), int64(len(data)), c.transferConfig(opts))
}

// AppendBlobFromText appends UTF-8 text to an existing append blob.
func (c *Client) AppendBlobFromText(
	ctx context.Context,
	container, name, text string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	return c.appendBlob(ctx, "appendBlobFromText", container, name,
		bytes.NewReader([]byte(text)), int64(len(text)), c.transferConfig(opts))
}

// AppendBlobFromPath appends a local file to an existing append blob.
func (c *Client) AppendBlobFromPath(
	ctx context.Context,
	container, name, path string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	const op = "appendBlobFromPath"
	cfg := c.transferConfig(opts)

	f, size, err := c.openLocal(ctx, op, container, name, path, cfg)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.appendBlob(ctx, op, container, name, f, size, cfg)
}

func (c *Client) appendBlob(
	ctx context.Context,
	op, container, name string,
	r io.Reader,
	size int64,
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
	res, err := c.uploader(cfg, c.config.MaxBlockSize).AppendBlob(ctx, c.blobs.AppendBlob(container, name), upload.Request{
		Container: container,
		Name:      name,
		Size:      size,
		Progress:  progressFunc(cfg),
	}, r)
	if err := c.finish(ctx, op, container, name, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}
