package s3

import (
	"context"
	"io"
	"time"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/localfile"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// Upload writes size bytes from r to bucket/key. A negative size reads r to
// the end as a sequential multipart upload.
//
// With more than one connection, r must be an io.ReaderAt or an io.Seeker.
// A failed multipart upload is aborted so no parts are left behind.
//
// Errors:
//   - ErrInvalidInput: If the bucket, key, an option or the reader is invalid
//   - ErrNotSeekable: If parallel upload was requested on a plain stream
//   - ErrContainerNotFound: If the bucket does not exist
//   - ErrChunkFailed: If a part exhausted its retries
//   - ErrCancelled: If ctx was cancelled
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	size int64,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = localfile.TypeByExtension(key)
	}
	return c.upload(ctx, "upload", bucket, key, r, size, cfg)
}

// UploadFromPath uploads a local file. The content type is detected from the
// file content, then its extension, unless given.
func (c *Client) UploadFromPath(
	ctx context.Context,
	bucket, key, path string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	const op = "uploadFromPath"
	cfg := c.transferConfig(opts)

	f, size, err := localfile.Open(c.fs, path)
	if err != nil {
		return nil, c.reject(ctx, op, bucket, key, cfg, storageerrors.NewObjectError(op, bucket, key, err))
	}
	defer f.Close()

	cfg.ContentType = localfile.ContentType(cfg.ContentType, localfile.Sniff(c.fs, path), path)
	return c.upload(ctx, op, bucket, key, f, size, cfg)
}

func (c *Client) upload(
	ctx context.Context,
	op, bucket, key string,
	r io.Reader,
	size int64,
	cfg *storagetypes.TransferOptionConfig,
) (*storagetypes.UploadResult, error) {
	if err := validateObject(bucket, key, cfg); err != nil {
		return nil, c.reject(ctx, op, bucket, key, cfg, err)
	}
	if r == nil {
		return nil, c.reject(ctx, op, bucket, key, cfg,
			storageerrors.NewObjectError(op, bucket, key, storageerrors.ErrInvalidInput).
				WithMessage("reader cannot be nil"))
	}

	start := time.Now()
	u := upload.New(upload.Config{
		Transfer:  c.engineOptions(cfg),
		BlockSize: c.config.PartSize,
	})
	res, err := u.Object(ctx, c.api, upload.Request{
		Container:   bucket,
		Name:        key,
		Size:        size,
		ContentType: cfg.ContentType,
		Metadata:    cfg.Metadata,
		Progress:    progressFunc(cfg),
	}, r)
	if err := c.finish(ctx, op, bucket, key, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}

// Download writes bucket/key, or the range set with WithRange, into w.
//
// With more than one connection, w must be an io.WriterAt or an
// io.WriteSeeker. Objects of at least the single-get size are then fetched
// in ranged GETs pinned to the object's ETag.
//
// Errors:
//   - ErrInvalidInput: If the bucket, key or an option is invalid
//   - ErrNotSeekable: If parallel download was requested on a plain stream
//   - ErrNotFound: If the object does not exist
//   - ErrContainerNotFound: If the bucket does not exist
//   - ErrChunkFailed: If a range exhausted its retries
//   - ErrCancelled: If ctx was cancelled
func (c *Client) Download(
	ctx context.Context,
	bucket, key string,
	w io.Writer,
	opts ...storagetypes.TransferOption,
) (*storagetypes.DownloadResult, error) {
	return c.download(ctx, "download", bucket, key, w, c.transferConfig(opts))
}

// DownloadToPath downloads bucket/key to a local file, creating or
// truncating it. The local file is removed when the download fails.
func (c *Client) DownloadToPath(
	ctx context.Context,
	bucket, key, path string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.DownloadResult, error) {
	const op = "downloadToPath"
	cfg := c.transferConfig(opts)
	if err := validateObject(bucket, key, cfg); err != nil {
		return nil, c.reject(ctx, op, bucket, key, cfg, err)
	}

	f, err := localfile.Create(c.fs, path)
	if err != nil {
		return nil, c.reject(ctx, op, bucket, key, cfg, storageerrors.NewObjectError(op, bucket, key, err))
	}
	res, err := c.download(ctx, op, bucket, key, f, cfg)
	cerr := localfile.Close(c.fs, c.logger, f, path, err != nil)
	if err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, storageerrors.NewObjectError(op, bucket, key, cerr)
	}
	return res, nil
}

func (c *Client) download(
	ctx context.Context,
	op, bucket, key string,
	w io.Writer,
	cfg *storagetypes.TransferOptionConfig,
) (*storagetypes.DownloadResult, error) {
	if err := validateObject(bucket, key, cfg); err != nil {
		return nil, c.reject(ctx, op, bucket, key, cfg, err)
	}
	if w == nil {
		return nil, c.reject(ctx, op, bucket, key, cfg,
			storageerrors.NewObjectError(op, bucket, key, storageerrors.ErrInvalidInput).
				WithMessage("writer cannot be nil"))
	}

	start := time.Now()
	d := download.New(download.Config{
		Transfer:         c.engineOptions(cfg),
		MaxSingleGetSize: c.config.MaxSingleGetSize,
		ChunkSize:        c.config.MaxChunkGetSize,
	})
	res, err := d.Download(ctx, download.S3Source{API: c.api, Bucket: bucket, Key: key}, download.Request{
		Container: bucket,
		Name:      key,
		Range:     cfg.Range,
		Progress:  progressFunc(cfg),
	}, w)
	if err := c.finish(ctx, op, bucket, key, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}
