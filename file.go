package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/fileapi"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/localfile"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/download"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

func validateFile(share, directory, name string, cfg *storagetypes.TransferOptionConfig) error {
	if err := validation.ValidateShareName(share); err != nil {
		return err
	}
	if err := validation.ValidateDirectoryPath(directory); err != nil {
		return err
	}
	if err := validation.ValidateFileName(name); err != nil {
		return err
	}
	return validateTransfer(cfg)
}

func (c *Client) fileService(op, share, filePath string) (fileapi.ServiceAPI, error) {
	if c.files == nil {
		return nil, storageerrors.NewObjectError(op, share, filePath, c.filesErr)
	}
	return c.files, nil
}

// CreateFileFromStream creates an Azure file of size bytes and fills it from r,
// one range at a time. The size must be known. With more than one connection,
// r must be an io.ReaderAt or an io.Seeker.
//
// Errors:
//   - ErrInvalidInput: If a name, option, the reader or the size is invalid
//   - ErrUnsupportedCredential: If the client authenticates with a token credential
//   - ErrNotSeekable: If parallel upload was requested on a plain stream
//   - ErrContainerNotFound: If the share does not exist
//   - ErrChunkFailed: If a range exhausted its retries
//   - ErrCancelled: If ctx was cancelled
func (c *Client) CreateFileFromStream(
	ctx context.Context,
	share, directory, name string,
	r io.Reader,
	size int64,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	return c.createFile(ctx, "createFileFromStream", share, directory, name, r, size,
		contentTypeOf(cfg.ContentType, nil, name), cfg)
}

// CreateFileFromBytes creates an Azure file holding data.
func (c *Client) CreateFileFromBytes(
	ctx context.Context,
	share, directory, name string,
	data []byte,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	return c.createFile(ctx, "createFileFromBytes", share, directory, name, bytes.NewReader(data), int64(len(data)),
		contentTypeOf(cfg.ContentType, data, name), cfg)
}

// CreateFileFromText creates an Azure file holding UTF-8 text.
func (c *Client) CreateFileFromText(
	ctx context.Context,
	share, directory, name, text string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	cfg := c.transferConfig(opts)
	if cfg.ContentType == "" {
		cfg.ContentType = textContentType
	}
	return c.createFile(ctx, "createFileFromText", share, directory, name,
		bytes.NewReader([]byte(text)), int64(len(text)), cfg.ContentType, cfg)
}

// CreateFileFromPath uploads a local file to an Azure file.
func (c *Client) CreateFileFromPath(
	ctx context.Context,
	share, directory, name, localPath string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.UploadResult, error) {
	const op = "createFileFromPath"
	cfg := c.transferConfig(opts)

	f, size, err := c.openLocal(ctx, op, share, path.Join(directory, name), localPath, cfg)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.createFile(ctx, op, share, directory, name, f, size,
		contentTypeOf(cfg.ContentType, localfile.Sniff(c.fs, localPath), localPath), cfg)
}

func (c *Client) createFile(
	ctx context.Context,
	op, share, directory, name string,
	r io.Reader,
	size int64,
	contentType string,
	cfg *storagetypes.TransferOptionConfig,
) (*storagetypes.UploadResult, error) {
	filePath := path.Join(directory, name)
	if err := validateFile(share, directory, name, cfg); err != nil {
		return nil, c.reject(ctx, op, share, filePath, cfg, err)
	}
	if r == nil {
		return nil, c.reject(ctx, op, share, filePath, cfg,
			storageerrors.NewObjectError(op, share, filePath, storageerrors.ErrInvalidInput).
				WithMessage("reader cannot be nil"))
	}
	if size < 0 {
		return nil, c.reject(ctx, op, share, filePath, cfg,
			storageerrors.NewObjectError(op, share, filePath, storageerrors.ErrInvalidInput).
				WithMessage("file size must be known"))
	}
	files, err := c.fileService(op, share, filePath)
	if err != nil {
		return nil, c.reject(ctx, op, share, filePath, cfg, err)
	}

	start := time.Now()
	res, err := c.uploader(cfg, c.config.MaxRangeSize).File(ctx, files.File(share, directory, name), upload.Request{
		Container:   share,
		Directory:   directory,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		Metadata:    cfg.Metadata,
		Progress:    progressFunc(cfg),
	}, r)
	if err := c.finish(ctx, op, share, filePath, cfg, start, err); err != nil {
		return nil, err
	}
	res.Name = filePath
	return res, nil
}

// GetFileToStream downloads an Azure file, or the range set with WithRange,
// into w. It follows the same rules as GetBlobToStream.
func (c *Client) GetFileToStream(
	ctx context.Context,
	share, directory, name string,
	w io.Writer,
	opts ...storagetypes.TransferOption,
) (*storagetypes.DownloadResult, error) {
	return c.getFile(ctx, "getFileToStream", share, directory, name, w, c.transferConfig(opts))
}

// GetFileToBytes downloads an Azure file into memory.
func (c *Client) GetFileToBytes(
	ctx context.Context,
	share, directory, name string,
	opts ...storagetypes.TransferOption,
) ([]byte, error) {
	buf := download.NewBuffer(0)
	if _, err := c.getFile(ctx, "getFileToBytes", share, directory, name, buf, c.transferConfig(opts)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetFileToText downloads an Azure file as UTF-8 text.
func (c *Client) GetFileToText(
	ctx context.Context,
	share, directory, name string,
	opts ...storagetypes.TransferOption,
) (string, error) {
	data, err := c.GetFileToBytes(ctx, share, directory, name, opts...)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetFileToPath downloads an Azure file to a local file, creating or
// truncating it. The local file is removed when the download fails.
func (c *Client) GetFileToPath(
	ctx context.Context,
	share, directory, name, localPath string,
	opts ...storagetypes.TransferOption,
) (*storagetypes.DownloadResult, error) {
	const op = "getFileToPath"
	cfg := c.transferConfig(opts)
	filePath := path.Join(directory, name)
	if err := validateFile(share, directory, name, cfg); err != nil {
		return nil, c.reject(ctx, op, share, filePath, cfg, err)
	}
	if _, err := c.fileService(op, share, filePath); err != nil {
		return nil, c.reject(ctx, op, share, filePath, cfg, err)
	}
	return c.downloadToPath(ctx, op, share, filePath, localPath, cfg, func(w io.Writer) (*storagetypes.DownloadResult, error) {
		return c.getFile(ctx, op, share, directory, name, w, cfg)
	})
}

func (c *Client) getFile(
	ctx context.Context,
	op, share, directory, name string,
	w io.Writer,
	cfg *storagetypes.TransferOptionConfig,
) (*storagetypes.DownloadResult, error) {
	filePath := path.Join(directory, name)
	if err := validateFile(share, directory, name, cfg); err != nil {
		return nil, c.reject(ctx, op, share, filePath, cfg, err)
	}
	if w == nil {
		return nil, c.reject(ctx, op, share, filePath, cfg,
			storageerrors.NewObjectError(op, share, filePath, storageerrors.ErrInvalidInput).
				WithMessage("writer cannot be nil"))
	}
	files, err := c.fileService(op, share, filePath)
	if err != nil {
		return nil, c.reject(ctx, op, share, filePath, cfg, err)
	}

	start := time.Now()
	res, err := c.downloader(cfg).Download(ctx, download.FileSource{API: files.File(share, directory, name)}, download.Request{
		Container: share,
		Name:      filePath,
		Range:     cfg.Range,
		Progress:  progressFunc(cfg),
	}, w)
	if err := c.finish(ctx, op, share, filePath, cfg, start, err); err != nil {
		return nil, err
	}
	return res, nil
}
