package storage

import (
	"context"
	"io"

	"github.com/go-git/go-billy/v5"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/localfile"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// contentTypeOf picks the stored content type: the explicit option, then the
// sniffed content, then the name's extension, then DefaultContentType.
func contentTypeOf(explicit string, head []byte, name string) string {
	return localfile.ContentType(explicit, head, name)
}

// openLocal opens a local file for upload and returns its size.
func (c *Client) openLocal(
	ctx context.Context,
	op, container, name, path string,
	cfg *storagetypes.TransferOptionConfig,
) (billy.File, int64, error) {
	f, size, err := localfile.Open(c.fs, path)
	if err != nil {
		return nil, 0, c.reject(ctx, op, container, name, cfg, storageerrors.NewObjectError(op, container, name, err))
	}
	return f, size, nil
}

// downloadToPath runs get against a freshly created local file and removes
// the file again when get fails.
func (c *Client) downloadToPath(
	ctx context.Context,
	op, container, name, path string,
	cfg *storagetypes.TransferOptionConfig,
	get func(w io.Writer) (*storagetypes.DownloadResult, error),
) (*storagetypes.DownloadResult, error) {
	f, err := localfile.Create(c.fs, path)
	if err != nil {
		return nil, c.reject(ctx, op, container, name, cfg, storageerrors.NewObjectError(op, container, name, err))
	}

	res, err := get(f)
	cerr := localfile.Close(c.fs, c.logger, f, path, err != nil)
	if err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, storageerrors.NewObjectError(op, container, name, cerr)
	}
	return res, nil
}
