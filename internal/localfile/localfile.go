package localfile

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

const (
	// DefaultContentType is used when no content type is given or detected.
	DefaultContentType = "application/octet-stream"

	// SniffLen is how much of the content is inspected for its type.
	SniffLen = 512
)

// Open opens path for reading and returns it with its size.
func Open(fs billy.Filesystem, path string) (billy.File, int64, error) {
	if path == "" {
		return nil, 0, fmt.Errorf("%w: path cannot be empty", storageerrors.ErrInvalidInput)
	}
	info, err := fs.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%w: path points to a directory, not a file", storageerrors.ErrInvalidInput)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Create creates or truncates path as a download target.
func Create(fs billy.Filesystem, path string) (billy.File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", storageerrors.ErrInvalidInput)
	}
	return fs.Create(path)
}

// Close closes a download target created with Create. The file is removed
// when the download failed or the close itself fails, so no partial file
// is left behind. It returns the close error.
func Close(fs billy.Filesystem, logger *slog.Logger, f billy.File, path string, failed bool) error {
	cerr := f.Close()
	if failed || cerr != nil {
		if rerr := fs.Remove(path); rerr != nil && logger != nil {
			logger.Warn("failed to remove partial download", "path", path, "error", rerr)
		}
	}
	return cerr
}

// ContentType picks the stored content type: the explicit one, then the
// sniffed head, then the name's extension, then DefaultContentType.
func ContentType(explicit string, head []byte, name string) string {
	if explicit != "" {
		return explicit
	}
	if len(head) > 0 {
		if len(head) > SniffLen {
			head = head[:SniffLen]
		}
		if mt := mimetype.Detect(head); mt != nil && !mt.Is(DefaultContentType) {
			return mt.String()
		}
	}
	return TypeByExtension(name)
}

// TypeByExtension detects the content type from the name's extension.
func TypeByExtension(name string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}

// Sniff reads the head of a local file for content detection. It returns
// nil when the file cannot be read.
func Sniff(fs billy.Filesystem, path string) []byte {
	f, err := fs.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, SniffLen)
	n, _ := io.ReadFull(f, buf)
	return buf[:n]
}
