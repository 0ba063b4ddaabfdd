// Package fileapi defines interfaces for Azure Files operations to enable testing and mocking.
package fileapi

import (
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/service"
)

// FileAPI is the subset of file operations used by transfers.
type FileAPI interface {
	// Create creates a file of the given length with no content
	Create(ctx context.Context, fileContentLength int64, options *file.CreateOptions) (file.CreateResponse, error)

	// UploadRange writes body at offset
	UploadRange(
		ctx context.Context,
		offset int64,
		body io.ReadSeekCloser,
		options *file.UploadRangeOptions,
	) (file.UploadRangeResponse, error)

	// GetProperties returns the file's system properties and metadata
	GetProperties(ctx context.Context, options *file.GetPropertiesOptions) (file.GetPropertiesResponse, error)

	// DownloadStream reads the file or a range of it
	DownloadStream(ctx context.Context, options *file.DownloadStreamOptions) (file.DownloadStreamResponse, error)
}

var _ FileAPI = (*file.Client)(nil)

// ServiceAPI hands out per-file clients.
type ServiceAPI interface {
	// File returns a client for share/directory/name. An empty directory is the share root.
	File(share, directory, name string) FileAPI
}

// Service adapts an azfile service client to ServiceAPI.
type Service struct {
	client *service.Client
}

var _ ServiceAPI = (*Service)(nil)

// NewService wraps client.
func NewService(client *service.Client) *Service {
	return &Service{client: client}
}

// File returns a file client.
func (s *Service) File(share, directory, name string) FileAPI {
	sc := s.client.NewShareClient(share)
	if directory == "" {
		return sc.NewRootDirectoryClient().NewFileClient(name)
	}
	return sc.NewDirectoryClient(directory).NewFileClient(name)
}
