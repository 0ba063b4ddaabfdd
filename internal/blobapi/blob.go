// Package blobapi defines interfaces for Azure Blob operations to enable testing and mocking.
package blobapi

import (
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

// BlockBlobAPI is the subset of block blob operations used by uploads.
type BlockBlobAPI interface {
	// Upload writes a whole blob in one request
	Upload(
		ctx context.Context,
		body io.ReadSeekCloser,
		options *blockblob.UploadOptions,
	) (blockblob.UploadResponse, error)

	// StageBlock uploads one uncommitted block
	StageBlock(
		ctx context.Context,
		base64BlockID string,
		body io.ReadSeekCloser,
		options *blockblob.StageBlockOptions,
	) (blockblob.StageBlockResponse, error)

	// CommitBlockList makes the listed blocks the blob's content
	CommitBlockList(
		ctx context.Context,
		base64BlockIDs []string,
		options *blockblob.CommitBlockListOptions,
	) (blockblob.CommitBlockListResponse, error)
}

// AppendBlobAPI is the subset of append blob operations used by appends.
type AppendBlobAPI interface {
	// Create creates an empty append blob
	Create(ctx context.Context, options *appendblob.CreateOptions) (appendblob.CreateResponse, error)

	// AppendBlock appends one block at the end of the blob
	AppendBlock(
		ctx context.Context,
		body io.ReadSeekCloser,
		options *appendblob.AppendBlockOptions,
	) (appendblob.AppendBlockResponse, error)
}

// BlobAPI is the subset of generic blob operations used by downloads.
type BlobAPI interface {
	// GetProperties returns the blob's system properties and metadata
	GetProperties(ctx context.Context, options *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error)

	// DownloadStream reads the blob or a range of it
	DownloadStream(ctx context.Context, options *blob.DownloadStreamOptions) (blob.DownloadStreamResponse, error)
}

var (
	_ BlockBlobAPI  = (*blockblob.Client)(nil)
	_ AppendBlobAPI = (*appendblob.Client)(nil)
	_ BlobAPI       = (*blob.Client)(nil)
)

// ServiceAPI hands out per-blob clients.
type ServiceAPI interface {
	BlockBlob(container, name string) BlockBlobAPI
	AppendBlob(container, name string) AppendBlobAPI
	Blob(container, name string) BlobAPI
}

// Service adapts an azblob service client to ServiceAPI.
type Service struct {
	client *service.Client
}

var _ ServiceAPI = (*Service)(nil)

// NewService wraps client.
func NewService(client *service.Client) *Service {
	return &Service{client: client}
}

// BlockBlob returns a block blob client for container/name.
func (s *Service) BlockBlob(container, name string) BlockBlobAPI {
	return s.client.NewContainerClient(container).NewBlockBlobClient(name)
}

// AppendBlob returns an append blob client for container/name.
func (s *Service) AppendBlob(container, name string) AppendBlobAPI {
	return s.client.NewContainerClient(container).NewAppendBlobClient(name)
}

// Blob returns a generic blob client for container/name.
func (s *Service) Blob(container, name string) BlobAPI {
	return s.client.NewContainerClient(container).NewBlobClient(name)
}
