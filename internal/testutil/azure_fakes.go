package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"

	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/blobapi"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/fileapi"
)

// StoredBlob is a blob held by BlobStore.
type StoredBlob struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
	ETag        string
	Append      bool
	Blocks      []string
}

// BlobStore is an in-memory blob service implementing blobapi.ServiceAPI.
// Hooks run before the matching operation and fail it when they return an error.
type BlobStore struct {
	mu         sync.Mutex
	containers map[string]bool
	blobs      map[string]*StoredBlob
	staged     map[string]map[string][]byte
	calls      map[string]int
	etag       int

	UploadHook      func(container, name string) error
	StageBlockHook  func(container, name, blockID string) error
	AppendBlockHook func(container, name string) error
	DownloadHook    func(container, name string, offset, count int64) error
}

var _ blobapi.ServiceAPI = (*BlobStore)(nil)

// NewBlobStore creates a store holding the given (empty) containers.
func NewBlobStore(containers ...string) *BlobStore {
	s := &BlobStore{
		containers: map[string]bool{},
		blobs:      map[string]*StoredBlob{},
		staged:     map[string]map[string][]byte{},
		calls:      map[string]int{},
	}
	for _, c := range containers {
		s.containers[c] = true
	}
	return s
}

// Put seeds a block blob.
func (s *BlobStore) Put(container, name string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[container] = true
	s.blobs[container+"/"+name] = &StoredBlob{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		ETag:        s.nextETag(),
	}
}

// Get returns a copy of a stored blob.
func (s *BlobStore) Get(container, name string) (StoredBlob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[container+"/"+name]
	if !ok {
		return StoredBlob{}, false
	}
	cp := *b
	cp.Data = append([]byte(nil), b.Data...)
	return cp, true
}

// Calls returns how many times op ran ("Upload", "StageBlock", "CommitBlockList",
// "Create", "AppendBlock", "GetProperties", "DownloadStream").
func (s *BlobStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// BlockBlob implements blobapi.ServiceAPI.
func (s *BlobStore) BlockBlob(container, name string) blobapi.BlockBlobAPI {
	return &fakeBlob{store: s, container: container, name: name}
}

// AppendBlob implements blobapi.ServiceAPI.
func (s *BlobStore) AppendBlob(container, name string) blobapi.AppendBlobAPI {
	return &fakeBlob{store: s, container: container, name: name}
}

// Blob implements blobapi.ServiceAPI.
func (s *BlobStore) Blob(container, name string) blobapi.BlobAPI {
	return &fakeBlob{store: s, container: container, name: name}
}

func (s *BlobStore) nextETag() string {
	s.etag++
	return fmt.Sprintf("\"0x8D%012X\"", s.etag)
}

type fakeBlob struct {
	store     *BlobStore
	container string
	name      string
}

func (f *fakeBlob) key() string { return f.container + "/" + f.name }

// begin counts the call and checks the container. The store lock is held on success.
func (f *fakeBlob) begin(op string) error {
	f.store.mu.Lock()
	f.store.calls[op]++
	if !f.store.containers[f.container] {
		f.store.mu.Unlock()
		return ResponseError(http.StatusNotFound, "ContainerNotFound")
	}
	return nil
}

func blobMetadata(m map[string]*string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func (f *fakeBlob) Upload(
	_ context.Context,
	body io.ReadSeekCloser,
	options *blockblob.UploadOptions,
) (blockblob.UploadResponse, error) {
	if hook := f.store.UploadHook; hook != nil {
		if err := hook(f.container, f.name); err != nil {
			return blockblob.UploadResponse{}, err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return blockblob.UploadResponse{}, err
	}
	if err := f.begin("Upload"); err != nil {
		return blockblob.UploadResponse{}, err
	}
	defer f.store.mu.Unlock()

	b := &StoredBlob{Data: data, ETag: f.store.nextETag()}
	if options != nil {
		if options.HTTPHeaders != nil && options.HTTPHeaders.BlobContentType != nil {
			b.ContentType = *options.HTTPHeaders.BlobContentType
		}
		b.Metadata = blobMetadata(options.Metadata)
	}
	f.store.blobs[f.key()] = b

	etag := azcore.ETag(b.ETag)
	now := time.Now()
	return blockblob.UploadResponse{ETag: &etag, LastModified: &now}, nil
}

func (f *fakeBlob) StageBlock(
	_ context.Context,
	base64BlockID string,
	body io.ReadSeekCloser,
	_ *blockblob.StageBlockOptions,
) (blockblob.StageBlockResponse, error) {
	if hook := f.store.StageBlockHook; hook != nil {
		if err := hook(f.container, f.name, base64BlockID); err != nil {
			return blockblob.StageBlockResponse{}, err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return blockblob.StageBlockResponse{}, err
	}
	if err := f.begin("StageBlock"); err != nil {
		return blockblob.StageBlockResponse{}, err
	}
	defer f.store.mu.Unlock()

	if f.store.staged[f.key()] == nil {
		f.store.staged[f.key()] = map[string][]byte{}
	}
	f.store.staged[f.key()][base64BlockID] = data
	return blockblob.StageBlockResponse{}, nil
}

func (f *fakeBlob) CommitBlockList(
	_ context.Context,
	base64BlockIDs []string,
	options *blockblob.CommitBlockListOptions,
) (blockblob.CommitBlockListResponse, error) {
	if err := f.begin("CommitBlockList"); err != nil {
		return blockblob.CommitBlockListResponse{}, err
	}
	defer f.store.mu.Unlock()

	staged := f.store.staged[f.key()]
	var data []byte
	for _, id := range base64BlockIDs {
		block, ok := staged[id]
		if !ok {
			return blockblob.CommitBlockListResponse{}, ResponseError(http.StatusBadRequest, "InvalidBlockList")
		}
		data = append(data, block...)
	}

	b := &StoredBlob{
		Data:   data,
		ETag:   f.store.nextETag(),
		Blocks: append([]string(nil), base64BlockIDs...),
	}
	if options != nil {
		if options.HTTPHeaders != nil && options.HTTPHeaders.BlobContentType != nil {
			b.ContentType = *options.HTTPHeaders.BlobContentType
		}
		b.Metadata = blobMetadata(options.Metadata)
	}
	f.store.blobs[f.key()] = b
	delete(f.store.staged, f.key())

	etag := azcore.ETag(b.ETag)
	now := time.Now()
	return blockblob.CommitBlockListResponse{ETag: &etag, LastModified: &now}, nil
}

func (f *fakeBlob) Create(_ context.Context, options *appendblob.CreateOptions) (appendblob.CreateResponse, error) {
	if err := f.begin("Create"); err != nil {
		return appendblob.CreateResponse{}, err
	}
	defer f.store.mu.Unlock()

	b := &StoredBlob{Append: true, ETag: f.store.nextETag()}
	if options != nil {
		if options.HTTPHeaders != nil && options.HTTPHeaders.BlobContentType != nil {
			b.ContentType = *options.HTTPHeaders.BlobContentType
		}
		b.Metadata = blobMetadata(options.Metadata)
	}
	f.store.blobs[f.key()] = b

	etag := azcore.ETag(b.ETag)
	now := time.Now()
	return appendblob.CreateResponse{ETag: &etag, LastModified: &now}, nil
}

func (f *fakeBlob) AppendBlock(
	_ context.Context,
	body io.ReadSeekCloser,
	_ *appendblob.AppendBlockOptions,
) (appendblob.AppendBlockResponse, error) {
	if hook := f.store.AppendBlockHook; hook != nil {
		if err := hook(f.container, f.name); err != nil {
			return appendblob.AppendBlockResponse{}, err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return appendblob.AppendBlockResponse{}, err
	}
	if err := f.begin("AppendBlock"); err != nil {
		return appendblob.AppendBlockResponse{}, err
	}
	defer f.store.mu.Unlock()

	b, ok := f.store.blobs[f.key()]
	if !ok {
		return appendblob.AppendBlockResponse{}, ResponseError(http.StatusNotFound, "BlobNotFound")
	}
	if !b.Append {
		return appendblob.AppendBlockResponse{}, ResponseError(http.StatusConflict, "InvalidBlobType")
	}
	b.Data = append(b.Data, data...)
	b.ETag = f.store.nextETag()

	etag := azcore.ETag(b.ETag)
	now := time.Now()
	return appendblob.AppendBlockResponse{ETag: &etag, LastModified: &now}, nil
}

func (f *fakeBlob) GetProperties(_ context.Context, _ *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error) {
	if err := f.begin("GetProperties"); err != nil {
		return blob.GetPropertiesResponse{}, err
	}
	defer f.store.mu.Unlock()

	b, ok := f.store.blobs[f.key()]
	if !ok {
		return blob.GetPropertiesResponse{}, ResponseError(http.StatusNotFound, "BlobNotFound")
	}
	size := int64(len(b.Data))
	etag := azcore.ETag(b.ETag)
	contentType := b.ContentType
	return blob.GetPropertiesResponse{ContentLength: &size, ETag: &etag, ContentType: &contentType}, nil
}

func (f *fakeBlob) DownloadStream(
	_ context.Context,
	options *blob.DownloadStreamOptions,
) (blob.DownloadStreamResponse, error) {
	var offset, count int64
	if options != nil {
		offset, count = options.Range.Offset, options.Range.Count
	}
	if hook := f.store.DownloadHook; hook != nil {
		if err := hook(f.container, f.name, offset, count); err != nil {
			return blob.DownloadStreamResponse{}, err
		}
	}
	if err := f.begin("DownloadStream"); err != nil {
		return blob.DownloadStreamResponse{}, err
	}
	defer f.store.mu.Unlock()

	b, ok := f.store.blobs[f.key()]
	if !ok {
		return blob.DownloadStreamResponse{}, ResponseError(http.StatusNotFound, "BlobNotFound")
	}
	if options != nil && options.AccessConditions != nil &&
		options.AccessConditions.ModifiedAccessConditions != nil &&
		options.AccessConditions.ModifiedAccessConditions.IfMatch != nil &&
		string(*options.AccessConditions.ModifiedAccessConditions.IfMatch) != b.ETag {
		return blob.DownloadStreamResponse{}, ResponseError(http.StatusPreconditionFailed, "ConditionNotMet")
	}

	data, err := sliceRange(b.Data, offset, count)
	if err != nil {
		return blob.DownloadStreamResponse{}, err
	}
	size := int64(len(data))
	etag := azcore.ETag(b.ETag)
	contentType := b.ContentType
	return blob.DownloadStreamResponse{
		DownloadResponse: blob.DownloadResponse{
			Body:          io.NopCloser(bytesReader(data)),
			ContentLength: &size,
			ETag:          &etag,
			ContentType:   &contentType,
		},
	}, nil
}

func sliceRange(data []byte, offset, count int64) ([]byte, error) {
	size := int64(len(data))
	if offset == 0 && count == 0 {
		return append([]byte(nil), data...), nil
	}
	if offset >= size {
		return nil, ResponseError(http.StatusRequestedRangeNotSatisfiable, "InvalidRange")
	}
	end := size
	if count > 0 && offset+count < size {
		end = offset + count
	}
	return append([]byte(nil), data[offset:end]...), nil
}

// StoredFile is a file held by FileStore.
type StoredFile struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
	ETag        string
}

// FileStore is an in-memory Azure Files service implementing fileapi.ServiceAPI.
type FileStore struct {
	mu     sync.Mutex
	shares map[string]bool
	files  map[string]*StoredFile
	calls  map[string]int
	etag   int

	UploadRangeHook func(share, filePath string, offset int64) error
	DownloadHook    func(share, filePath string, offset, count int64) error
}

var _ fileapi.ServiceAPI = (*FileStore)(nil)

// NewFileStore creates a store holding the given (empty) shares.
func NewFileStore(shares ...string) *FileStore {
	s := &FileStore{
		shares: map[string]bool{},
		files:  map[string]*StoredFile{},
		calls:  map[string]int{},
	}
	for _, sh := range shares {
		s.shares[sh] = true
	}
	return s
}

// Put seeds a file.
func (s *FileStore) Put(share, directory, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[share] = true
	s.etag++
	s.files[share+"/"+path.Join(directory, name)] = &StoredFile{
		Data: append([]byte(nil), data...),
		ETag: fmt.Sprintf("\"0x8D%012X\"", s.etag),
	}
}

// Get returns a copy of a stored file.
func (s *FileStore) Get(share, directory, name string) (StoredFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[share+"/"+path.Join(directory, name)]
	if !ok {
		return StoredFile{}, false
	}
	cp := *f
	cp.Data = append([]byte(nil), f.Data...)
	return cp, true
}

// Calls returns how many times op ran ("Create", "UploadRange", "GetProperties", "DownloadStream").
func (s *FileStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// File implements fileapi.ServiceAPI.
func (s *FileStore) File(share, directory, name string) fileapi.FileAPI {
	return &fakeFile{store: s, share: share, path: path.Join(directory, name)}
}

type fakeFile struct {
	store *FileStore
	share string
	path  string
}

func (f *fakeFile) key() string { return f.share + "/" + f.path }

func (f *fakeFile) begin(op string) error {
	f.store.mu.Lock()
	f.store.calls[op]++
	if !f.store.shares[f.share] {
		f.store.mu.Unlock()
		return ResponseError(http.StatusNotFound, "ShareNotFound")
	}
	return nil
}

func (f *fakeFile) Create(_ context.Context, size int64, options *file.CreateOptions) (file.CreateResponse, error) {
	if err := f.begin("Create"); err != nil {
		return file.CreateResponse{}, err
	}
	defer f.store.mu.Unlock()

	f.store.etag++
	sf := &StoredFile{
		Data: make([]byte, size),
		ETag: fmt.Sprintf("\"0x8D%012X\"", f.store.etag),
	}
	if options != nil {
		if options.HTTPHeaders != nil && options.HTTPHeaders.ContentType != nil {
			sf.ContentType = *options.HTTPHeaders.ContentType
		}
		sf.Metadata = blobMetadata(options.Metadata)
	}
	f.store.files[f.key()] = sf

	etag := azcore.ETag(sf.ETag)
	now := time.Now()
	return file.CreateResponse{ETag: &etag, LastModified: &now}, nil
}

func (f *fakeFile) UploadRange(
	_ context.Context,
	offset int64,
	body io.ReadSeekCloser,
	_ *file.UploadRangeOptions,
) (file.UploadRangeResponse, error) {
	if hook := f.store.UploadRangeHook; hook != nil {
		if err := hook(f.share, f.path, offset); err != nil {
			return file.UploadRangeResponse{}, err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return file.UploadRangeResponse{}, err
	}
	if err := f.begin("UploadRange"); err != nil {
		return file.UploadRangeResponse{}, err
	}
	defer f.store.mu.Unlock()

	sf, ok := f.store.files[f.key()]
	if !ok {
		return file.UploadRangeResponse{}, ResponseError(http.StatusNotFound, "ResourceNotFound")
	}
	if offset+int64(len(data)) > int64(len(sf.Data)) {
		return file.UploadRangeResponse{}, ResponseError(http.StatusRequestedRangeNotSatisfiable, "InvalidRange")
	}
	copy(sf.Data[offset:], data)
	f.store.etag++
	sf.ETag = fmt.Sprintf("\"0x8D%012X\"", f.store.etag)

	etag := azcore.ETag(sf.ETag)
	now := time.Now()
	return file.UploadRangeResponse{ETag: &etag, LastModified: &now}, nil
}

func (f *fakeFile) GetProperties(_ context.Context, _ *file.GetPropertiesOptions) (file.GetPropertiesResponse, error) {
	if err := f.begin("GetProperties"); err != nil {
		return file.GetPropertiesResponse{}, err
	}
	defer f.store.mu.Unlock()

	sf, ok := f.store.files[f.key()]
	if !ok {
		return file.GetPropertiesResponse{}, ResponseError(http.StatusNotFound, "ResourceNotFound")
	}
	size := int64(len(sf.Data))
	etag := azcore.ETag(sf.ETag)
	contentType := sf.ContentType
	return file.GetPropertiesResponse{ContentLength: &size, ETag: &etag, ContentType: &contentType}, nil
}

func (f *fakeFile) DownloadStream(
	_ context.Context,
	options *file.DownloadStreamOptions,
) (file.DownloadStreamResponse, error) {
	var offset, count int64
	if options != nil {
		offset, count = options.Range.Offset, options.Range.Count
	}
	if hook := f.store.DownloadHook; hook != nil {
		if err := hook(f.share, f.path, offset, count); err != nil {
			return file.DownloadStreamResponse{}, err
		}
	}
	if err := f.begin("DownloadStream"); err != nil {
		return file.DownloadStreamResponse{}, err
	}
	defer f.store.mu.Unlock()

	sf, ok := f.store.files[f.key()]
	if !ok {
		return file.DownloadStreamResponse{}, ResponseError(http.StatusNotFound, "ResourceNotFound")
	}
	data, err := sliceRange(sf.Data, offset, count)
	if err != nil {
		return file.DownloadStreamResponse{}, err
	}
	size := int64(len(data))
	etag := azcore.ETag(sf.ETag)
	contentType := sf.ContentType
	return file.DownloadStreamResponse{
		DownloadResponse: file.DownloadResponse{
			Body:          io.NopCloser(bytesReader(data)),
			ContentLength: &size,
			ETag:          &etag,
			ContentType:   &contentType,
		},
	}, nil
}
