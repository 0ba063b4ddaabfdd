package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
)

func newTestUploader(maxConnections, attempts int, blockSize, singlePut int64) *Uploader {
	return New(Config{
		Transfer: chunked.Options{
			MaxConnections: maxConnections,
			Retry:          chunked.RetryPolicy{MaxAttempts: attempts},
		},
		BlockSize:        blockSize,
		MaxSinglePutSize: singlePut,
	})
}

func TestBlockID(t *testing.T) {
	ids := []string{BlockID(0), BlockID(4194304), BlockID(123456789012)}
	for _, id := range ids {
		raw, err := base64.StdEncoding.DecodeString(id)
		require.NoError(t, err)
		assert.Len(t, raw, 32)
		assert.Len(t, id, len(ids[0]))
	}

	raw, err := base64.StdEncoding.DecodeString(BlockID(4194304))
	require.NoError(t, err)
	assert.Equal(t, "00000000000000000000000004194304", string(raw))
}

func TestNew_Defaults(t *testing.T) {
	u := New(Config{})
	assert.Equal(t, int64(DefaultBlockSize), u.blockSize)
	assert.Equal(t, int64(DefaultMaxSinglePutSize), u.singlePut)
	assert.NotNil(t, u.logger)
}

func TestUploader_BlockBlob(t *testing.T) {
	data := testutil.GeneratePatternData(20)

	tests := []struct {
		name           string
		maxConnections int
		size           int64
		source         func() io.Reader
		wantSinglePut  bool
		wantBlocks     []string
		wantProgress   []testutil.ProgressUpdate
	}{
		{
			name:           "single put below threshold",
			maxConnections: 1,
			size:           10,
			source:         func() io.Reader { return bytes.NewReader(data[:10]) },
			wantSinglePut:  true,
			wantProgress:   []testutil.ProgressUpdate{{Transferred: 0, Total: 10}, {Transferred: 10, Total: 10}},
		},
		{
			name:           "sequential blocks",
			maxConnections: 1,
			size:           20,
			source:         func() io.Reader { return testutil.NonSeekableReader{R: bytes.NewReader(data)} },
			wantBlocks:     []string{BlockID(0), BlockID(8), BlockID(16)},
			wantProgress:   []testutil.ProgressUpdate{{Transferred: 8, Total: 20}, {Transferred: 16, Total: 20}, {Transferred: 20, Total: 20}},
		},
		{
			name:           "parallel blocks",
			maxConnections: 3,
			size:           20,
			source:         func() io.Reader { return bytes.NewReader(data) },
			wantBlocks:     []string{BlockID(0), BlockID(8), BlockID(16)},
		},
		{
			name:           "unknown size streams blocks",
			maxConnections: 3,
			size:           chunked.UnknownSize,
			source:         func() io.Reader { return testutil.NonSeekableReader{R: bytes.NewReader(data)} },
			wantBlocks:     []string{BlockID(0), BlockID(8), BlockID(16)},
			wantProgress:   []testutil.ProgressUpdate{{Transferred: 8, Total: -1}, {Transferred: 16, Total: -1}, {Transferred: 20, Total: -1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewBlobStore("container")
			tracker := &testutil.MockProgressTracker{}
			u := newTestUploader(tt.maxConnections, 1, 8, 16)

			res, err := u.BlockBlob(t.Context(), store.BlockBlob("container", "blob"), Request{
				Container:   "container",
				Name:        "blob",
				Size:        tt.size,
				ContentType: "text/plain",
				Metadata:    map[string]string{"owner": "test"},
				Progress:    tracker.Update,
			}, tt.source())
			require.NoError(t, err)

			stored, ok := store.Get("container", "blob")
			require.True(t, ok)
			assert.Equal(t, "text/plain", stored.ContentType)
			assert.Equal(t, map[string]string{"owner": "test"}, stored.Metadata)
			assert.Equal(t, stored.ETag, res.ETag)
			assert.Equal(t, int64(len(stored.Data)), res.Size)

			if tt.wantSinglePut {
				assert.Equal(t, data[:10], stored.Data)
				assert.Equal(t, 1, store.Calls("Upload"))
				assert.Equal(t, 0, store.Calls("StageBlock"))
				assert.Zero(t, res.Chunks)
			} else {
				assert.Equal(t, data, stored.Data)
				assert.Equal(t, tt.wantBlocks, stored.Blocks)
				assert.Equal(t, 0, store.Calls("Upload"))
				assert.Equal(t, 1, store.Calls("CommitBlockList"))
				assert.Equal(t, len(tt.wantBlocks), res.Chunks)
			}
			if tt.wantProgress != nil {
				assert.Equal(t, tt.wantProgress, tracker.Snapshot())
			}
		})
	}
}

func TestUploader_BlockBlob_RetriesStageBlock(t *testing.T) {
	store := testutil.NewBlobStore("container")

	var (
		mu     sync.Mutex
		failed = map[string]bool{}
	)
	store.StageBlockHook = func(_, _, id string) error {
		mu.Lock()
		defer mu.Unlock()
		if !failed[id] {
			failed[id] = true
			return testutil.ResponseError(500, "InternalError")
		}
		return nil
	}

	u := newTestUploader(2, 2, 8, 1)
	data := testutil.GenerateRandomData(24)
	_, err := u.BlockBlob(t.Context(), store.BlockBlob("container", "blob"),
		Request{Container: "container", Name: "blob", Size: 24}, bytes.NewReader(data))
	require.NoError(t, err)

	stored, ok := store.Get("container", "blob")
	require.True(t, ok)
	assert.Equal(t, data, stored.Data)
	assert.Len(t, failed, 3)
	assert.Equal(t, 3, store.Calls("StageBlock"))
}

func TestUploader_BlockBlob_ChunkFailureSkipsCommit(t *testing.T) {
	store := testutil.NewBlobStore("container")
	boom := errors.New("connection reset")
	store.StageBlockHook = func(_, _, id string) error {
		if id == BlockID(8) {
			return boom
		}
		return nil
	}

	u := newTestUploader(1, 2, 8, 1)
	_, err := u.BlockBlob(t.Context(), store.BlockBlob("container", "blob"),
		Request{Container: "container", Name: "blob", Size: 24}, bytes.NewReader(make([]byte, 24)))
	require.Error(t, err)
	assert.True(t, storageerrors.IsChunkFailed(err))
	assert.ErrorIs(t, err, boom)

	ce, ok := storageerrors.AsChunkError(err)
	require.True(t, ok)
	assert.Equal(t, 1, ce.Index)
	assert.Equal(t, int64(8), ce.Offset)
	assert.Equal(t, 2, ce.Attempts)

	assert.Equal(t, 0, store.Calls("CommitBlockList"))
	_, ok = store.Get("container", "blob")
	assert.False(t, ok)
}

func TestUploader_BlockBlob_ShortSource(t *testing.T) {
	store := testutil.NewBlobStore("container")
	u := newTestUploader(1, 1, 8, 64)

	_, err := u.BlockBlob(t.Context(), store.BlockBlob("container", "blob"),
		Request{Container: "container", Name: "blob", Size: 10}, bytes.NewReader(make([]byte, 4)))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 0, store.Calls("Upload"))
}

func TestUploader_AppendBlob(t *testing.T) {
	store := testutil.NewBlobStore("container")
	u := newTestUploader(4, 1, 8, 0)
	api := store.AppendBlob("container", "log")

	_, err := u.CreateAppendBlob(t.Context(), api, Request{Container: "container", Name: "log", ContentType: "text/plain"})
	require.NoError(t, err)

	first := []byte("first line of the log\n")
	second := []byte("second\n")

	res, err := u.AppendBlob(t.Context(), api,
		Request{Container: "container", Name: "log", Size: chunked.UnknownSize},
		testutil.NonSeekableReader{R: bytes.NewReader(first)})
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)), res.Size)
	assert.Equal(t, 3, res.Chunks)

	tracker := &testutil.MockProgressTracker{}
	_, err = u.AppendBlob(t.Context(), api,
		Request{Container: "container", Name: "log", Size: int64(len(second)), Progress: tracker.Update},
		bytes.NewReader(second))
	require.NoError(t, err)
	assert.Equal(t, []testutil.ProgressUpdate{{Transferred: 7, Total: 7}}, tracker.Snapshot())

	stored, ok := store.Get("container", "log")
	require.True(t, ok)
	assert.True(t, stored.Append)
	assert.Equal(t, "text/plain", stored.ContentType)
	assert.Equal(t, append(append([]byte{}, first...), second...), stored.Data)
	assert.Equal(t, 4, store.Calls("AppendBlock"))
}

func TestUploader_AppendBlob_MissingBlob(t *testing.T) {
	store := testutil.NewBlobStore("container")
	u := newTestUploader(1, 1, 8, 0)

	_, err := u.AppendBlob(t.Context(), store.AppendBlob("container", "missing"),
		Request{Container: "container", Name: "missing", Size: 3}, bytes.NewReader([]byte("abc")))
	require.Error(t, err)
	assert.True(t, storageerrors.IsChunkFailed(err))
}

func TestUploader_File(t *testing.T) {
	data := testutil.GeneratePatternData(30)

	tests := []struct {
		name           string
		maxConnections int
		source         io.Reader
	}{
		{name: "sequential", maxConnections: 1, source: testutil.NonSeekableReader{R: bytes.NewReader(data)}},
		{name: "parallel", maxConnections: 4, source: bytes.NewReader(data)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFileStore("share")
			u := newTestUploader(tt.maxConnections, 1, 8, 0)

			res, err := u.File(t.Context(), store.File("share", "dir", "file.bin"), Request{
				Container:   "share",
				Directory:   "dir",
				Name:        "file.bin",
				Size:        int64(len(data)),
				ContentType: "application/octet-stream",
			}, tt.source)
			require.NoError(t, err)
			assert.Equal(t, 4, res.Chunks)
			assert.Equal(t, int64(30), res.Size)

			stored, ok := store.Get("share", "dir", "file.bin")
			require.True(t, ok)
			assert.Equal(t, data, stored.Data)
			assert.Equal(t, "application/octet-stream", stored.ContentType)
			assert.Equal(t, 1, store.Calls("Create"))
			assert.Equal(t, 4, store.Calls("UploadRange"))
		})
	}
}

func TestUploader_File_Errors(t *testing.T) {
	t.Run("unknown size", func(t *testing.T) {
		store := testutil.NewFileStore("share")
		u := newTestUploader(1, 1, 8, 0)
		_, err := u.File(t.Context(), store.File("share", "", "f"),
			Request{Container: "share", Name: "f", Size: chunked.UnknownSize}, bytes.NewReader(nil))
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
		assert.Equal(t, 0, store.Calls("Create"))
	})

	t.Run("missing share", func(t *testing.T) {
		store := testutil.NewFileStore()
		u := newTestUploader(1, 1, 8, 0)
		_, err := u.File(t.Context(), store.File("share", "", "f"),
			Request{Container: "share", Name: "f", Size: 3}, bytes.NewReader([]byte("abc")))
		require.Error(t, err)
		assert.Equal(t, 0, store.Calls("UploadRange"))
	})

	t.Run("non seekable source in parallel mode", func(t *testing.T) {
		store := testutil.NewFileStore("share")
		u := newTestUploader(4, 1, 8, 0)
		_, err := u.File(t.Context(), store.File("share", "", "f"),
			Request{Container: "share", Name: "f", Size: 3}, testutil.NonSeekableReader{R: bytes.NewReader([]byte("abc"))})
		assert.ErrorIs(t, err, storageerrors.ErrNotSeekable)
	})
}

func TestUploader_Object(t *testing.T) {
	t.Run("small object uses PutObject", func(t *testing.T) {
		var put []byte
		mock := &testutil.MockS3Client{
			PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				assert.Equal(t, "bucket", aws.ToString(in.Bucket))
				assert.Equal(t, "key", aws.ToString(in.Key))
				assert.Equal(t, "text/plain", aws.ToString(in.ContentType))
				body, err := io.ReadAll(in.Body)
				require.NoError(t, err)
				put = body
				return &s3.PutObjectOutput{ETag: aws.String("\"small\"")}, nil
			},
			CreateMultipartUploadFunc: func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
				t.Fatal("multipart upload must not be used for small objects")
				return nil, nil
			},
		}

		u := newTestUploader(1, 1, 0, 0)
		res, err := u.Object(t.Context(), mock,
			Request{Container: "bucket", Name: "key", Size: 5, ContentType: "text/plain"}, bytes.NewReader([]byte("hello")))
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), put)
		assert.Equal(t, "\"small\"", res.ETag)
	})

	t.Run("large object uses multipart", func(t *testing.T) {
		data := testutil.GeneratePatternData(2*MinPartSize + 1024)

		var (
			mu       sync.Mutex
			received = map[int32][]byte{}
			complete *s3.CompleteMultipartUploadInput
		)
		mock := &testutil.MockS3Client{
			UploadPartFunc: func(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
				assert.Equal(t, "mock-upload-id", aws.ToString(in.UploadId))
				body, err := io.ReadAll(in.Body)
				require.NoError(t, err)
				mu.Lock()
				received[aws.ToInt32(in.PartNumber)] = body
				mu.Unlock()
				return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
			},
			CompleteMultipartUploadFunc: func(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
				complete = in
				return &s3.CompleteMultipartUploadOutput{ETag: aws.String("\"multi-3\"")}, nil
			},
		}

		u := newTestUploader(3, 1, 0, 0)
		res, err := u.Object(t.Context(), mock,
			Request{Container: "bucket", Name: "key", Size: int64(len(data))}, bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "\"multi-3\"", res.ETag)
		assert.Equal(t, 3, res.Chunks)

		require.Len(t, received, 3)
		assert.Equal(t, data, bytes.Join([][]byte{received[1], received[2], received[3]}, nil))

		require.NotNil(t, complete)
		parts := complete.MultipartUpload.Parts
		require.Len(t, parts, 3)
		for i, p := range parts {
			assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
		}
	})

	t.Run("failed part aborts the upload", func(t *testing.T) {
		aborted := false
		mock := &testutil.MockS3Client{
			UploadPartFunc: func(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
				if aws.ToInt32(in.PartNumber) == 2 {
					return nil, errors.New("slow down")
				}
				return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
			},
			CompleteMultipartUploadFunc: func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
				t.Fatal("failed upload must not be completed")
				return nil, nil
			},
			AbortMultipartUploadFunc: func(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
				aborted = true
				assert.Equal(t, "mock-upload-id", aws.ToString(in.UploadId))
				return &s3.AbortMultipartUploadOutput{}, nil
			},
		}

		u := newTestUploader(1, 1, 0, 0)
		_, err := u.Object(t.Context(), mock,
			Request{Container: "bucket", Name: "key", Size: chunked.UnknownSize},
			bytes.NewReader(make([]byte, 2*MinPartSize)))
		require.Error(t, err)
		assert.True(t, storageerrors.IsChunkFailed(err))
		assert.True(t, aborted)
	})

	t.Run("empty unsized source falls back to PutObject", func(t *testing.T) {
		var (
			put     *s3.PutObjectInput
			aborted bool
		)
		mock := &testutil.MockS3Client{
			PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				put = in
				return &s3.PutObjectOutput{ETag: aws.String("\"empty\"")}, nil
			},
			UploadPartFunc: func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
				t.Fatal("an empty source has no parts")
				return nil, nil
			},
			CompleteMultipartUploadFunc: func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
				t.Fatal("a multipart upload without parts must not be completed")
				return nil, nil
			},
			AbortMultipartUploadFunc: func(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
				aborted = true
				assert.Equal(t, "mock-upload-id", aws.ToString(in.UploadId))
				return &s3.AbortMultipartUploadOutput{}, nil
			},
		}

		u := newTestUploader(1, 1, 0, 0)
		res, err := u.Object(t.Context(), mock,
			Request{Container: "bucket", Name: "key", Size: chunked.UnknownSize}, bytes.NewReader(nil))
		require.NoError(t, err)
		assert.True(t, aborted)
		require.NotNil(t, put)
		assert.Equal(t, int64(0), aws.ToInt64(put.ContentLength))
		assert.Equal(t, "\"empty\"", res.ETag)
		assert.Equal(t, int64(0), res.Size)
	})
}

func TestPartSize(t *testing.T) {
	assert.Equal(t, int64(MinPartSize), PartSize(0))
	assert.Equal(t, int64(MinPartSize), PartSize(1024))
	assert.Equal(t, int64(8*1024*1024), PartSize(8*1024*1024))
}
