package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

type writeOnly struct {
	w io.Writer
}

func (w writeOnly) Write(p []byte) (int, error) { return w.w.Write(p) }

// newTestClient returns a client over in-memory services with small
// thresholds, so chunking kicks in at a few bytes.
func newTestClient(t *testing.T, opts ...storagetypes.Option) (*Client, *testutil.BlobStore, *testutil.FileStore) {
	t.Helper()

	blobs := testutil.NewBlobStore("container")
	files := testutil.NewFileStore("share")
	base := []storagetypes.Option{
		WithMaxSinglePutSize(16),
		WithMaxBlockSize(8),
		WithMaxSingleGetSize(16),
		WithMaxChunkGetSize(8),
		WithMaxRangeSize(8),
		WithDefaultRetryWait(0),
		WithFilesystem(memfs.New()),
	}
	client, err := NewWithAPI(blobs, files, append(base, opts...)...)
	require.NoError(t, err)
	return client, blobs, files
}

func TestClient_BlobRoundTrip(t *testing.T) {
	tests := []struct {
		name           string
		size           int
		maxConnections int
		wantUploads    int
		wantStages     int
	}{
		{name: "empty", size: 0, maxConnections: 1, wantUploads: 1},
		{name: "single put", size: 15, maxConnections: 1, wantUploads: 1},
		{name: "at threshold is staged", size: 16, maxConnections: 1, wantStages: 2},
		{name: "sequential blocks", size: 50, maxConnections: 1, wantStages: 7},
		{name: "parallel blocks", size: 50, maxConnections: 4, wantStages: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, store, _ := newTestClient(t)
			data := testutil.GeneratePatternData(tt.size)

			res, err := client.CreateBlobFromStream(t.Context(), "container", "dir/blob.bin",
				bytes.NewReader(data), int64(len(data)), WithMaxConnections(tt.maxConnections))
			require.NoError(t, err)
			assert.Equal(t, int64(tt.size), res.Size)
			assert.Equal(t, "container", res.Container)
			assert.Equal(t, "dir/blob.bin", res.Name)
			assert.Equal(t, tt.wantUploads, store.Calls("Upload"))
			assert.Equal(t, tt.wantStages, store.Calls("StageBlock"))

			got, err := client.GetBlobToBytes(t.Context(), "container", "dir/blob.bin",
				WithMaxConnections(tt.maxConnections))
			require.NoError(t, err)
			assert.Equal(t, testutil.CalculateMD5(data), testutil.CalculateMD5(got))
		})
	}
}

func TestClient_CreateBlobFromStream_UnknownSize(t *testing.T) {
	client, store, _ := newTestClient(t)
	data := testutil.GeneratePatternData(30)

	tracker := &testutil.MockProgressTracker{}
	res, err := client.CreateBlobFromStream(t.Context(), "container", "stream",
		testutil.NonSeekableReader{R: bytes.NewReader(data)}, -1,
		WithMaxConnections(4), WithProgress(tracker))
	require.NoError(t, err)
	assert.Equal(t, int64(30), res.Size)
	assert.Equal(t, 4, res.Chunks)

	stored, ok := store.Get("container", "stream")
	require.True(t, ok)
	assert.Equal(t, data, stored.Data)

	assert.True(t, tracker.CompleteCalled)
	assert.False(t, tracker.ErrorCalled)
	assert.Equal(t, int64(-1), tracker.TotalBytes)
	assert.Equal(t, int64(30), tracker.BytesTransferred)
}

func TestClient_CreateBlob_ContentType(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

	tests := []struct {
		name   string
		upload func(*Client) error
		want   string
	}{
		{
			name: "explicit option wins",
			upload: func(c *Client) error {
				_, err := c.CreateBlobFromBytes(context.Background(), "container", "blob", png,
					WithContentType("application/x-custom"))
				return err
			},
			want: "application/x-custom",
		},
		{
			name: "bytes are sniffed",
			upload: func(c *Client) error {
				_, err := c.CreateBlobFromBytes(context.Background(), "container", "blob", png)
				return err
			},
			want: "image/png",
		},
		{
			name: "stream falls back to the extension",
			upload: func(c *Client) error {
				_, err := c.CreateBlobFromStream(context.Background(), "container", "blob.html",
					bytes.NewReader([]byte("x")), 1)
				return err
			},
			want: "text/html; charset=utf-8",
		},
		{
			name: "unknown stream",
			upload: func(c *Client) error {
				_, err := c.CreateBlobFromStream(context.Background(), "container", "blob",
					bytes.NewReader([]byte{0x00, 0x01}), 2)
				return err
			},
			want: DefaultContentType,
		},
		{
			name: "text",
			upload: func(c *Client) error {
				_, err := c.CreateBlobFromText(context.Background(), "container", "blob", "hello")
				return err
			},
			want: "text/plain; charset=utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, store, _ := newTestClient(t)
			require.NoError(t, tt.upload(client))

			var stored testutil.StoredBlob
			for _, name := range []string{"blob", "blob.html"} {
				if b, ok := store.Get("container", name); ok {
					stored = b
				}
			}
			assert.Equal(t, tt.want, stored.ContentType)
		})
	}
}

func TestClient_BlobPaths(t *testing.T) {
	client, store, _ := newTestClient(t)
	data := []byte(`{"name": "report", "values": [1, 2, 3]}`)
	require.NoError(t, util.WriteFile(client.fs, "/in/report.json", data, 0o644))

	res, err := client.CreateBlobFromPath(t.Context(), "container", "report", "/in/report.json",
		WithMetadata(map[string]string{"source": "test"}))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), res.Size)

	stored, ok := store.Get("container", "report")
	require.True(t, ok)
	assert.Equal(t, "application/json", stored.ContentType)
	assert.Equal(t, map[string]string{"source": "test"}, stored.Metadata)

	for _, connections := range []int{1, 3} {
		dl, err := client.GetBlobToPath(t.Context(), "container", "report", "/out/report.json",
			WithMaxConnections(connections))
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), dl.Size)

		got, err := util.ReadFile(client.fs, "/out/report.json")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestClient_BlobPaths_Errors(t *testing.T) {
	client, _, _ := newTestClient(t)
	require.NoError(t, client.fs.MkdirAll("/dir", 0o755))

	_, err := client.CreateBlobFromPath(t.Context(), "container", "blob", "/missing")
	assert.Error(t, err)

	_, err = client.CreateBlobFromPath(t.Context(), "container", "blob", "/dir")
	assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

	_, err = client.CreateBlobFromPath(t.Context(), "container", "blob", "")
	assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

	_, err = client.GetBlobToPath(t.Context(), "container", "missing", "/out/partial")
	assert.True(t, storageerrors.IsNotFound(err))
	_, statErr := client.fs.Stat("/out/partial")
	assert.Error(t, statErr, "partial download must be removed")
}

func TestClient_GetBlob_Range(t *testing.T) {
	client, store, _ := newTestClient(t)
	data := testutil.GeneratePatternData(40)
	store.Put("container", "blob", data, "")

	text, err := client.GetBlobToBytes(t.Context(), "container", "blob", WithRange(4, 9))
	require.NoError(t, err)
	assert.Equal(t, data[4:10], text)

	got, err := client.GetBlobToBytes(t.Context(), "container", "blob",
		WithRange(2, -1), WithMaxConnections(4))
	require.NoError(t, err)
	assert.Equal(t, data[2:], got)

	_, err = client.GetBlobToBytes(t.Context(), "container", "blob", WithRange(9, 4))
	assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
}

func TestClient_GetBlob_Errors(t *testing.T) {
	client, store, _ := newTestClient(t)
	store.Put("container", "blob", make([]byte, 40), "")

	t.Run("blob not found", func(t *testing.T) {
		tracker := &testutil.MockProgressTracker{}
		_, err := client.GetBlobToText(t.Context(), "container", "missing", WithProgress(tracker))
		assert.True(t, storageerrors.IsNotFound(err))
		assert.Equal(t, storageerrors.CodeNotFound, storageerrors.CodeOf(err))
		assert.True(t, tracker.ErrorCalled)
		assert.False(t, tracker.CompleteCalled)

		var se *storageerrors.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "getBlobToBytes", se.Op)
		assert.Equal(t, "container", se.Container)
		assert.Equal(t, "missing", se.Name)
	})

	t.Run("container not found", func(t *testing.T) {
		_, err := client.GetBlobToBytes(t.Context(), "other", "blob")
		assert.ErrorIs(t, err, storageerrors.ErrContainerNotFound)
	})

	t.Run("parallel into a plain writer", func(t *testing.T) {
		var out bytes.Buffer
		_, err := client.GetBlobToStream(t.Context(), "container", "blob", writeOnly{w: &out},
			WithMaxConnections(2))
		assert.ErrorIs(t, err, storageerrors.ErrNotSeekable)
		assert.Equal(t, 0, store.Calls("GetProperties"))
	})

	t.Run("invalid names", func(t *testing.T) {
		_, err := client.GetBlobToBytes(t.Context(), "Bad_Container", "blob")
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

		_, err = client.GetBlobToBytes(t.Context(), "container", "")
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

		_, err = client.GetBlobToStream(t.Context(), "container", "blob", nil)
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
	})
}

func TestClient_CreateBlob_Errors(t *testing.T) {
	t.Run("chunk failure into missing container", func(t *testing.T) {
		client, store, _ := newTestClient(t)
		_, err := client.CreateBlobFromBytes(t.Context(), "nocontainer", "blob", make([]byte, 30),
			WithMaxRetries(2))
		assert.ErrorIs(t, err, storageerrors.ErrChunkFailed)
		assert.ErrorIs(t, err, storageerrors.ErrContainerNotFound)

		ce, ok := storageerrors.AsChunkError(err)
		require.True(t, ok)
		assert.Equal(t, 2, ce.Attempts)
		assert.Equal(t, 0, store.Calls("CommitBlockList"))
	})

	t.Run("parallel from a plain reader", func(t *testing.T) {
		client, store, _ := newTestClient(t)
		_, err := client.CreateBlobFromStream(t.Context(), "container", "blob",
			testutil.NonSeekableReader{R: bytes.NewReader(make([]byte, 30))}, 30, WithMaxConnections(2))
		assert.ErrorIs(t, err, storageerrors.ErrNotSeekable)
		assert.Equal(t, 0, store.Calls("StageBlock"))
	})

	t.Run("cancelled", func(t *testing.T) {
		client, store, _ := newTestClient(t)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := client.CreateBlobFromBytes(ctx, "container", "blob", make([]byte, 30))
		assert.ErrorIs(t, err, storageerrors.ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, store.Calls("StageBlock"))
	})

	t.Run("invalid options", func(t *testing.T) {
		client, _, _ := newTestClient(t)
		_, err := client.CreateBlobFromText(t.Context(), "container", "blob", "x",
			WithMetadata(map[string]string{"bad-key": "v"}))
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

		_, err = client.CreateBlobFromText(t.Context(), "container", "blob", "x", WithMaxConnections(-1))
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)

		_, err = client.CreateBlobFromStream(t.Context(), "container", "blob", nil, 0)
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
	})
}

func TestClient_RejectedTransferNotifiesTracker(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Client, tracker storagetypes.TransferOption) error
	}{
		{
			name: "invalid container",
			run: func(c *Client, tracker storagetypes.TransferOption) error {
				_, err := c.CreateBlobFromBytes(t.Context(), "Bad_Container", "b", []byte("x"), tracker)
				return err
			},
		},
		{
			name: "nil writer",
			run: func(c *Client, tracker storagetypes.TransferOption) error {
				_, err := c.GetBlobToStream(t.Context(), "container", "b", nil, tracker)
				return err
			},
		},
		{
			name: "missing local file",
			run: func(c *Client, tracker storagetypes.TransferOption) error {
				_, err := c.CreateBlobFromPath(t.Context(), "container", "b", "/missing.bin", tracker)
				return err
			},
		},
		{
			name: "empty download path",
			run: func(c *Client, tracker storagetypes.TransferOption) error {
				_, err := c.GetBlobToPath(t.Context(), "container", "b", "", tracker)
				return err
			},
		},
		{
			name: "append from missing local file",
			run: func(c *Client, tracker storagetypes.TransferOption) error {
				_, err := c.AppendBlobFromPath(t.Context(), "container", "b", "/missing.bin", tracker)
				return err
			},
		},
		{
			name: "unsized file upload",
			run: func(c *Client, tracker storagetypes.TransferOption) error {
				_, err := c.CreateFileFromStream(t.Context(), "share", "", "f", bytes.NewReader(nil), -1, tracker)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, blobs, _ := newTestClient(t)
			tracker := &testutil.MockProgressTracker{}

			err := tt.run(client, WithProgress(tracker))
			require.Error(t, err)
			assert.True(t, tracker.ErrorCalled)
			assert.Equal(t, err, tracker.LastError)
			assert.False(t, tracker.CompleteCalled)
			assert.False(t, tracker.UpdateCalled)
			assert.Zero(t, blobs.Calls("Upload"))
		})
	}
}
