package storage

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageerrors "github.com/input-output-hk/catalyst-forge-libs/storage/errors"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/testutil"
)

func TestClient_AppendBlob(t *testing.T) {
	client, store, _ := newTestClient(t)

	created, err := client.CreateAppendBlob(t.Context(), "container", "log.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ETag)

	stored, ok := store.Get("container", "log.txt")
	require.True(t, ok)
	assert.True(t, stored.Append)
	assert.Equal(t, "text/plain; charset=utf-8", stored.ContentType)

	first := []byte("first line\n")
	res, err := client.AppendBlobFromBytes(t.Context(), "container", "log.txt", first, WithMaxConnections(4))
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)), res.Size)
	assert.Equal(t, 2, store.Calls("AppendBlock"))

	second := testutil.GeneratePatternData(20)
	_, err = client.AppendBlobFromStream(t.Context(), "container", "log.txt",
		testutil.NonSeekableReader{R: bytes.NewReader(second)}, -1)
	require.NoError(t, err)

	_, err = client.AppendBlobFromText(t.Context(), "container", "log.txt", "end")
	require.NoError(t, err)

	stored, ok = store.Get("container", "log.txt")
	require.True(t, ok)
	want := append(append(append([]byte{}, first...), second...), "end"...)
	assert.Equal(t, want, stored.Data)
}

func TestClient_AppendBlobFromPath(t *testing.T) {
	client, store, _ := newTestClient(t)
	data := testutil.GeneratePatternData(17)
	require.NoError(t, util.WriteFile(client.fs, "/data/chunk.bin", data, 0o644))

	_, err := client.CreateAppendBlob(t.Context(), "container", "blob")
	require.NoError(t, err)

	tracker := &testutil.MockProgressTracker{}
	_, err = client.AppendBlobFromPath(t.Context(), "container", "blob", "/data/chunk.bin", WithProgress(tracker))
	require.NoError(t, err)
	assert.True(t, tracker.CompleteCalled)
	assert.Equal(t, int64(17), tracker.BytesTransferred)
	assert.Equal(t, int64(17), tracker.TotalBytes)

	stored, ok := store.Get("container", "blob")
	require.True(t, ok)
	assert.Equal(t, data, stored.Data)
}

func TestClient_AppendBlob_Errors(t *testing.T) {
	client, store, _ := newTestClient(t)
	store.Put("container", "block", []byte("block blob"), "")

	t.Run("missing blob", func(t *testing.T) {
		_, err := client.AppendBlobFromText(t.Context(), "container", "missing", "x", WithMaxRetries(1))
		assert.True(t, storageerrors.IsNotFound(err))
		assert.True(t, storageerrors.IsChunkFailed(err))
	})

	t.Run("not an append blob", func(t *testing.T) {
		_, err := client.AppendBlobFromText(t.Context(), "container", "block", "x", WithMaxRetries(1))
		assert.True(t, storageerrors.IsChunkFailed(err))
		assert.False(t, storageerrors.IsNotFound(err))
	})

	t.Run("missing container", func(t *testing.T) {
		_, err := client.CreateAppendBlob(t.Context(), "nocontainer", "blob")
		assert.ErrorIs(t, err, storageerrors.ErrContainerNotFound)
	})

	t.Run("nil reader", func(t *testing.T) {
		_, err := client.AppendBlobFromStream(t.Context(), "container", "blob", nil, 1)
		assert.ErrorIs(t, err, storageerrors.ErrInvalidInput)
	})
}
