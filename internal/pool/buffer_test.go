package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferPool(t *testing.T) {
	bp := NewBufferPool()
	require.NotNil(t, bp)
	assert.Equal(t, 0, bp.Sizes())
}

func TestBufferPool_Get(t *testing.T) {
	bp := NewBufferPool()

	tests := []struct {
		name string
		size int
	}{
		{"small chunk", 1024},
		{"block size", 4 * 1024 * 1024},
		{"odd size", 1611392},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bp.Get(tt.size)
			require.NotNil(t, buf)
			assert.Equal(t, tt.size, len(buf))
			assert.Equal(t, tt.size, cap(buf))
			bp.Put(buf)
		})
	}
	assert.Equal(t, 3, bp.Sizes())
}

func TestBufferPool_GetZero(t *testing.T) {
	bp := NewBufferPool()
	assert.Nil(t, bp.Get(0))
	assert.Nil(t, bp.Get(-1))
	bp.Put(nil)
	assert.Equal(t, 0, bp.Sizes())
}

func TestBufferPool_PutRestoresLength(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get(64)
	bp.Put(buf[:10])

	again := bp.Get(64)
	assert.Equal(t, 64, len(again))
}

func TestBufferPool_Concurrent(t *testing.T) {
	bp := NewBufferPool()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			size := 512 * (i%4 + 1)
			for j := 0; j < 100; j++ {
				buf := bp.Get(size)
				buf[0] = byte(j)
				bp.Put(buf)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, bp.Sizes())
}

func TestGlobalPool(t *testing.T) {
	buf := GetBuffer(2048)
	assert.Len(t, buf, 2048)
	PutBuffer(buf)
	assert.Same(t, globalBufferPool, Default())
}

func BenchmarkBufferPool_Get(b *testing.B) {
	bp := NewBufferPool()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := bp.Get(4 * 1024 * 1024)
		bp.Put(buf)
	}
}
