package fscache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	blocks map[uint32][]byte
	writes int
}

func newMemBackend() *memBackend { return &memBackend{blocks: make(map[uint32][]byte)} }

func (b *memBackend) WriteBlock(block uint32, data []byte) error {
	b.writes++
	cp := append([]byte(nil), data...)
	b.blocks[block] = cp
	return nil
}

func (b *memBackend) ReadBlock(block uint32) ([]byte, error) {
	return append([]byte(nil), b.blocks[block]...), nil
}

func TestWriteThroughWritesImmediately(t *testing.T) {
	c, err := New(4, WriteThrough)
	require.NoError(t, err)
	backend := newMemBackend()

	require.NoError(t, c.Write(backend, 0, []byte("hello"), WriteThrough))
	assert.Equal(t, 1, backend.writes)
	assert.False(t, c.IsSyncNeeded())
}

func TestWriteBackDefersUntilSync(t *testing.T) {
	c, err := New(4, WriteBack)
	require.NoError(t, err)
	backend := newMemBackend()

	require.NoError(t, c.Write(backend, 0, []byte("hello"), WriteBack))
	assert.Equal(t, 0, backend.writes)
	assert.True(t, c.IsSyncNeeded())

	require.NoError(t, c.Sync())
	assert.Equal(t, 1, backend.writes)
	assert.False(t, c.IsSyncNeeded())
}

func TestReadFillsFromBackendOnMiss(t *testing.T) {
	c, err := New(4, WriteThrough)
	require.NoError(t, err)
	backend := newMemBackend()
	backend.blocks[3] = []byte("from-disk")

	data, err := c.Read(backend, 3)
	require.NoError(t, err)
	assert.Equal(t, "from-disk", string(data))
}

func TestEvictionWritesBackDirtyBlock(t *testing.T) {
	c, err := New(1, WriteBack)
	require.NoError(t, err)
	backend := newMemBackend()

	require.NoError(t, c.Write(backend, 0, []byte("one"), WriteBack))
	require.NoError(t, c.Write(backend, 1, []byte("two"), WriteBack))
	assert.Equal(t, 1, backend.writes, "evicting block 0 should have flushed it")
}

func TestDropDiscardsWithoutWriteBack(t *testing.T) {
	c, err := New(4, WriteBack)
	require.NoError(t, err)
	backend := newMemBackend()
	require.NoError(t, c.Write(backend, 0, []byte("x"), WriteBack))

	c.Drop()
	assert.Equal(t, 0, backend.writes)
	assert.Equal(t, 0, c.Len())
}
