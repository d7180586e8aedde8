package nulldev

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

func TestWriteDiscardsAndCounts(t *testing.T) {
	drv := New()
	inst, err := drv.Open(1, 0, 0)
	require.NoError(t, err)

	n, err := inst.Write([]byte("some bytes"), 0, vfs.Attr{})
	require.NoError(t, err)
	assert.Equal(t, len("some bytes"), n)
	assert.Equal(t, uint64(len("some bytes")), drv.WrittenBytes())
}

func TestReadAlwaysReturnsEOF(t *testing.T) {
	drv := New()
	inst, err := drv.Open(1, 0, 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	_, err = inst.Read(buf, 0, vfs.Attr{})
	assert.Equal(t, io.EOF, err)
}
