package ramfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

func TestCreateWriteReadFile(t *testing.T) {
	fs := New()
	h, err := fs.Open("/greeting.txt", vfs.OCreate|vfs.OWrOnly, 0o644)
	require.NoError(t, err)

	n, err := h.Write([]byte("hello ramfs"), 0, vfs.Attr{})
	require.NoError(t, err)
	assert.Equal(t, len("hello ramfs"), n)

	buf := make([]byte, 64)
	n, err = h.Read(buf, 0, vfs.Attr{})
	require.NoError(t, err)
	assert.Equal(t, "hello ramfs", string(buf[:n]))
}

func TestOpenMissingFileFailsWithoutCreate(t *testing.T) {
	fs := New()
	_, err := fs.Open("/missing.txt", vfs.ORdOnly, 0)
	assert.Error(t, err)
}

func TestOpenExclRejectsExisting(t *testing.T) {
	fs := New()
	_, err := fs.Open("/x.txt", vfs.OCreate, 0o644)
	require.NoError(t, err)
	_, err = fs.Open("/x.txt", vfs.OCreate|vfs.OExcl, 0o644)
	assert.Error(t, err)
}

func TestMkdirAndOpenDirListsEntries(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Mkdir("/dir", 0o755))
	_, err := fs.Open("/dir/a.txt", vfs.OCreate, 0o644)
	require.NoError(t, err)
	_, err = fs.Open("/dir/b.txt", vfs.OCreate, 0o644)
	require.NoError(t, err)

	dh, err := fs.OpenDir("/dir")
	require.NoError(t, err)

	var names []string
	for {
		e, err := dh.ReadDir()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Mkdir("/dir", 0o755))
	_, err := fs.Open("/dir/a.txt", vfs.OCreate, 0o644)
	require.NoError(t, err)

	err = fs.Remove("/dir")
	assert.Error(t, err)
}

func TestRenameMovesEntry(t *testing.T) {
	fs := New()
	_, err := fs.Open("/old.txt", vfs.OCreate, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Rename("/old.txt", "/new.txt"))

	_, err = fs.Stat("/old.txt")
	assert.Error(t, err)
	_, err = fs.Stat("/new.txt")
	assert.NoError(t, err)
}
