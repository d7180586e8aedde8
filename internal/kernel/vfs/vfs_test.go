package vfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/restype"
)

// memFS is a tiny single-file in-memory FileSystem used only to exercise
// Tree's mount/path-resolution/open/close plumbing, independent of the
// demo ramfs implementation.
type memFS struct {
	data []byte
}

type memHandle struct{ fs *memFS }

func (h *memHandle) Read(dst []byte, at int64, attr Attr) (int, error) {
	if at >= int64(len(h.fs.data)) {
		return 0, io.EOF
	}
	return copy(dst, h.fs.data[at:]), nil
}

func (h *memHandle) Write(src []byte, at int64, attr Attr) (int, error) {
	end := at + int64(len(src))
	if end > int64(len(h.fs.data)) {
		grown := make([]byte, end)
		copy(grown, h.fs.data)
		h.fs.data = grown
	}
	copy(h.fs.data[at:end], src)
	return len(src), nil
}

func (h *memHandle) Ioctl(int, interface{}) error { return nil }
func (h *memHandle) Stat() (Stat, error)          { return Stat{Size: int64(len(h.fs.data))}, nil }
func (h *memHandle) Flush() error                 { return nil }
func (h *memHandle) Close(bool) error             { return nil }

func (f *memFS) Open(path string, flags OpenFlag, mode FileMode) (FileHandle, error) {
	return &memHandle{fs: f}, nil
}
func (f *memFS) OpenDir(path string) (DirHandle, error) {
	return nil, kerrors.New("memFS.OpenDir", kerrors.KindNotSupported)
}
func (f *memFS) Mknod(path string, dev DeviceID) error      { return nil }
func (f *memFS) Mkdir(path string, mode FileMode) error     { return nil }
func (f *memFS) Mkfifo(path string, mode FileMode) error    { return nil }
func (f *memFS) Remove(path string) error                  { return nil }
func (f *memFS) Rename(oldPath, newPath string) error       { return nil }
func (f *memFS) Chmod(path string, mode FileMode) error     { return nil }
func (f *memFS) Chown(path string, uid, gid int) error      { return nil }
func (f *memFS) Stat(path string) (Stat, error)             { return Stat{Size: int64(len(f.data))}, nil }
func (f *memFS) StatFS() (StatFS, error)                    { return StatFS{FSName: "memfs"}, nil }
func (f *memFS) Sync() error                                { return nil }
func (f *memFS) Release() error                             { return nil }

func TestMountOpenWriteReadClose(t *testing.T) {
	tree := NewTree()
	fs := &memFS{}
	require.NoError(t, tree.Mount("/data", fs, "mem"))

	reg := restype.NewList()
	f, id, err := tree.Open("/data/file.txt", OCreate|OWrOnly, 0o644, reg)
	require.NoError(t, err)

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	require.NoError(t, tree.CloseFile(id, reg, false))
}

func TestMountDuplicateFails(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Mount("/a", &memFS{}, "mem"))
	err := tree.Mount("/a", &memFS{}, "mem")
	assert.Error(t, err)
}

func TestLongestPrefixMatch(t *testing.T) {
	tree := NewTree()
	root := &memFS{data: []byte("root")}
	sub := &memFS{data: []byte("sub")}
	require.NoError(t, tree.Mount("/", root, "root"))
	require.NoError(t, tree.Mount("/mnt", sub, "sub"))

	st, err := tree.Stat("/mnt/file")
	require.NoError(t, err)
	assert.Equal(t, int64(len("sub")), st.Size)

	st, err = tree.Stat("/other/file")
	require.NoError(t, err)
	assert.Equal(t, int64(len("root")), st.Size)
}

func TestRealPathSlashCorrection(t *testing.T) {
	assert.Equal(t, "/home/user/", RealPath("/home/user", "", AddSlash))
	assert.Equal(t, "/home/user", RealPath("/home/user", "", SubSlash))
	assert.Equal(t, "/etc/conf", RealPath("/home/user", "/etc/conf", NoSlashAction))
}

func TestUnmountBusyWhileFileOpen(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Mount("/data", &memFS{}, "mem"))

	reg := restype.NewList()
	_, id, err := tree.Open("/data/file.txt", OCreate|OWrOnly, 0o644, reg)
	require.NoError(t, err)

	err = tree.Unmount("/data")
	require.Error(t, err, "unmount must refuse while a file under the mount is still open")
	assert.Equal(t, kerrors.KindBusy, kerrors.KindOf(err))

	require.NoError(t, tree.CloseFile(id, reg, false))
	assert.NoError(t, tree.Unmount("/data"), "unmount must succeed once the last open file is closed")
}

func TestUnmountBusyWithChildMount(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Mount("/data", &memFS{}, "mem"))
	require.NoError(t, tree.Mount("/data/nested", &memFS{}, "mem-nested"))

	err := tree.Unmount("/data")
	require.Error(t, err, "unmount must refuse while another file system is mounted underneath it")
	assert.Equal(t, kerrors.KindBusy, kerrors.KindOf(err))

	require.NoError(t, tree.Unmount("/data/nested"))
	assert.NoError(t, tree.Unmount("/data"), "unmount must succeed once the child mount is gone")
}

func TestUnmountOfUnknownMountFails(t *testing.T) {
	tree := NewTree()
	err := tree.Unmount("/nowhere")
	assert.Error(t, err)
}
