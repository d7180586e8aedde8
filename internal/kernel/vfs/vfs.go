// Package vfs implements the virtual file system: a mount tree of
// FileSystem drivers, path resolution by longest-mounted-prefix, and the
// file/directory handle types returned to callers.
//
// Grounded on original_source/src/system/include/fs/vfs.h: the vtable
// (vfs_FS_itf_t) becomes the FileSystem interface below, one method per
// fs_* function pointer; struct vfs_file/vfs_dir become File/Dir; the
// O_*/S_IF* flag and mode bits are preserved as typed Go constants instead
// of untyped C macros.
package vfs

import (
	"io"
	"os"
	"time"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/restype"
)

// OpenFlag mirrors the O_* bits from vfs.h.
type OpenFlag uint32

// ORdOnly/OWrOnly/ORdWr form the two-bit access-mode field, not independent
// flag bits -- test with & O_ACCMODE semantics, not a bare &, exactly like
// POSIX's O_RDONLY/O_WRONLY/O_RDWR. OCreate and up are independent bits
// starting above the access-mode field.
const (
	ORdOnly OpenFlag = 0
	OWrOnly OpenFlag = 1
	ORdWr   OpenFlag = 2

	OCreate OpenFlag = 1 << (iota + 1)
	OExcl
	OTrunc
	OAppend
)

// FileMode mirrors the S_IF*/S_ISxxx bits, reusing os.FileMode's own type
// identity for the permission bits (os.FileMode's low 9 bits already match
// POSIX rwxrwxrwx). It is a plain alias: no dnx-specific S_IFDEV/S_IFPROG/
// S_IFIFO kind constants are defined on top of os.FileMode's own bits.
type FileMode = os.FileMode

// DeviceID identifies a device node -- vfs.h's dev_t, major/minor packed
// into one value the way package driver's registry expects.
type DeviceID uint32

func MakeDevice(major, minor uint8) DeviceID {
	return DeviceID(uint32(major)<<8 | uint32(minor))
}

func (d DeviceID) Major() uint8 { return uint8(d >> 8) }
func (d DeviceID) Minor() uint8 { return uint8(d) }

// Stat mirrors struct stat's fields this kernel actually uses.
type Stat struct {
	Size    int64
	Mode    FileMode
	Dev     DeviceID
	ModTime time.Time
}

// StatFS mirrors struct statfs.
type StatFS struct {
	Type      string
	BlockSize int64
	Blocks    int64
	BlocksFree int64
	Files     int64
	FilesFree int64
	FSName    string
}

// Attr is the per-open read/write mode attribute passed to Read/Write --
// struct vfs_fattr.
type Attr struct {
	NonBlockingRd bool
	NonBlockingWr bool
}

// DirEntry is one entry from ReadDir -- dirent_t.
type DirEntry struct {
	Name string
	Mode FileMode
	Size int64
	Dev  DeviceID
}

// FileHandle is the open-file side of the vtable: fs_write/fs_read/
// fs_ioctl/fs_fstat/fs_flush/fs_close, scoped to one already-opened file.
type FileHandle interface {
	Read(dst []byte, at int64, attr Attr) (int, error)
	Write(src []byte, at int64, attr Attr) (int, error)
	Ioctl(request int, arg interface{}) error
	Stat() (Stat, error)
	Flush() error
	Close(force bool) error
}

// DirHandle is the open-directory side of the vtable: fs_readdir bound to
// one opendir call.
type DirHandle interface {
	ReadDir() (DirEntry, error) // io.EOF once exhausted
	Close() error
}

// FileSystem is the driver vtable itself -- vfs_FS_itf_t translated method
// for method. A concrete filesystem (demo/ramfs, a future real driver)
// implements this and self-registers through register.RegisterFS.
type FileSystem interface {
	Open(path string, flags OpenFlag, mode FileMode) (FileHandle, error)
	OpenDir(path string) (DirHandle, error)
	Mknod(path string, dev DeviceID) error
	Mkdir(path string, mode FileMode) error
	Mkfifo(path string, mode FileMode) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Chmod(path string, mode FileMode) error
	Chown(path string, uid, gid int) error
	Stat(path string) (Stat, error)
	StatFS() (StatFS, error)
	Sync() error
	Release() error
}

// File is the resource-tracked handle returned to process code by Open --
// struct vfs_file, with res_header_t replaced by restype.Header.
type File struct {
	restype.Header
	fs     FileSystem
	handle FileHandle
	pos    int64
	flags  OpenFlag
	eof    bool
	attr   Attr
	mount  *mountEntry
}

func (f *File) ResourceTag() restype.Tag { return restype.TagFile }

func (f *File) Release() error { return f.Close(true) }

// Read reads from the current position, advancing it -- _vfs_fread.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.handle.Read(p, f.pos, f.attr)
	f.pos += int64(n)
	if err == io.EOF {
		f.eof = true
	}
	return n, err
}

// Write writes at the current position (or at EOF if OAppend) -- _vfs_fwrite.
func (f *File) Write(p []byte) (int, error) {
	at := f.pos
	if f.flags&OAppend != 0 {
		st, err := f.handle.Stat()
		if err == nil {
			at = st.Size
		}
	}
	n, err := f.handle.Write(p, at, f.attr)
	f.pos = at + int64(n)
	return n, err
}

// Seek repositions the file -- _vfs_fseek, whence one of io.Seek{Start,Current,End}.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		st, err := f.handle.Stat()
		if err != nil {
			return 0, err
		}
		f.pos = st.Size + offset
	default:
		return 0, kerrors.New("vfs.File.Seek", kerrors.KindInvalidArgument)
	}
	f.eof = false
	return f.pos, nil
}

func (f *File) Tell() int64 { return f.pos }

func (f *File) Ioctl(request int, arg interface{}) error { return f.handle.Ioctl(request, arg) }
func (f *File) Stat() (Stat, error)                      { return f.handle.Stat() }
func (f *File) Flush() error                             { return f.handle.Flush() }
func (f *File) Eof() bool                                { return f.eof }
func (f *File) ClearErr()                                { f.eof = false }

// Close closes the file -- _vfs_fclose(file, force).
func (f *File) Close(force bool) error {
	return f.handle.Close(force)
}

// SetNonBlockingRead/SetNonBlockingWrite implement
// IOCTL_VFS__NON_BLOCKING_{RD,WR}_MODE.
func (f *File) SetNonBlockingRead(v bool)  { f.attr.NonBlockingRd = v }
func (f *File) SetNonBlockingWrite(v bool) { f.attr.NonBlockingWr = v }
func (f *File) NonBlockingRead() bool      { return f.attr.NonBlockingRd }
func (f *File) NonBlockingWrite() bool     { return f.attr.NonBlockingWr }

// Dir is the resource-tracked handle returned by OpenDir -- struct vfs_dir.
type Dir struct {
	restype.Header
	handle DirHandle
	mount  *mountEntry
}

func (d *Dir) ResourceTag() restype.Tag { return restype.TagDir }
func (d *Dir) Release() error           { return d.handle.Close() }
func (d *Dir) ReadDir() (DirEntry, error) { return d.handle.ReadDir() }
func (d *Dir) Close() error             { return d.handle.Close() }
