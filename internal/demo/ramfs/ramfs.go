// Package ramfs is an in-memory file system: a demonstration FileSystem
// implementation exercising vfs.Tree end to end without any real storage
// medium underneath it.
//
// Grounded on rclone's backend/local/local.go for the overall Fs/Object
// shape (a tree of nodes addressed by path, opened handles referencing a
// node directly) simplified to what an in-RAM store needs: no os.File, no
// symlinks, no cross-device concerns, just a mutex-guarded node tree.
package ramfs

import (
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/register"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

func init() {
	register.RegisterFS("ramfs", func(vfs.FileMode, string) (vfs.FileSystem, error) {
		return New(), nil
	})
}

type nodeKind int

const (
	kindFile nodeKind = iota
	kindDir
	kindFifo
)

type node struct {
	kind     nodeKind
	mode     vfs.FileMode
	data     []byte
	children map[string]*node
	modTime  time.Time
	dev      vfs.DeviceID
}

// FS is an in-memory hierarchical file system rooted at "/".
type FS struct {
	mu   sync.Mutex
	root *node
}

func New() *FS {
	return &FS{root: &node{kind: kindDir, mode: 0o755, children: make(map[string]*node), modTime: time.Now()}}
}

func clean(p string) []string {
	p = path.Clean("/" + p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// lookup walks to p's node, returning its parent directory and the node's
// own name as well, so callers that need to create/remove an entry don't
// have to re-walk the tree.
func (f *FS) lookup(p string) (parent *node, name string, n *node, err error) {
	parts := clean(p)
	cur := f.root
	if len(parts) == 0 {
		return nil, "", f.root, nil
	}
	for i, part := range parts {
		if cur.kind != kindDir {
			return nil, "", nil, kerrors.New("ramfs.lookup", kerrors.KindNotADirectory)
		}
		child, ok := cur.children[part]
		if i == len(parts)-1 {
			if !ok {
				return cur, part, nil, kerrors.New("ramfs.lookup", kerrors.KindNoSuchEntry)
			}
			return cur, part, child, nil
		}
		if !ok {
			return nil, "", nil, kerrors.New("ramfs.lookup", kerrors.KindNoSuchEntry)
		}
		cur = child
	}
	return nil, "", nil, kerrors.New("ramfs.lookup", kerrors.KindNoSuchEntry)
}

type handle struct {
	fs   *FS
	n    *node
	pos  int64
	path string
}

func (h *handle) Read(dst []byte, at int64, attr vfs.Attr) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	if at >= int64(len(h.n.data)) {
		return 0, io.EOF
	}
	n := copy(dst, h.n.data[at:])
	return n, nil
}

func (h *handle) Write(src []byte, at int64, attr vfs.Attr) (int, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	end := at + int64(len(src))
	if end > int64(len(h.n.data)) {
		grown := make([]byte, end)
		copy(grown, h.n.data)
		h.n.data = grown
	}
	copy(h.n.data[at:end], src)
	h.n.modTime = time.Now()
	return len(src), nil
}

func (h *handle) Ioctl(request int, arg interface{}) error {
	return kerrors.New("ramfs.Ioctl", kerrors.KindNotSupported)
}

func (h *handle) Stat() (vfs.Stat, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	return vfs.Stat{Size: int64(len(h.n.data)), Mode: h.n.mode, Dev: h.n.dev, ModTime: h.n.modTime}, nil
}

func (h *handle) Flush() error          { return nil }
func (h *handle) Close(force bool) error { return nil }

// Open implements vfs.FileSystem.
func (f *FS) Open(p string, flags vfs.OpenFlag, mode vfs.FileMode) (vfs.FileHandle, error) {
	f.mu.Lock()
	parent, name, n, err := f.lookup(p)
	if err != nil {
		if flags&vfs.OCreate == 0 {
			f.mu.Unlock()
			return nil, err
		}
		if parent == nil {
			f.mu.Unlock()
			return nil, kerrors.New("ramfs.Open", kerrors.KindNoSuchEntry)
		}
		n = &node{kind: kindFile, mode: mode, modTime: time.Now()}
		parent.children[name] = n
	} else if flags&vfs.OExcl != 0 {
		f.mu.Unlock()
		return nil, kerrors.New("ramfs.Open", kerrors.KindAlreadyExists)
	}
	if n.kind != kindFile {
		f.mu.Unlock()
		return nil, kerrors.New("ramfs.Open", kerrors.KindIsADirectory)
	}
	if flags&vfs.OTrunc != 0 {
		n.data = nil
	}
	f.mu.Unlock()
	return &handle{fs: f, n: n, path: p}, nil
}

type dirHandle struct {
	entries []vfs.DirEntry
	pos     int
}

func (d *dirHandle) ReadDir() (vfs.DirEntry, error) {
	if d.pos >= len(d.entries) {
		return vfs.DirEntry{}, io.EOF
	}
	e := d.entries[d.pos]
	d.pos++
	return e, nil
}

func (d *dirHandle) Close() error { return nil }

// OpenDir implements vfs.FileSystem.
func (f *FS) OpenDir(p string) (vfs.DirHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _, n, err := f.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.kind != kindDir {
		return nil, kerrors.New("ramfs.OpenDir", kerrors.KindNotADirectory)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]vfs.DirEntry, 0, len(names))
	for _, name := range names {
		c := n.children[name]
		entries = append(entries, vfs.DirEntry{Name: name, Mode: c.mode, Size: int64(len(c.data)), Dev: c.dev})
	}
	return &dirHandle{entries: entries}, nil
}

// Mknod creates a device-backed node -- a ramfs entry standing in for a
// real device file, since ramfs carries no driver of its own underneath
// it; the node's mode is left at the default and only its device id is
// recorded.
func (f *FS) Mknod(p string, dev vfs.DeviceID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, _, err := f.lookup(p)
	if err == nil {
		return kerrors.New("ramfs.Mknod", kerrors.KindAlreadyExists)
	}
	if parent == nil {
		return kerrors.New("ramfs.Mknod", kerrors.KindNoSuchEntry)
	}
	parent.children[name] = &node{kind: kindFile, mode: 0o644, dev: dev, modTime: time.Now()}
	return nil
}

func (f *FS) Mkdir(p string, mode vfs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, _, err := f.lookup(p)
	if err == nil {
		return kerrors.New("ramfs.Mkdir", kerrors.KindAlreadyExists)
	}
	if parent == nil {
		return kerrors.New("ramfs.Mkdir", kerrors.KindNoSuchEntry)
	}
	parent.children[name] = &node{kind: kindDir, mode: mode, children: make(map[string]*node), modTime: time.Now()}
	return nil
}

func (f *FS) Mkfifo(p string, mode vfs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, _, err := f.lookup(p)
	if err == nil {
		return kerrors.New("ramfs.Mkfifo", kerrors.KindAlreadyExists)
	}
	if parent == nil {
		return kerrors.New("ramfs.Mkfifo", kerrors.KindNoSuchEntry)
	}
	parent.children[name] = &node{kind: kindFifo, mode: mode, modTime: time.Now()}
	return nil
}

func (f *FS) Remove(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, n, err := f.lookup(p)
	if err != nil {
		return err
	}
	if n.kind == kindDir && len(n.children) > 0 {
		return kerrors.New("ramfs.Remove", kerrors.KindNotSupported)
	}
	delete(parent.children, name)
	return nil
}

func (f *FS) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	oldParent, oldName, n, err := f.lookup(oldPath)
	if err != nil {
		return err
	}
	newParent, newName, _, nerr := f.lookup(newPath)
	if newParent == nil && nerr != nil {
		return kerrors.New("ramfs.Rename", kerrors.KindNoSuchEntry)
	}
	newParent.children[newName] = n
	delete(oldParent.children, oldName)
	return nil
}

func (f *FS) Chmod(p string, mode vfs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _, n, err := f.lookup(p)
	if err != nil {
		return err
	}
	n.mode = mode
	return nil
}

func (f *FS) Chown(p string, uid, gid int) error {
	_, _, _, err := f.lookup(p)
	return err
}

func (f *FS) Stat(p string) (vfs.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _, n, err := f.lookup(p)
	if err != nil {
		return vfs.Stat{}, err
	}
	return vfs.Stat{Size: int64(len(n.data)), Mode: n.mode, Dev: n.dev, ModTime: n.modTime}, nil
}

func (f *FS) StatFS() (vfs.StatFS, error) {
	return vfs.StatFS{Type: "", BlockSize: 512, Blocks: 1 << 20, BlocksFree: 1 << 19, FSName: "ramfs"}, nil
}

func (f *FS) Sync() error { return nil }

// Release tears down the file system's in-memory state. The mount tree
// already refuses Unmount while any handle is open or a child is mounted
// underneath this one, so by the time Release runs there is nothing left
// to flush or reject.
func (f *FS) Release() error { return nil }
