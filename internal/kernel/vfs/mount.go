package vfs

import (
	"path"
	"strings"
	"sync"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/kfmt"
	"github.com/dnx-rtos/kernel/internal/kernel/restype"
)

// mountEntry is one mounted file system -- the original's mntent_t,
// recording the backing FileSystem plus the source description mount(2)
// was given (e.g. a device node path, shown back by Mounts()), plus the
// FS_entry_t.children_cnt-style counters _vfs_umount checks before
// detaching: open handles against this mount, and file systems mounted
// underneath it.
type mountEntry struct {
	path      string
	fs        FileSystem
	source    string
	openCount int
	childCnt  int
	parent    *mountEntry
}

// Tree is the kernel's mount table: a root file system plus any number of
// file systems mounted at subdirectories, resolved by longest matching
// mount-point prefix -- _vfs_mount/_vfs_umount/_vfs_realpath's mount-aware
// path walk.
type Tree struct {
	mu       sync.RWMutex
	mounts   *kfmt.BTree[string, *mountEntry]
	registry *restype.Registry
}

func NewTree() *Tree {
	return &Tree{mounts: kfmt.NewBTree[string, *mountEntry](), registry: restype.NewRegistry()}
}

// Mount attaches fs at mountPath -- _vfs_mount. mountPath must be absolute
// and not already mounted. If mountPath lands inside an existing mount,
// that mount's child-mount count is bumped so its own Unmount is refused
// while this one is still attached underneath it.
func (t *Tree) Mount(mountPath string, fs FileSystem, source string) error {
	mountPath = cleanMountPath(mountPath)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.mounts.Get(mountPath); ok {
		return kerrors.New("vfs.Mount", kerrors.KindAlreadyExists)
	}
	parent, _, err := t.resolveLocked(mountPath)
	if err == nil && parent.path != mountPath {
		parent.childCnt++
	} else {
		parent = nil
	}
	t.mounts.Set(mountPath, &mountEntry{path: mountPath, fs: fs, source: source, parent: parent})
	return nil
}

// Unmount detaches whatever is mounted at mountPath, syncing and releasing
// it first -- _vfs_umount. Busy with KindBusy if any file/dir is still
// open against this mount or another file system is mounted underneath
// it, mirroring vfs.c's FS_entry_t.children_cnt / open-file check that
// refuses to tear down a mount still in use.
func (t *Tree) Unmount(mountPath string) error {
	mountPath = cleanMountPath(mountPath)
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.mounts.Get(mountPath)
	if !ok {
		return kerrors.New("vfs.Unmount", kerrors.KindNoSuchEntry)
	}
	if e.openCount > 0 || e.childCnt > 0 {
		return kerrors.New("vfs.Unmount", kerrors.KindBusy)
	}
	if err := e.fs.Sync(); err != nil {
		return kerrors.Wrap("vfs.Unmount", kerrors.KindIOError, err)
	}
	if err := e.fs.Release(); err != nil {
		return kerrors.Wrap("vfs.Unmount", kerrors.KindIOError, err)
	}
	t.mounts.Delete(mountPath)
	if e.parent != nil {
		e.parent.childCnt--
	}
	return nil
}

func cleanMountPath(p string) string {
	p = path.Clean("/" + p)
	return p
}

// MountEntry is the public view of one mount, for getmntentry/ps-style
// reporting.
type MountEntry struct {
	Path   string
	Source string
}

// Mounts lists every mount point in ascending path order -- the order
// resolve() walks them in, keeping the longest matching prefix.
func (t *Tree) Mounts() []MountEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]MountEntry, 0, t.mounts.Len())
	t.mounts.Ascend(func(k string, v *mountEntry) bool {
		out = append(out, MountEntry{Path: k, Source: v.source})
		return true
	})
	return out
}

// resolve finds the mount owning absPath by longest matching prefix and
// returns the FileSystem plus the path relative to that mount's root --
// the core of _vfs_realpath's mount-aware translation.
func (t *Tree) resolve(absPath string) (*mountEntry, string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolveLocked(absPath)
}

// resolveLocked is resolve's body for callers that already hold t.mu
// (Mount, Unmount).
func (t *Tree) resolveLocked(absPath string) (*mountEntry, string, error) {
	absPath = path.Clean("/" + absPath)

	var best *mountEntry
	t.mounts.Ascend(func(k string, v *mountEntry) bool {
		if k == "/" {
			if best == nil {
				best = v
			}
			return true
		}
		if absPath == k || strings.HasPrefix(absPath, k+"/") {
			if best == nil || len(k) > len(best.path) {
				best = v
			}
		}
		return true
	})
	if best == nil {
		return nil, "", kerrors.New("vfs.resolve", kerrors.KindNoSuchEntry)
	}
	rel := strings.TrimPrefix(absPath, best.path)
	if rel == "" {
		rel = "/"
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return best, rel, nil
}

// Open resolves path, opens it through the owning file system, and wraps
// the handle into a tracked File registered against reg -- _vfs_fopen.
// The owning mount's open-file count is bumped so Unmount can refuse to
// tear it down while the handle is live.
func (t *Tree) Open(absPath string, flags OpenFlag, mode FileMode, reg *restype.List) (*File, restype.ID, error) {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return nil, 0, err
	}
	h, err := m.fs.Open(rel, flags, mode)
	if err != nil {
		return nil, 0, kerrors.Wrap("vfs.Open", kerrors.KindIOError, err)
	}
	t.mu.Lock()
	m.openCount++
	t.mu.Unlock()

	f := &File{fs: m.fs, handle: h, flags: flags, mount: m}
	id := t.registry.Register(f)
	f.Header = restype.Header{ID: id, Tag: restype.TagFile}
	if reg != nil {
		reg.Add(id)
	}
	return f, id, nil
}

// OpenDir resolves and opens a directory -- _vfs_opendir.
func (t *Tree) OpenDir(absPath string, reg *restype.List) (*Dir, restype.ID, error) {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return nil, 0, err
	}
	h, err := m.fs.OpenDir(rel)
	if err != nil {
		return nil, 0, kerrors.Wrap("vfs.OpenDir", kerrors.KindIOError, err)
	}
	t.mu.Lock()
	m.openCount++
	t.mu.Unlock()

	d := &Dir{handle: h, mount: m}
	id := t.registry.Register(d)
	d.Header = restype.Header{ID: id, Tag: restype.TagDir}
	if reg != nil {
		reg.Add(id)
	}
	return d, id, nil
}

// CloseFile releases a previously opened file resource by ID, forgetting it
// from both the global registry and the owning process's list, and drops
// the owning mount's open-file count.
func (t *Tree) CloseFile(id restype.ID, reg *restype.List, force bool) error {
	res, ok := t.registry.Lookup(id, restype.TagFile)
	if !ok {
		return kerrors.New("vfs.CloseFile", kerrors.KindBadFileDescriptor)
	}
	f := res.(*File)
	err := f.Close(force)
	t.registry.Forget(id)
	if reg != nil {
		reg.Remove(id)
	}
	if f.mount != nil {
		t.mu.Lock()
		f.mount.openCount--
		t.mu.Unlock()
	}
	return err
}

// File looks up a previously opened file resource by ID -- the syscall
// layer's way of turning an fd-like restype.ID back into the *File it
// calls Read/Write/Seek/Ioctl/Flush/Stat on.
func (t *Tree) File(id restype.ID) (*File, bool) {
	res, ok := t.registry.Lookup(id, restype.TagFile)
	if !ok {
		return nil, false
	}
	return res.(*File), true
}

// Dir looks up a previously opened directory resource by ID.
func (t *Tree) Dir(id restype.ID) (*Dir, bool) {
	res, ok := t.registry.Lookup(id, restype.TagDir)
	if !ok {
		return nil, false
	}
	return res.(*Dir), true
}

func (t *Tree) CloseDir(id restype.ID, reg *restype.List) error {
	res, ok := t.registry.Lookup(id, restype.TagDir)
	if !ok {
		return kerrors.New("vfs.CloseDir", kerrors.KindBadFileDescriptor)
	}
	d := res.(*Dir)
	err := d.Close()
	t.registry.Forget(id)
	if reg != nil {
		reg.Remove(id)
	}
	if d.mount != nil {
		t.mu.Lock()
		d.mount.openCount--
		t.mu.Unlock()
	}
	return err
}

// Mknod/Mkdir/Mkfifo/Remove/Rename/Chmod/Chown/Stat dispatch to the owning
// mount the same way Open does, each a one-line translation of the
// corresponding _vfs_* entrypoint.

func (t *Tree) Mknod(absPath string, dev DeviceID) error {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return err
	}
	return m.fs.Mknod(rel, dev)
}

func (t *Tree) Mkdir(absPath string, mode FileMode) error {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return err
	}
	return m.fs.Mkdir(rel, mode)
}

func (t *Tree) Mkfifo(absPath string, mode FileMode) error {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return err
	}
	return m.fs.Mkfifo(rel, mode)
}

func (t *Tree) Remove(absPath string) error {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return err
	}
	return m.fs.Remove(rel)
}

// Rename requires both paths resolve to the same mount -- _vfs_rename
// returns a cross-device error otherwise, since no filesystem implements
// moving data between two different backing drivers.
func (t *Tree) Rename(oldPath, newPath string) error {
	m1, rel1, err := t.resolve(oldPath)
	if err != nil {
		return err
	}
	m2, rel2, err := t.resolve(newPath)
	if err != nil {
		return err
	}
	if m1 != m2 {
		return kerrors.New("vfs.Rename", kerrors.KindCrossDeviceLink)
	}
	return m1.fs.Rename(rel1, rel2)
}

func (t *Tree) Chmod(absPath string, mode FileMode) error {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return err
	}
	return m.fs.Chmod(rel, mode)
}

func (t *Tree) Chown(absPath string, uid, gid int) error {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return err
	}
	return m.fs.Chown(rel, uid, gid)
}

func (t *Tree) Stat(absPath string) (Stat, error) {
	m, rel, err := t.resolve(absPath)
	if err != nil {
		return Stat{}, err
	}
	return m.fs.Stat(rel)
}

func (t *Tree) StatFS(absPath string) (StatFS, error) {
	m, _, err := t.resolve(absPath)
	if err != nil {
		return StatFS{}, err
	}
	return m.fs.StatFS()
}

// Sync flushes every mounted file system -- _vfs_sync.
func (t *Tree) Sync() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.mounts.Ascend(func(_ string, v *mountEntry) bool {
		_ = v.fs.Sync()
		return true
	})
}
