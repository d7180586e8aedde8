package register

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnx-rtos/kernel/internal/kernel/driver"
	"github.com/dnx-rtos/kernel/internal/kernel/ktask"
	"github.com/dnx-rtos/kernel/internal/kernel/mm"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/restype"
	"github.com/dnx-rtos/kernel/internal/kernel/shm"
	"github.com/dnx-rtos/kernel/internal/kernel/syscall"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

// fixtureFS is a minimal in-memory file system; together with
// newFixtureSystem it wires a full Syscalls table the way kernel.Boot
// does, without pulling in the demo ramfs package (which would import this
// package and cycle).
type fixtureFS struct {
	data map[string][]byte
}

type fixtureHandle struct {
	fs   *fixtureFS
	name string
}

func (h *fixtureHandle) Read(dst []byte, at int64, attr vfs.Attr) (int, error) {
	d := h.fs.data[h.name]
	if at >= int64(len(d)) {
		return 0, errEOF
	}
	return copy(dst, d[at:]), nil
}
func (h *fixtureHandle) Write(src []byte, at int64, attr vfs.Attr) (int, error) {
	d := h.fs.data[h.name]
	end := at + int64(len(src))
	if end > int64(len(d)) {
		grown := make([]byte, end)
		copy(grown, d)
		d = grown
	}
	copy(d[at:end], src)
	h.fs.data[h.name] = d
	return len(src), nil
}
func (h *fixtureHandle) Ioctl(int, interface{}) error { return nil }
func (h *fixtureHandle) Stat() (vfs.Stat, error) {
	return vfs.Stat{Size: int64(len(h.fs.data[h.name]))}, nil
}
func (h *fixtureHandle) Flush() error     { return nil }
func (h *fixtureHandle) Close(bool) error { return nil }

func (f *fixtureFS) Open(path string, flags vfs.OpenFlag, mode vfs.FileMode) (vfs.FileHandle, error) {
	if _, ok := f.data[path]; !ok {
		f.data[path] = nil
	}
	return &fixtureHandle{fs: f, name: path}, nil
}
func (f *fixtureFS) OpenDir(path string) (vfs.DirHandle, error) { return nil, errEOF }
func (f *fixtureFS) Mknod(path string, dev vfs.DeviceID) error  { return nil }
func (f *fixtureFS) Mkdir(path string, mode vfs.FileMode) error { return nil }
func (f *fixtureFS) Mkfifo(path string, mode vfs.FileMode) error { return nil }
func (f *fixtureFS) Remove(path string) error                    { delete(f.data, path); return nil }
func (f *fixtureFS) Rename(oldPath, newPath string) error {
	f.data[newPath] = f.data[oldPath]
	delete(f.data, oldPath)
	return nil
}
func (f *fixtureFS) Chmod(path string, mode vfs.FileMode) error { return nil }
func (f *fixtureFS) Chown(path string, uid, gid int) error      { return nil }
func (f *fixtureFS) Stat(path string) (vfs.Stat, error) {
	return vfs.Stat{Size: int64(len(f.data[path]))}, nil
}
func (f *fixtureFS) StatFS() (vfs.StatFS, error) { return vfs.StatFS{FSName: "fixture"}, nil }
func (f *fixtureFS) Sync() error                 { return nil }
func (f *fixtureFS) Release() error              { return nil }

type eofError struct{}

func (eofError) Error() string { return "EOF" }

var errEOF error = eofError{}

func newFixtureSystem(t *testing.T) (*syscall.Dispatcher, *process.Table, context.CancelFunc) {
	t.Helper()
	tree := vfs.NewTree()
	require.NoError(t, tree.Mount("/", &fixtureFS{data: map[string][]byte{}}, "fixture"))

	memory := mm.NewManager()
	memory.RegisterRegion("heap", 1<<16)

	drivers := driver.NewRegistry()
	shmMgr := shm.NewManager()
	procs := process.NewTable()

	d := syscall.NewDispatcher(nil)
	Syscalls(d, memory, tree, drivers, shmMgr, procs)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	return d, procs, cancel
}

func callingProcess(procs *process.Table) *process.Process {
	return procs.Spawn(0, []string{"caller"}, "/", func(ctx context.Context, p *process.Process) { <-ctx.Done() })
}

func TestSyscallsWiresFileLifecycle(t *testing.T) {
	d, procs, cancel := newFixtureSystem(t)
	defer cancel()
	proc := callingProcess(procs)
	defer proc.Kill()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	idv, err := d.Submit(ctx, syscall.Open, proc, "/file.txt", vfs.OCreate|vfs.OWrOnly, vfs.FileMode(0o644))
	require.NoError(t, err)
	id := idv.(restype.ID)

	_, err = d.Submit(ctx, syscall.Write, proc, id, []byte("hello"))
	require.NoError(t, err)

	_, err = d.Submit(ctx, syscall.Seek, proc, id, int64(0), 0)
	require.NoError(t, err)

	gotv, err := d.Submit(ctx, syscall.Read, proc, id, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(gotv.([]byte)))

	_, err = d.Submit(ctx, syscall.Close, proc, id, false)
	require.NoError(t, err)
}

func TestSyscallsWiresMallocAndFree(t *testing.T) {
	d, procs, cancel := newFixtureSystem(t)
	defer cancel()
	proc := callingProcess(procs)
	defer proc.Kill()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	ptrv, err := d.Submit(ctx, syscall.Malloc, proc, 64)
	require.NoError(t, err)
	ptr := ptrv.(mm.Pointer)
	assert.Len(t, ptr.Bytes(), 64)

	_, err = d.Submit(ctx, syscall.Free, proc, &ptr)
	require.NoError(t, err)
}

func TestSyscallsWiresProcessLifecycle(t *testing.T) {
	RegisterProgram(ProgramEntry{Name: "syscalls-test-child", Main: func(args []string) int { return 7 }})

	d, procs, cancel := newFixtureSystem(t)
	defer cancel()
	proc := callingProcess(procs)
	defer proc.Kill()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	childv, err := d.Submit(ctx, syscall.ProcessCreate, proc, []string{"syscalls-test-child"}, "/")
	require.NoError(t, err)
	childPID := childv.(process.PID)

	codev, err := d.Submit(ctx, syscall.ProcessWait, proc, childPID)
	require.NoError(t, err)
	assert.Equal(t, 7, codev)
}

func TestSyscallsWiresSemaphoreMutexQueue(t *testing.T) {
	d, procs, cancel := newFixtureSystem(t)
	defer cancel()
	proc := callingProcess(procs)
	defer proc.Kill()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	semv, err := d.Submit(ctx, syscall.SemaphoreOpen, proc, 1, 0)
	require.NoError(t, err)
	sem := semv.(*ktask.Semaphore)

	_, err = d.Submit(ctx, syscall.SemaphoreSignal, proc, sem)
	require.NoError(t, err)
	_, err = d.Submit(ctx, syscall.SemaphoreWait, proc, sem)
	require.NoError(t, err)

	mtxv, err := d.Submit(ctx, syscall.MutexOpen, proc, ktask.MutexNormal)
	require.NoError(t, err)
	mtx := mtxv.(*ktask.Mutex)
	_, err = d.Submit(ctx, syscall.MutexLock, proc, mtx)
	require.NoError(t, err)
	_, err = d.Submit(ctx, syscall.MutexUnlock, proc, mtx)
	require.NoError(t, err)

	qv, err := d.Submit(ctx, syscall.QueueOpen, proc, 4, 8)
	require.NoError(t, err)
	q := qv.(*ktask.Queue)
	_, err = d.Submit(ctx, syscall.QueueSend, proc, q, "item")
	require.NoError(t, err)
	gotv, err := d.Submit(ctx, syscall.QueueReceive, proc, q)
	require.NoError(t, err)
	assert.Equal(t, "item", gotv)
}

func TestSyscallsWiresMountAndUmountBusy(t *testing.T) {
	d, procs, cancel := newFixtureSystem(t)
	defer cancel()
	proc := callingProcess(procs)
	defer proc.Kill()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	RegisterFS("syscalls-test-fs", func(vfs.FileMode, string) (vfs.FileSystem, error) {
		return &fixtureFS{data: map[string][]byte{}}, nil
	})

	_, err := d.Submit(ctx, syscall.Mount, proc, "/mnt", "syscalls-test-fs", "src", "")
	require.NoError(t, err)

	idv, err := d.Submit(ctx, syscall.Open, proc, "/mnt/f.txt", vfs.OCreate, vfs.FileMode(0o644))
	require.NoError(t, err)
	id := idv.(restype.ID)

	_, err = d.Submit(ctx, syscall.Umount, proc, "/mnt")
	assert.Error(t, err, "umount must be refused while a file under it is open")

	_, err = d.Submit(ctx, syscall.Close, proc, id, false)
	require.NoError(t, err)
	_, err = d.Submit(ctx, syscall.Umount, proc, "/mnt")
	assert.NoError(t, err)
}
