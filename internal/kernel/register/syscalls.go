package register

import (
	"context"

	"github.com/dnx-rtos/kernel/internal/kernel/driver"
	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/ktask"
	"github.com/dnx-rtos/kernel/internal/kernel/mm"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/restype"
	"github.com/dnx-rtos/kernel/internal/kernel/shm"
	"github.com/dnx-rtos/kernel/internal/kernel/syscall"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

// ProcessInfo is ProcessStat's result -- a trimmed process_info_t, just
// the fields every caller of _process_getstat actually reads.
type ProcessInfo struct {
	PID      process.PID
	PPID     process.PID
	Name     string
	Priority ktask.Priority
	CPUTicks uint64
}

// Syscalls builds the dispatcher's full handler table in one place at
// boot, once every subsystem instance exists -- the Go equivalent of
// sysfunc.c's syscall_table[] being populated from SYSCALL_* to its
// implementing function. Unlike RegisterProgram/RegisterFS/RegisterDriver,
// this can't be done from package init() because a handler closes over
// live subsystem instances (memory, tree, drivers, shmMgr, procs) that
// don't exist until Boot constructs them -- so Boot calls this once,
// explicitly, instead of relying on import-time side effects.
func Syscalls(d *syscall.Dispatcher, memory *mm.Manager, tree *vfs.Tree, drivers *driver.Registry, shmMgr *shm.Manager, procs *process.Table) {
	registerProcessSyscalls(d, procs)
	registerMemorySyscalls(d, memory)
	registerShmSyscalls(d, shmMgr)
	registerFileSyscalls(d, tree)
	registerSyncSyscalls(d, tree)
	registerSemMutexQueueSyscalls(d)
}

func registerProcessSyscalls(d *syscall.Dispatcher, procs *process.Table) {
	d.Register(syscall.ProcessGetPID, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		return p.PID(), nil
	})
	d.Register(syscall.GetCwd, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		return p.Cwd(), nil
	})
	d.Register(syscall.SetCwd, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		dir, _ := args[0].(string)
		p.SetCwd(dir)
		return nil, nil
	})
	d.Register(syscall.ProcessGetPriority, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		return p.Priority(), nil
	})
	d.Register(syscall.ProcessStat, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		pid, _ := args[0].(process.PID)
		target, ok := procs.Get(pid)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindNoSuchEntry)
		}
		return ProcessInfo{
			PID:      target.PID(),
			PPID:     target.PPID(),
			Name:     target.Name(),
			Priority: target.Priority(),
			CPUTicks: target.CPUTicks(),
		}, nil
	})
	d.Register(syscall.ProcessCreate, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		argv, _ := args[0].([]string)
		cwd, _ := args[1].(string)
		child, err := Spawn(procs, p.PID(), argv, cwd)
		if err != nil {
			return nil, err
		}
		return child.PID(), nil
	})
	d.Register(syscall.ProcessKill, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		pid, _ := args[0].(process.PID)
		target, ok := procs.Get(pid)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindNoSuchEntry)
		}
		target.Kill()
		return nil, nil
	})
	d.Register(syscall.ProcessExit, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		code, _ := args[0].(int)
		p.Exit(code)
		return nil, nil
	})
	d.Register(syscall.ProcessWait, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		pid, _ := args[0].(process.PID)
		target, ok := procs.Get(pid)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindNoSuchEntry)
		}
		code, err := target.Wait(ctx)
		if err != nil {
			return nil, err
		}
		procs.Remove(pid)
		return code, nil
	})
	d.Register(syscall.ThreadCreate, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		fn, _ := args[0].(func(context.Context))
		stackDepth, _ := args[1].(uint32)
		return p.SpawnThread(stackDepth, fn), nil
	})
	d.Register(syscall.ThreadKill, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		tid, _ := args[0].(process.TID)
		if !p.KillThread(tid) {
			return nil, kerrors.New("register.Syscalls", kerrors.KindNoSuchEntry)
		}
		return nil, nil
	})
}

func registerMemorySyscalls(d *syscall.Dispatcher, memory *mm.Manager) {
	d.Register(syscall.Malloc, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		size, _ := args[0].(int)
		return memory.Alloc(mm.PurposeProgram, size, int(p.PID()))
	})
	d.Register(syscall.Zalloc, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		size, _ := args[0].(int)
		return memory.ZAlloc(mm.PurposeProgram, size, int(p.PID()))
	})
	d.Register(syscall.Free, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		ptr, _ := args[0].(*mm.Pointer)
		return nil, memory.Free(mm.PurposeProgram, ptr)
	})
}

func registerShmSyscalls(d *syscall.Dispatcher, shmMgr *shm.Manager) {
	d.Register(syscall.ShmCreate, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		name, _ := args[0].(string)
		size, _ := args[1].(int)
		return nil, shmMgr.Create(name, size)
	})
	d.Register(syscall.ShmAttach, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		name, _ := args[0].(string)
		size, _ := args[1].(int)
		return shmMgr.Attach(name, p.PID(), size, true)
	})
	d.Register(syscall.ShmDetach, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		name, _ := args[0].(string)
		return nil, shmMgr.Detach(name, p.PID())
	})
	d.Register(syscall.ShmDestroy, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		name, _ := args[0].(string)
		return nil, shmMgr.Destroy(name)
	})
}

func registerFileSyscalls(d *syscall.Dispatcher, tree *vfs.Tree) {
	resolve := func(p *process.Process, rel string) string {
		return vfs.RealPath(p.Cwd(), rel, vfs.NoSlashAction)
	}

	d.Register(syscall.Open, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		flags, _ := args[1].(vfs.OpenFlag)
		mode, _ := args[2].(vfs.FileMode)
		_, id, err := tree.Open(resolve(p, path), flags, mode, p.Resources())
		return id, err
	})
	d.Register(syscall.Close, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		force, _ := args[1].(bool)
		return nil, tree.CloseFile(id, p.Resources(), force)
	})
	d.Register(syscall.Read, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		n, _ := args[1].(int)
		f, ok := tree.File(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		buf := make([]byte, n)
		got, err := f.Read(buf)
		return buf[:got], err
	})
	d.Register(syscall.Write, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		data, _ := args[1].([]byte)
		f, ok := tree.File(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		return f.Write(data)
	})
	d.Register(syscall.Seek, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		offset, _ := args[1].(int64)
		whence, _ := args[2].(int)
		f, ok := tree.File(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		return f.Seek(offset, whence)
	})
	d.Register(syscall.Flush, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		f, ok := tree.File(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		return nil, f.Flush()
	})
	d.Register(syscall.FStat, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		f, ok := tree.File(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		return f.Stat()
	})
	d.Register(syscall.Ioctl, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		request, _ := args[1].(int)
		f, ok := tree.File(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		return nil, f.Ioctl(request, args[2])
	})

	d.Register(syscall.OpenDir, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		_, id, err := tree.OpenDir(resolve(p, path), p.Resources())
		return id, err
	})
	d.Register(syscall.CloseDir, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		return nil, tree.CloseDir(id, p.Resources())
	})
	d.Register(syscall.ReadDir, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		id, _ := args[0].(restype.ID)
		dh, ok := tree.Dir(id)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindBadFileDescriptor)
		}
		return dh.ReadDir()
	})

	d.Register(syscall.Mount, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		fsName, _ := args[1].(string)
		source, _ := args[2].(string)
		optionString, _ := args[3].(string)
		factory, ok := LookupFS(fsName)
		if !ok {
			return nil, kerrors.New("register.Syscalls", kerrors.KindNoSuchEntry)
		}
		fs, err := factory(0, optionString)
		if err != nil {
			return nil, err
		}
		return nil, tree.Mount(resolve(p, path), fs, source)
	})
	d.Register(syscall.Umount, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		return nil, tree.Unmount(resolve(p, path))
	})
	d.Register(syscall.GetMntEntry, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		index, _ := args[0].(int)
		entries := tree.Mounts()
		if index < 0 || index >= len(entries) {
			return nil, kerrors.New("register.Syscalls", kerrors.KindNoSuchEntry)
		}
		return entries[index], nil
	})

	d.Register(syscall.Mknod, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		dev, _ := args[1].(vfs.DeviceID)
		return nil, tree.Mknod(resolve(p, path), dev)
	})
	d.Register(syscall.Mkfifo, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		mode, _ := args[1].(vfs.FileMode)
		return nil, tree.Mkfifo(resolve(p, path), mode)
	})
	d.Register(syscall.Mkdir, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		mode, _ := args[1].(vfs.FileMode)
		return nil, tree.Mkdir(resolve(p, path), mode)
	})
	d.Register(syscall.Remove, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		return nil, tree.Remove(resolve(p, path))
	})
	d.Register(syscall.Rename, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		oldPath, _ := args[0].(string)
		newPath, _ := args[1].(string)
		return nil, tree.Rename(resolve(p, oldPath), resolve(p, newPath))
	})
	d.Register(syscall.Chmod, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		mode, _ := args[1].(vfs.FileMode)
		return nil, tree.Chmod(resolve(p, path), mode)
	})
	d.Register(syscall.Chown, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		uid, _ := args[1].(int)
		gid, _ := args[2].(int)
		return nil, tree.Chown(resolve(p, path), uid, gid)
	})
	d.Register(syscall.Stat, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		return tree.Stat(resolve(p, path))
	})
	d.Register(syscall.StatFS, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		path, _ := args[0].(string)
		return tree.StatFS(resolve(p, path))
	})
}

func registerSyncSyscalls(d *syscall.Dispatcher, tree *vfs.Tree) {
	d.Register(syscall.Sync, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		tree.Sync()
		return nil, nil
	})
}

// registerSemMutexQueueSyscalls wires the open/use-by-handle family of
// ktask primitives. Each Open call returns the created primitive itself as
// an opaque handle, the same pattern Malloc/ShmAttach already use, rather
// than inventing a second resource-ID scheme for non-file resources.
func registerSemMutexQueueSyscalls(d *syscall.Dispatcher) {
	d.Register(syscall.SemaphoreOpen, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		max, _ := args[0].(int)
		initial, _ := args[1].(int)
		return ktask.NewSemaphore(max, initial)
	})
	d.Register(syscall.SemaphoreWait, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		sem, _ := args[0].(*ktask.Semaphore)
		return nil, sem.Wait(ctx)
	})
	d.Register(syscall.SemaphoreSignal, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		sem, _ := args[0].(*ktask.Semaphore)
		sem.Signal()
		return nil, nil
	})
	d.Register(syscall.SemaphoreGetValue, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		sem, _ := args[0].(*ktask.Semaphore)
		return sem.Value(), nil
	})

	d.Register(syscall.MutexOpen, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		typ, _ := args[0].(ktask.MutexType)
		return ktask.NewMutex(typ), nil
	})
	d.Register(syscall.MutexLock, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		mtx, _ := args[0].(*ktask.Mutex)
		return nil, mtx.Lock(ctx, uint64(p.PID()))
	})
	d.Register(syscall.MutexUnlock, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		mtx, _ := args[0].(*ktask.Mutex)
		mtx.Unlock(uint64(p.PID()))
		return nil, nil
	})

	d.Register(syscall.QueueOpen, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		length, _ := args[0].(int)
		itemSize, _ := args[1].(int)
		return ktask.NewQueue(length, itemSize), nil
	})
	d.Register(syscall.QueueReset, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		q, _ := args[0].(*ktask.Queue)
		q.Reset()
		return nil, nil
	})
	d.Register(syscall.QueueSend, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		q, _ := args[0].(*ktask.Queue)
		return nil, q.Send(ctx, args[1])
	})
	d.Register(syscall.QueueReceive, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		q, _ := args[0].(*ktask.Queue)
		return q.Receive(ctx)
	})
	d.Register(syscall.QueueReceivePeek, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		q, _ := args[0].(*ktask.Queue)
		return q.ReceivePeek(ctx)
	})
	d.Register(syscall.QueueItemsCount, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		q, _ := args[0].(*ktask.Queue)
		return q.Len(), nil
	})
	d.Register(syscall.QueueFreeSpace, func(ctx context.Context, p *process.Process, args []interface{}) (interface{}, error) {
		q, _ := args[0].(*ktask.Queue)
		return q.SpaceAvailable(), nil
	})
}
