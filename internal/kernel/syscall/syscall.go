// Package syscall implements the system-call dispatch boundary: user-space
// code (in this hosted build, any goroutine that isn't the kworker itself)
// submits a Request, the single kworker goroutine processes requests off
// one queue in submission order, and panics inside a handler are recovered
// into an ordinary KindPanic error rather than crashing the kernel.
//
// Grounded on original_source/src/system/kernel/syscall.c: the SYSCALL_*
// enum becomes Number; syscall.c's single SYSCALL_QUEUE_LENGTH-deep request
// queue processed by one privileged task becomes Dispatcher's request
// channel and kworker goroutine; is_proc_valid's registry-membership check
// becomes ValidateProcess below.
package syscall

import (
	"context"
	"fmt"
	"sync"

	"github.com/dnx-rtos/kernel/internal/kernel/diag"
	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/kfmt"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
)

// Number is one syscall, mirroring the original's enum (trimmed to the
// operations this kernel implements end to end; names keep the original's
// one-word-per-concept style).
type Number int

const (
	Malloc Number = iota
	Zalloc
	Free
	ShmCreate
	ShmAttach
	ShmDetach
	ShmDestroy
	ProcessWait
	ProcessStat
	ProcessGetPID
	ProcessGetPriority
	GetCwd
	SetCwd
	ThreadCreate
	ThreadKill
	SemaphoreOpen
	SemaphoreWait
	SemaphoreSignal
	SemaphoreGetValue
	MutexOpen
	MutexLock
	MutexUnlock
	Close
	QueueOpen
	QueueReset
	QueueSend
	QueueReceive
	QueueReceivePeek
	QueueItemsCount
	QueueFreeSpace
	ProcessCreate
	ProcessKill
	ProcessExit
	Mount
	Umount
	Mknod
	GetMntEntry
	Mkfifo
	Mkdir
	OpenDir
	CloseDir
	ReadDir
	Remove
	Rename
	Chmod
	Chown
	StatFS
	Stat
	FStat
	Open
	Write
	Read
	Seek
	Ioctl
	Flush
	Sync
)

func (n Number) String() string {
	names := [...]string{
		"malloc", "zalloc", "free", "shm-create", "shm-attach", "shm-detach",
		"shm-destroy", "process-wait", "process-stat", "process-getpid",
		"process-getpriority", "getcwd", "setcwd", "thread-create",
		"thread-kill", "semaphore-open", "semaphore-wait", "semaphore-signal",
		"semaphore-getvalue", "mutex-open", "mutex-lock", "mutex-unlock",
		"close", "queue-open", "queue-reset", "queue-send", "queue-receive",
		"queue-receive-peek", "queue-items-count", "queue-free-space",
		"process-create", "process-kill", "process-exit", "mount", "umount",
		"mknod", "get-mnt-entry", "mkfifo", "mkdir", "opendir", "closedir",
		"readdir", "remove", "rename", "chmod", "chown", "statfs", "stat",
		"fstat", "open", "write", "read", "seek", "ioctl", "flush", "sync",
	}
	if int(n) < len(names) {
		return names[n]
	}
	return fmt.Sprintf("syscall(%d)", int(n))
}

// Handler services one syscall Number, given the calling process and
// arbitrary arguments; its return value is handed back to the caller
// verbatim through Request.Result.
type Handler func(ctx context.Context, proc *process.Process, args []interface{}) (interface{}, error)

// Request is one queued syscall -- syscall.c's syscall_rq_t.
type Request struct {
	Number Number
	Proc   *process.Process
	Args   []interface{}
	result chan response
}

type response struct {
	value interface{}
	err   error
}

// queueDepth mirrors the original's SYSCALL_QUEUE_LENGTH (4): a small,
// fixed-depth request queue is enough since the kworker drains it
// continuously and callers block on their own result channel, not on
// queue depth.
const queueDepth = 4

// Dispatcher is the kworker: a single goroutine draining one request queue
// against a table of registered Handlers, so handler state (mm.Manager,
// vfs.Tree, driver.Registry, ...) never needs its own locking -- exactly
// one syscall executes at a time, mirroring the original's single
// privileged kworker task.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Number]Handler
	queue    chan *Request
	diag     *diag.Store
}

func NewDispatcher(store *diag.Store) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Number]Handler),
		queue:    make(chan *Request, queueDepth),
		diag:     store,
	}
}

// Register installs h as the handler for n. Registering over an existing
// entry replaces it; used by package register to wire every module's
// syscalls in independent of load order.
func (d *Dispatcher) Register(n Number, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[n] = h
}

// Run drains the queue until ctx is done -- the kworker's main loop. It
// must run in exactly one goroutine; starting a second Run concurrently
// would violate the single-kworker invariant every handler relies on.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rq := <-d.queue:
			d.serve(ctx, rq)
		}
	}
}

func (d *Dispatcher) serve(ctx context.Context, rq *Request) {
	d.mu.RLock()
	h, ok := d.handlers[rq.Number]
	d.mu.RUnlock()

	if !ok {
		rq.result <- response{err: kerrors.New("syscall.serve", kerrors.KindNotSupported)}
		return
	}

	var resp response
	func() {
		defer func() {
			if r := recover(); r != nil {
				kfmt.Printk("kworker: recovered panic servicing %s: %v", rq.Number, r)
				if d.diag != nil {
					_ = d.diag.ReportPanic(diag.PanicDescriptor{
						Cause:   diag.CauseInternal1,
						Message: fmt.Sprintf("%s: %v", rq.Number, r),
					})
				}
				resp = response{err: kerrors.New(fmt.Sprintf("syscall.serve(%s)", rq.Number), kerrors.KindPanic)}
			}
		}()
		v, err := h(ctx, rq.Proc, rq.Args)
		resp = response{value: v, err: err}
	}()
	rq.result <- resp
}

// Submit enqueues a syscall and blocks for its result -- the user-space
// side of the trap, _syscall()'s blocking-on-the-kworker behavior.
func (d *Dispatcher) Submit(ctx context.Context, n Number, proc *process.Process, args ...interface{}) (interface{}, error) {
	rq := &Request{Number: n, Proc: proc, Args: args, result: make(chan response, 1)}
	select {
	case d.queue <- rq:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-rq.result:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ValidateProcess reports whether proc is a live, registered process --
// the Go-idiomatic replacement for is_proc_valid's
// "_mm_is_object_in_heap(proc) && proc->type == RES_TYPE_PROCESS" check:
// here the process Table's membership itself is the validity check, since
// an unregistered *process.Process value can't have been obtained any way
// other than forging a pointer, which Go's type system already prevents.
func ValidateProcess(table *process.Table, pid process.PID) (*process.Process, bool) {
	return table.Get(pid)
}
