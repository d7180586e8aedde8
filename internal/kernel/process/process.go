// Package process implements the process/thread model: creation, exit,
// parent/child relationships, standard stream handles, owned-resource
// tracking, and CPU-usage statistics sampling.
//
// Grounded on original_source/src/system/kernel/process.c: process_t's
// field layout (type, task, f_stdin/f_stdout/f_stderr, res_list, cwd,
// globals, argv/argc, ret, pid/ppid, errnov, timecnt, flag bits) drives
// this package's Process struct one-for-one, translated from C struct
// fields into Go fields of the equivalent purpose.
package process

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	patrickcache "github.com/patrickmn/go-cache"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/ktask"
	"github.com/dnx-rtos/kernel/internal/kernel/restype"
)

// PID identifies a process; PPID(0) is reserved for "no parent" (the
// kworker / kernel process itself), mirroring the original's pid_t space.
type PID uint32

// TID identifies a thread within a process.
type TID uint32

// Stream is one of a process's three standard file handles --
// f_stdin/f_stdout/f_stderr in process_t.
type Stream int

const (
	Stdin Stream = iota
	Stdout
	Stderr
	streamCount
)

// StreamFile is satisfied by whatever file handle type package vfs hands
// out; process only needs to hold and close it, never interpret it.
type StreamFile interface {
	Close() error
}

// Thread is one schedulable unit of execution inside a process, wrapping a
// ktask.Task with its thread ID -- process.c's thread_t. It holds no argv
// of its own.
type Thread struct {
	TID  TID
	task *ktask.Task
}

func (t *Thread) Wait(ctx context.Context) error { return t.task.Wait(ctx) }
func (t *Thread) Destroy()                       { t.task.Destroy() }

// Process is the unit process.c calls process_t: a PID, parent PID,
// resource list, owned streams, working directory, global-variables
// region, argv/argc, and a main thread plus any additional spawned
// threads.
type Process struct {
	mu sync.RWMutex

	pid    PID
	ppid   PID
	name   string
	argv   []string
	cwd    string
	globals interface{} // process-local globals blob, opaque to this package

	streams [streamCount]StreamFile
	res     *restype.List

	threads   map[TID]*Thread
	nextTID   uint32
	mainTask  *ktask.Task

	exitCode   int
	exited     bool
	exitCh     chan struct{}
	startedAt  time.Time
	timeCnt    uint64 // accumulated CPU ticks, process.c's timecnt
	detached   bool   // flag bit: process has no controlling parent wait
}

// Table owns every live process, keyed by PID -- the original's global
// process list walked by ps/kill/waitpid.
type Table struct {
	mu       sync.RWMutex
	byPID    map[PID]*Process
	nextPID  uint32
	mm       MemoryAccounting
}

// MemoryAccounting is the subset of mm.Manager's interface process needs,
// kept as an interface so tests can substitute a fake without importing
// the whole memory manager.
type MemoryAccounting interface {
	ModuleUsage(moduleID int) int64
}

func NewTable() *Table {
	return &Table{byPID: make(map[PID]*Process)}
}

// Spawn creates a new process running fn as its main thread. argv[0]
// conventionally names the program, matching _process_create's
// (cmd, ...) signature where cmd is later tokenized into argv.
func (t *Table) Spawn(ppid PID, argv []string, cwd string, fn func(ctx context.Context, p *Process)) *Process {
	t.mu.Lock()
	t.nextPID++
	pid := PID(t.nextPID)
	t.mu.Unlock()

	p := &Process{
		pid:       pid,
		ppid:      ppid,
		name:      argvName(argv),
		argv:      argv,
		cwd:       cwd,
		res:       restype.NewList(),
		threads:   make(map[TID]*Thread),
		exitCh:    make(chan struct{}),
		startedAt: time.Now(),
	}

	task := ktask.Create(p.name, ktask.PriorityNormal, 4096, func(ctx context.Context) {
		fn(ctx, p)
		p.markExited(p.pendingExitCode())
	})
	p.mainTask = task

	t.mu.Lock()
	t.byPID[pid] = p
	t.mu.Unlock()
	return p
}

func argvName(argv []string) string {
	if len(argv) == 0 {
		return "?"
	}
	return argv[0]
}

// TokenizeArgv splits a shell-style command line into argv, honoring
// double-quoted segments as single arguments -- the original's
// _process_create splits its cmd string the same way before exec.
func TokenizeArgv(cmd string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range cmd {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// Exit records code as the process's exit status -- _process_exit(ret)
// called from within the running program itself, before its main thread
// returns. If the main thread returns without calling Exit, the process
// exits with status 0.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
}

func (p *Process) pendingExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

func (p *Process) markExited(code int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	close(p.exitCh)
}

// Kill requests the process terminate immediately -- process.c's
// _process_kill, implemented here as context cancellation of the main
// thread and every additional spawned thread.
func (p *Process) Kill() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	p.mainTask.Destroy()
	for _, th := range p.threads {
		th.Destroy()
	}
}

// Wait blocks until the process exits, returning its exit code --
// waitpid's single-process case.
func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.exitCh:
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.exitCode, nil
	case <-ctx.Done():
		return 0, kerrors.Wrap("process.Wait", kerrors.KindInterrupted, ctx.Err())
	}
}

func (p *Process) PID() PID   { return p.pid }
func (p *Process) PPID() PID  { return p.ppid }
func (p *Process) Name() string { return p.name }
func (p *Process) Argv() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.argv...)
}

func (p *Process) Cwd() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cwd
}

func (p *Process) SetCwd(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cwd = dir
}

// Resources returns the process's owned-resource list, so drivers/vfs/shm
// can register handles against it and the kworker can free them all on
// exit.
func (p *Process) Resources() *restype.List { return p.res }

// Priority/SetPriority expose the main thread's scheduling priority --
// process.c stores priority on the task, not the process, so these just
// forward to the main ktask.Task.
func (p *Process) Priority() ktask.Priority { return p.mainTask.PriorityGet() }
func (p *Process) SetPriority(pr ktask.Priority) { p.mainTask.PrioritySet(pr) }

// SpawnThread starts fn as an additional thread inside p -- process.c's
// thread_t, a function run on its own ktask.Task but sharing p's resource
// list, cwd, and streams. Returns the TID future KillThread calls address
// it by.
func (p *Process) SpawnThread(stackDepth uint32, fn func(ctx context.Context)) TID {
	p.mu.Lock()
	p.nextTID++
	tid := TID(p.nextTID)
	p.mu.Unlock()

	task := ktask.Create(p.name, ktask.PriorityNormal, stackDepth, fn)
	th := &Thread{TID: tid, task: task}

	p.mu.Lock()
	p.threads[tid] = th
	p.mu.Unlock()
	return th.TID
}

// KillThread destroys the thread identified by tid, reporting whether it
// was found.
func (p *Process) KillThread(tid TID) bool {
	p.mu.Lock()
	th, ok := p.threads[tid]
	if ok {
		delete(p.threads, tid)
	}
	p.mu.Unlock()
	if ok {
		th.Destroy()
	}
	return ok
}

// SetStream attaches fd as one of the process's standard streams.
func (p *Process) SetStream(s Stream, fd StreamFile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams[s] = fd
}

func (p *Process) Stream(s Stream) StreamFile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.streams[s]
}

// CloseStreams closes every attached standard stream -- part of process
// cleanup alongside freeing the resource list.
func (p *Process) CloseStreams() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.streams {
		if p.streams[i] != nil {
			_ = p.streams[i].Close()
			p.streams[i] = nil
		}
	}
}

// AccumulateCPU adds ticks of CPU time, sampled periodically by the
// scheduler-facing side of ktask -- process.c's timecnt field.
func (p *Process) AccumulateCPU(ticks uint64) {
	atomic.AddUint64(&p.timeCnt, ticks)
}

func (p *Process) CPUTicks() uint64 { return atomic.LoadUint64(&p.timeCnt) }

// Get looks up a process by PID.
func (t *Table) Get(pid PID) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byPID[pid]
	return p, ok
}

// Remove deletes pid from the table, typically after its exit code has
// been reaped by a waiting parent.
func (t *Table) Remove(pid PID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byPID, pid)
}

// Snapshot returns every live process, for `ps`-style reporting.
func (t *Table) Snapshot() []*Process {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Process, 0, len(t.byPID))
	for _, p := range t.byPID {
		out = append(out, p)
	}
	return out
}

// CPUSampler stores the most recent usage fraction a caller records for
// each PID, with an eviction TTL (5s, swept every 10s) so dead processes'
// samples age out automatically. It reads no task counters and computes
// no average itself -- supplemented
// functionality the distillation only mentions as "a CPU usage stat", with
// the sampling cache itself grounded on rclone's backend/cache/
// storage_memory.go use of github.com/patrickmn/go-cache for exactly this
// kind of short-lived, self-expiring in-memory sample store.
type CPUSampler struct {
	cache *patrickcache.Cache
}

func NewCPUSampler() *CPUSampler {
	return &CPUSampler{cache: patrickcache.New(5*time.Second, 10*time.Second)}
}

// Sample records a usage-fraction observation for pid.
func (s *CPUSampler) Sample(pid PID, fraction float64) {
	s.cache.Set(pidKey(pid), fraction, patrickcache.DefaultExpiration)
}

// UsageFraction returns the last sampled fraction for pid, or 0 if no
// sample is on record (or it has expired).
func (s *CPUSampler) UsageFraction(pid PID) float64 {
	v, ok := s.cache.Get(pidKey(pid))
	if !ok {
		return 0
	}
	return v.(float64)
}

func pidKey(pid PID) string {
	return "pid:" + itoa(uint32(pid))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
