// Package kernel assembles every subsystem package into one running
// System: the memory manager, task primitives, process table, mount tree,
// driver registry, block cache, shared-memory manager, syscall dispatcher,
// and panic/log persistence.
//
// Grounded on original_source/src/system/init/main.c's include order,
// which is the only surviving trace of the original boot sequence once
// function bodies are stripped: mm/heap, mm/cache, mm/mm, mm/shm, fs/vfs,
// kernel/syscall, kernel/kpanic, kernel/kwrapper. Boot below does not
// follow that order: it opens panic/log persistence first, then the
// memory manager, block cache, mount tree with its root ramfs, drivers,
// shared memory, process table, and finally the syscall dispatcher.
package kernel

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dnx-rtos/kernel/internal/kernel/diag"
	"github.com/dnx-rtos/kernel/internal/kernel/driver"
	"github.com/dnx-rtos/kernel/internal/kernel/fscache"
	"github.com/dnx-rtos/kernel/internal/kernel/kfmt"
	"github.com/dnx-rtos/kernel/internal/kernel/mm"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/register"
	"github.com/dnx-rtos/kernel/internal/kernel/shm"
	"github.com/dnx-rtos/kernel/internal/kernel/syscall"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

// Config selects the tunables Boot needs: how much heap to expose, how
// many cache blocks to hold, and where panic/log state persists between
// runs.
type Config struct {
	HeapSize     int
	CacheBlocks  int
	CacheMode    fscache.Mode
	DiagDBPath   string
	LogRingDepth int
}

// DefaultConfig returns sane defaults for a demo boot.
func DefaultConfig() Config {
	return Config{
		HeapSize:     4 << 20,
		CacheBlocks:  256,
		CacheMode:    fscache.WriteBack,
		DiagDBPath:   "dnxsim-diag.db",
		LogRingDepth: 512,
	}
}

// System is every kernel subsystem wired together and ready to serve
// syscalls -- the Go equivalent of the single image main.c assembles from
// its included subsystems.
type System struct {
	BootID    uuid.UUID
	MM        *mm.Manager
	Processes *process.Table
	VFS       *vfs.Tree
	Drivers   *driver.Registry
	Cache     *fscache.Cache
	SHM       *shm.Manager
	Diag      *diag.Store
	Log       *diag.Ring
	Syscalls  *syscall.Dispatcher

	cancel context.CancelFunc
}

// Boot brings up a System per cfg: memory, cache, VFS mounted with a root
// ramfs, the nulldev driver, shared memory, panic/log persistence, and the
// syscall dispatcher with every package's handlers registered, then starts
// the single kworker goroutine. Callers must call Shutdown when done.
func Boot(ctx context.Context, cfg Config) (*System, error) {
	bootID := uuid.New()
	kfmt.Printk("booting dnx kernel simulator, boot id %s", bootID)

	store, err := diag.Open(cfg.DiagDBPath)
	if err != nil {
		return nil, fmt.Errorf("kernel.Boot: open diag store: %w", err)
	}
	if desc, found, derr := store.DetectPanic(); derr == nil && found {
		kfmt.Printk("previous run panicked: cause=%s message=%q", desc.Cause, desc.Message)
	}

	ring, err := diag.NewRing(store, cfg.LogRingDepth)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("kernel.Boot: open log ring: %w", err)
	}
	kfmt.AddSink(ring)

	memory := mm.NewManager()
	memory.RegisterRegion("heap", cfg.HeapSize)

	cache, err := fscache.New(cfg.CacheBlocks, cfg.CacheMode)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("kernel.Boot: create block cache: %w", err)
	}

	tree := vfs.NewTree()
	rootFactory, ok := register.LookupFS("ramfs")
	if !ok {
		store.Close()
		return nil, fmt.Errorf("kernel.Boot: root file system %q not registered", "ramfs")
	}
	rootFS, err := rootFactory(0, "")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("kernel.Boot: initialize root file system: %w", err)
	}
	if err := tree.Mount("/", rootFS, "ram"); err != nil {
		store.Close()
		return nil, fmt.Errorf("kernel.Boot: mount root file system: %w", err)
	}

	drivers := driver.NewRegistry()
	for _, name := range register.DriverNames() {
		factory, _ := register.LookupDriver(name)
		drivers.Register(name, factory())
	}

	shmMgr := shm.NewManager()
	procs := process.NewTable()

	dispatcher := syscall.NewDispatcher(store)
	register.Syscalls(dispatcher, memory, tree, drivers, shmMgr, procs)

	runCtx, cancel := context.WithCancel(ctx)
	go dispatcher.Run(runCtx)

	return &System{
		BootID:    bootID,
		MM:        memory,
		Processes: procs,
		VFS:       tree,
		Drivers:   drivers,
		Cache:     cache,
		SHM:       shmMgr,
		Diag:      store,
		Log:       ring,
		Syscalls:  dispatcher,
		cancel:    cancel,
	}, nil
}

// Shutdown stops the kworker goroutine and closes persistent state. It
// cancels the context handlers run under; a Submit whose request has not
// been served keeps waiting until its own caller's context is done.
func (s *System) Shutdown() error {
	s.cancel()
	return s.Diag.Close()
}

// Spawn runs a registered program as a new process, the same path a shell
// built on top of this kernel would use to launch a command line.
func (s *System) Spawn(ppid process.PID, argv []string, cwd string) (*process.Process, error) {
	return register.Spawn(s.Processes, ppid, argv, cwd)
}
