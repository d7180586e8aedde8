// Package register holds the kernel's compile-time program/filesystem/
// module tables: the Go analogue of the original's build-time-generated
// program_table[]/fs_table[]/driver_table[] arrays.
//
// Grounded directly on rclone's backend self-registration pattern
// (backend/local/local.go, backend/cache/cache.go: each backend calls
// fs.Register(&fs.RegInfo{...}) from its own init()). This package is that
// same pattern generalized to three kinds of registrable thing instead of
// one: programs (internal/demo/programs), file systems
// (internal/demo/ramfs), and drivers (internal/demo/nulldev) each
// self-register here from their own init() rather than being wired by hand
// into a boot sequence.
package register

import (
	"context"
	"sort"
	"sync"

	"github.com/dnx-rtos/kernel/internal/kernel/driver"
	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

// ProgramEntry pairs a program name with its entry point -- the original's
// _prog_table_t{name, main, stack_depth}.
type ProgramEntry struct {
	Name       string
	Main       func(args []string) int
	StackDepth uint32
}

// ProgramTable is the registry of runnable programs, keyed by name --
// what _process_create's command-name lookup walks.
type ProgramTable struct {
	mu      sync.RWMutex
	entries map[string]ProgramEntry
}

var programs = &ProgramTable{entries: make(map[string]ProgramEntry)}

// RegisterProgram adds an entry to the global program table. Call from a
// program package's init().
func RegisterProgram(e ProgramEntry) {
	programs.mu.Lock()
	defer programs.mu.Unlock()
	programs.entries[e.Name] = e
}

func LookupProgram(name string) (ProgramEntry, bool) {
	programs.mu.RLock()
	defer programs.mu.RUnlock()
	e, ok := programs.entries[name]
	return e, ok
}

// Spawn looks up name in the program table and runs it as a new process in
// table, the Go-idiomatic replacement for _process_create's
// table-lookup-then-task-create sequence: the program's Main runs on the
// new process's main thread with the arguments after argv[0], and its
// returned status becomes the process's exit code via Process.Exit.
func Spawn(table *process.Table, ppid process.PID, argv []string, cwd string) (*process.Process, error) {
	entry, ok := LookupProgram(argvName(argv))
	if !ok {
		return nil, kerrors.New("register.Spawn", kerrors.KindNoSuchEntry)
	}
	var args []string
	if len(argv) > 0 {
		args = argv[1:]
	}
	return table.Spawn(ppid, argv, cwd, func(ctx context.Context, p *process.Process) {
		p.Exit(entry.Main(args))
	}), nil
}

func argvName(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

func ProgramNames() []string {
	programs.mu.RLock()
	defer programs.mu.RUnlock()
	names := make([]string, 0, len(programs.entries))
	for n := range programs.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FSFactory builds a vfs.FileSystem from a mount's options string --
// vfs_FS_itf_t's fs_init(fshdl, path, opts) translated into a constructor
// function instead of an init/release pair of vtable slots.
type FSFactory func(opts vfs.FileMode, optionString string) (vfs.FileSystem, error)

var (
	fsMu    sync.RWMutex
	fsTable = make(map[string]FSFactory)
)

// RegisterFS adds a file system driver under name. Call from a file
// system package's init(), mirroring fs.Register in rclone's backends.
func RegisterFS(name string, factory FSFactory) {
	fsMu.Lock()
	defer fsMu.Unlock()
	fsTable[name] = factory
}

func LookupFS(name string) (FSFactory, bool) {
	fsMu.RLock()
	defer fsMu.RUnlock()
	f, ok := fsTable[name]
	return f, ok
}

func FSNames() []string {
	fsMu.RLock()
	defer fsMu.RUnlock()
	names := make([]string, 0, len(fsTable))
	for n := range fsTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DriverFactory builds a driver.Driver. Drivers self-register the same
// way file systems do.
type DriverFactory func() driver.Driver

var (
	drvMu    sync.RWMutex
	drvTable = make(map[string]DriverFactory)
)

func RegisterDriver(name string, factory DriverFactory) {
	drvMu.Lock()
	defer drvMu.Unlock()
	drvTable[name] = factory
}

func LookupDriver(name string) (DriverFactory, bool) {
	drvMu.RLock()
	defer drvMu.RUnlock()
	f, ok := drvTable[name]
	return f, ok
}

func DriverNames() []string {
	drvMu.RLock()
	defer drvMu.RUnlock()
	names := make([]string, 0, len(drvTable))
	for n := range drvTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
