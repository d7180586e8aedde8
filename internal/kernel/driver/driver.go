// Package driver implements the module/driver registry: named drivers
// identified by (module, major, minor), each opened exclusively by at most
// one process at a time.
//
// Grounded on original_source/src/system/include/core/modctrl.h
// (struct _driver_entry: drv_init/drv_release/drv_open/drv_close/
// drv_write/drv_read/drv_ioctl/drv_stat/drv_flush) and core/module.h's
// MODULE_NAME/API_MOD_* registration macros, which this package replaces
// with an init()-time self-registration table -- the same pattern rclone's
// backend/local/local.go uses for fs.Register.
package driver

import (
	"sync"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

// Instance is the open-driver-handle vtable -- the per-open-call half of
// struct _driver_entry (drv_write/drv_read/drv_ioctl/drv_stat/drv_flush/
// drv_close), returned by Driver.Open.
type Instance interface {
	Write(src []byte, at int64, attr vfs.Attr) (int, error)
	Read(dst []byte, at int64, attr vfs.Attr) (int, error)
	Ioctl(request int, arg interface{}) error
	Stat() (vfs.Stat, error)
	Flush() error
	Close(force bool) error
}

// Driver is the init/release half of struct _driver_entry plus identity
// fields (drv_name/mod_name/major/minor). Concrete drivers implement this
// and call Register in an init() func.
type Driver interface {
	Name() string
	ModuleName() string
	Open(major, minor uint8, flags int) (Instance, error)
	Release() error
}

// ID addresses a driver the way dev_t addresses a device node: a
// major/minor pair. The module name is not part of it.
type ID struct {
	Major uint8
	Minor uint8
}

// registration pairs a Driver with the lock tracking which PID currently
// holds it open -- the "driver/module registry with device locking"
// requirement: at most one process may have a given device open, matching
// dnx RTOS's single-open-per-device contract for character devices.
type registration struct {
	mu      sync.Mutex
	drv     Driver
	lockPID process.PID // 0 == unlocked
	inst    Instance
}

// Registry is the kernel's module/driver table, indexed by name.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*registration
	count int
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*registration)}
}

// Register adds drv under name, mirroring _driver_init's role of binding a
// driver entry into the kernel's module table. Re-registering an existing
// name replaces the prior entry, matching a hot-reloaded module.
func (r *Registry) Register(name string, drv Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[name]; !exists {
		r.count++
	}
	r.byID[name] = &registration{drv: drv}
}

// Names lists every registered driver name -- _get_driver_name/
// _get_number_of_drivers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byID))
	for name := range r.byID {
		out = append(out, name)
	}
	return out
}

// IsActive reports whether name is currently locked open by a process --
// _is_driver_active.
func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	reg, ok := r.byID[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.lockPID != 0
}

// Open locks name exclusively for pid and opens it -- _driver_open(dev,
// flags). A device already locked by a different pid fails with KindBusy,
// the Go-idiomatic replacement for the original's single-open-per-device
// enforcement.
func (r *Registry) Open(name string, major, minor uint8, flags int, pid process.PID) (Instance, error) {
	r.mu.RLock()
	reg, ok := r.byID[name]
	r.mu.RUnlock()
	if !ok {
		return nil, kerrors.New("driver.Open", kerrors.KindNoSuchEntry)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.lockPID != 0 && reg.lockPID != pid {
		return nil, kerrors.New("driver.Open", kerrors.KindBusy)
	}
	inst, err := reg.drv.Open(major, minor, flags)
	if err != nil {
		return nil, kerrors.Wrap("driver.Open", kerrors.KindIOError, err)
	}
	reg.lockPID = pid
	reg.inst = inst
	return inst, nil
}

// Close releases name's lock, whoever holds it, and closes the instance --
// _driver_close(dev, force).
func (r *Registry) Close(name string, force bool) error {
	r.mu.RLock()
	reg, ok := r.byID[name]
	r.mu.RUnlock()
	if !ok {
		return kerrors.New("driver.Close", kerrors.KindNoSuchEntry)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.inst == nil {
		return nil
	}
	err := reg.inst.Close(force)
	reg.inst = nil
	reg.lockPID = 0
	return err
}

// ReleaseProcess force-closes every device pid currently holds open --
// called from the process exit path so a crashed process never leaves a
// device permanently locked.
func (r *Registry) ReleaseProcess(pid process.PID) {
	r.mu.RLock()
	regs := make([]*registration, 0, len(r.byID))
	for _, reg := range r.byID {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	for _, reg := range regs {
		reg.mu.Lock()
		if reg.lockPID == pid && reg.inst != nil {
			_ = reg.inst.Close(true)
			reg.inst = nil
			reg.lockPID = 0
		}
		reg.mu.Unlock()
	}
}

// LockOwner reports which PID, if any, currently holds name open.
func (r *Registry) LockOwner(name string) (process.PID, bool) {
	r.mu.RLock()
	reg, ok := r.byID[name]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.lockPID, reg.lockPID != 0
}
