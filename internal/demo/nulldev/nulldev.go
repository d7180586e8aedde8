// Package nulldev is a minimal character device driver: reads return EOF,
// writes are discarded and counted, exercising driver.Registry's
// exclusive-open locking end to end without needing any real hardware.
//
// Grounded on original_source/src/system/include/core/modctrl.h's
// _driver_entry vtable, with behavior modeled on a standard /dev/null
// (the same role rclone's "memory" backend plays for fs.Fs -- a trivial,
// dependency-free implementation that still exercises the full
// interface).
package nulldev

import (
	"io"
	"sync"

	"github.com/dnx-rtos/kernel/internal/kernel/driver"
	"github.com/dnx-rtos/kernel/internal/kernel/register"
	"github.com/dnx-rtos/kernel/internal/kernel/vfs"
)

func init() {
	register.RegisterDriver("nulldev", func() driver.Driver {
		return New()
	})
}

// Driver is the null device: Name/ModuleName/Open/Release side of the
// vtable.
type Driver struct {
	mu        sync.Mutex
	written   uint64
	openCount uint64
}

func New() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string       { return "nulldev" }
func (d *Driver) ModuleName() string { return "NULL" }

// Open implements driver.Driver. major/minor/flags are accepted for vtable
// parity but unused -- a null device has exactly one instance regardless
// of minor number.
func (d *Driver) Open(major, minor uint8, flags int) (driver.Instance, error) {
	d.mu.Lock()
	d.openCount++
	d.mu.Unlock()
	return &instance{drv: d}, nil
}

func (d *Driver) Release() error { return nil }

// WrittenBytes reports how many bytes have been discarded via Write across
// every instance -- useful for demo/tests to observe that writes actually
// reached the driver.
func (d *Driver) WrittenBytes() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

type instance struct {
	drv *Driver
}

// Write discards src and counts its length -- _driver_write for /dev/null.
func (i *instance) Write(src []byte, at int64, attr vfs.Attr) (int, error) {
	i.drv.mu.Lock()
	i.drv.written += uint64(len(src))
	i.drv.mu.Unlock()
	return len(src), nil
}

// Read always reports EOF -- _driver_read for /dev/null.
func (i *instance) Read(dst []byte, at int64, attr vfs.Attr) (int, error) {
	return 0, io.EOF
}

func (i *instance) Ioctl(request int, arg interface{}) error { return nil }

func (i *instance) Stat() (vfs.Stat, error) {
	return vfs.Stat{Mode: 0o666}, nil
}

func (i *instance) Flush() error { return nil }

func (i *instance) Close(force bool) error { return nil }
