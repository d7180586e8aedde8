// Package shm implements named shared-memory regions: create-or-attach by
// name, per-PID attach reference counting, and destroy-when-last-detaches
// semantics.
//
// Grounded on original_source/src/system/mm/shm.c: the region list
// (shm_region_t{name,size,attached_pids,blk}) and its attach_pid/
// detach_pid/is_pid_attached/is_pid_list_empty helpers -- this package
// keeps the same name/size/attached-set shape but replaces the fixed
// 12-byte name array and inline pid_list_t linked list with a Go map and
// slice.
package shm

import (
	"sync"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
	"github.com/dnx-rtos/kernel/internal/kernel/process"
)

// region is one named shared-memory block plus the set of PIDs currently
// attached to it.
type region struct {
	mu             sync.Mutex
	name           string
	buf            []byte
	attached       map[process.PID]int // attach count per pid, a process may attach more than once
	destroyPending bool                // shm_destroy was called while pids were still attached
}

func (r *region) isAttachedLocked() bool {
	for _, n := range r.attached {
		if n > 0 {
			return true
		}
	}
	return false
}

// Manager owns every named region -- the original's global SHM.list.
type Manager struct {
	mu      sync.Mutex
	regions map[string]*region
}

func NewManager() *Manager {
	return &Manager{regions: make(map[string]*region)}
}

// Create allocates a new named region of size bytes. Creating a name that
// already exists fails with KindAlreadyExists, matching shm_create's
// reject-on-duplicate-name behavior.
func (m *Manager) Create(name string, size int) error {
	if size <= 0 {
		return kerrors.New("shm.Create", kerrors.KindInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.regions[name]; exists {
		return kerrors.New("shm.Create", kerrors.KindAlreadyExists)
	}
	m.regions[name] = &region{
		name:     name,
		buf:      make([]byte, size),
		attached: make(map[process.PID]int),
	}
	return nil
}

// Attach maps name into pid's view, creating it first if autoCreate is set
// and it doesn't exist yet (the original's shm_get_region, which lazily
// creates on first attach when called with a nonzero size). Returns the
// backing byte slice shared by every attached pid, so writes by one
// process are visible to all others attached to the same region.
func (m *Manager) Attach(name string, pid process.PID, size int, autoCreate bool) ([]byte, error) {
	m.mu.Lock()
	r, ok := m.regions[name]
	if !ok {
		if !autoCreate {
			m.mu.Unlock()
			return nil, kerrors.New("shm.Attach", kerrors.KindNoSuchEntry)
		}
		if size <= 0 {
			m.mu.Unlock()
			return nil, kerrors.New("shm.Attach", kerrors.KindInvalidArgument)
		}
		r = &region{name: name, buf: make([]byte, size), attached: make(map[process.PID]int)}
		m.regions[name] = r
	}
	m.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached[pid]++
	return r.buf, nil
}

// Detach unmaps name from pid's view. The region is freed only once the
// attached set drops to empty *and* a Destroy is pending against it --
// shm_detach_region's rule from shm.c, where freeing a region a process
// merely stops using (but nobody ever asked to destroy) would silently
// drop data still addressable by name.
func (m *Manager) Detach(name string, pid process.PID) error {
	m.mu.Lock()
	r, ok := m.regions[name]
	m.mu.Unlock()
	if !ok {
		return kerrors.New("shm.Detach", kerrors.KindNoSuchEntry)
	}

	r.mu.Lock()
	if r.attached[pid] > 0 {
		r.attached[pid]--
		if r.attached[pid] == 0 {
			delete(r.attached, pid)
		}
	}
	free := r.destroyPending && !r.isAttachedLocked()
	r.mu.Unlock()

	if free {
		m.mu.Lock()
		if cur, ok := m.regions[name]; ok && cur == r {
			delete(m.regions, name)
		}
		m.mu.Unlock()
	}
	return nil
}

// DetachAll detaches every region pid is attached to -- called from the
// process exit path so a crashed process's attachments don't wedge a
// region's refcount forever.
func (m *Manager) DetachAll(pid process.PID) {
	m.mu.Lock()
	names := make([]string, 0, len(m.regions))
	for name := range m.regions {
		names = append(names, name)
	}
	m.mu.Unlock()
	for _, name := range names {
		_ = m.Detach(name, pid)
	}
}

// Destroy marks name for removal -- shm_free. If no pid is still
// attached, the region is freed immediately; otherwise the free is
// deferred until the last attached pid calls Detach, so a process that
// already holds the mapping keeps seeing valid memory until it lets go.
func (m *Manager) Destroy(name string) error {
	m.mu.Lock()
	r, ok := m.regions[name]
	if !ok {
		m.mu.Unlock()
		return kerrors.New("shm.Destroy", kerrors.KindNoSuchEntry)
	}
	m.mu.Unlock()

	r.mu.Lock()
	r.destroyPending = true
	free := !r.isAttachedLocked()
	r.mu.Unlock()

	if free {
		m.mu.Lock()
		if cur, ok := m.regions[name]; ok && cur == r {
			delete(m.regions, name)
		}
		m.mu.Unlock()
	}
	return nil
}

// Size reports a region's size, or an error if it doesn't exist.
func (m *Manager) Size(name string) (int, error) {
	m.mu.Lock()
	r, ok := m.regions[name]
	m.mu.Unlock()
	if !ok {
		return 0, kerrors.New("shm.Size", kerrors.KindNoSuchEntry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf), nil
}

// AttachedPIDs lists every pid currently attached to name.
func (m *Manager) AttachedPIDs(name string) ([]process.PID, error) {
	m.mu.Lock()
	r, ok := m.regions[name]
	m.mu.Unlock()
	if !ok {
		return nil, kerrors.New("shm.AttachedPIDs", kerrors.KindNoSuchEntry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]process.PID, 0, len(r.attached))
	for pid, n := range r.attached {
		if n > 0 {
			out = append(out, pid)
		}
	}
	return out, nil
}
