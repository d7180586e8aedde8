// Package restype implements the kernel's resource-header discipline:
// every object visible to a process (file, dir, mutex, semaphore, queue,
// flag, socket, memory region, process) carries a typed tag and is threaded
// onto the owning process's resource list.
//
// The original C kernel validates an object by comparing a self-pointer
// against the object's own address. Go does not expose raw pointer identity
// to user code the way C does, so the self-pointer check is replaced by a
// registry lookup keyed by an opaque ID: forging a resource means guessing a
// live ID of the right Tag, which the registry rejects the same way the
// original rejects a self-pointer mismatch. See ktypes.h (original_source)
// for the source tag values, which are preserved verbatim below.
package restype

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Tag identifies the kind of a kernel-visible object. Values match the
// res_type_t constants from the original kernel's ktypes.h so that on-wire
// diagnostics (panic dumps, klog) stay recognizable against the original.
type Tag uint32

const (
	TagUnknown   Tag = 0
	TagProcess   Tag = 0x958701BA
	TagMutex     Tag = 0x300C6B74
	TagSemaphore Tag = 0x4E59901B
	TagQueue     Tag = 0x83D50ADB
	TagFile      Tag = 0x7D129250
	TagDir       Tag = 0x19586E97
	TagMemory    Tag = 0x9E834645
	TagSocket    Tag = 0x63ACC316
	TagFlag      Tag = 0x18FAEC0D
)

func (t Tag) String() string {
	switch t {
	case TagProcess:
		return "process"
	case TagMutex:
		return "mutex"
	case TagSemaphore:
		return "semaphore"
	case TagQueue:
		return "queue"
	case TagFile:
		return "file"
	case TagDir:
		return "dir"
	case TagMemory:
		return "memory"
	case TagSocket:
		return "socket"
	case TagFlag:
		return "flag"
	default:
		return fmt.Sprintf("unknown(%#x)", uint32(t))
	}
}

// ID is an opaque, forgery-resistant handle to a registered resource.
type ID uint64

// Resource is implemented by every kernel object that can be linked onto a
// process's resource list and released at process exit.
type Resource interface {
	// ResourceTag returns the object's kind; it never changes after creation.
	ResourceTag() Tag
	// Release tears the object down. Called at most once, by the owning
	// process's exit/close path or by Registry.Release.
	Release() error
}

// Header is embedded first in every concrete resource type, mirroring the
// original's "object header (must be the first in object)" rule. It is not
// load-bearing in Go (there is no layout dependency) but keeps every
// resource type self-documenting about which list it threads onto.
type Header struct {
	ID  ID
	Tag Tag
}

func (h Header) ResourceTag() Tag { return h.Tag }

// Registry is the process-global table of live resources, indexed by ID.
// It plays the role the self-pointer check played in the original: a
// resource reference is only valid if it resolves in the registry and its
// tag matches what the caller expects.
type Registry struct {
	mu   sync.RWMutex
	next uint64
	objs map[ID]Resource
}

func NewRegistry() *Registry {
	return &Registry{objs: make(map[ID]Resource)}
}

// Register allocates a fresh ID for res and stores it, returning the ID that
// callers must thread onto their owning process's resource list.
func (r *Registry) Register(res Resource) ID {
	id := ID(atomic.AddUint64(&r.next, 1))
	r.mu.Lock()
	r.objs[id] = res
	r.mu.Unlock()
	return id
}

// Lookup returns the resource for id if it is live and carries the expected
// tag. This is the Go-idiomatic replacement for the original's
// self-pointer-equals-own-address validity check.
func (r *Registry) Lookup(id ID, want Tag) (Resource, bool) {
	r.mu.RLock()
	res, ok := r.objs[id]
	r.mu.RUnlock()
	if !ok || res.ResourceTag() != want {
		return nil, false
	}
	return res, true
}

// Forget removes id from the registry without releasing the underlying
// resource (the caller has already released it, or ownership moved).
func (r *Registry) Forget(id ID) {
	r.mu.Lock()
	delete(r.objs, id)
	r.mu.Unlock()
}

// Release looks up id, forgets it, and releases the resource -- the single
// path used when walking a process's resource list at exit.
func (r *Registry) Release(id ID) error {
	r.mu.Lock()
	res, ok := r.objs[id]
	delete(r.objs, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return res.Release()
}

// List is the set of resources owned by a process: destroying the process
// walks this list and frees each by its tag. Go keeps this as an ordered
// slice of IDs rather than an intrusive linked list of headers -- the two
// are observationally identical for the traversal-and-free-all access
// pattern the kernel needs, and a slice avoids hand-rolled list pointers for
// no benefit.
type List struct {
	mu  sync.Mutex
	ids []ID
}

// NewList returns an empty resource list ready for use.
func NewList() *List {
	return &List{}
}

// Add threads id onto the list.
func (l *List) Add(id ID) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
}

// Remove unthreads id, if present. Used when a resource is closed explicitly
// (not via process exit) so it is not released twice.
func (l *List) Remove(id ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			return
		}
	}
}

// Snapshot returns the current resource IDs, most-recently-added last.
func (l *List) Snapshot() []ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ID, len(l.ids))
	copy(out, l.ids)
	return out
}

// Drain empties the list and returns what was in it, for exit-time release.
func (l *List) Drain() []ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.ids
	l.ids = nil
	return out
}
