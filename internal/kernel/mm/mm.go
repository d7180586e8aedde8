// Package mm implements the tiered memory manager: aligned heap allocation
// over one or more physically disjoint backing regions, with per-purpose
// and per-module accounting and the is-on-heap/is-in-ROM predicates the
// syscall layer uses to validate user pointers.
//
// Grounded on mm.h/heap.h (original_source): region list, _mm_mem purpose
// enum, _kmalloc/_kzalloc/_kfree signatures, is_object_in_heap/
// is_rom_address. The first-fit free-list allocator itself lives in
// heap.go; this file is the public Manager surface (kalloc/kzalloc/kfree).
package mm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ptrWithin reports whether p falls within [lo, hi] inclusive, treating all
// three as addresses into the same kind of backing array. Used only to
// implement the is-on-heap/is-in-ROM predicates the original expresses as
// raw address comparisons; it never dereferences p outside its source
// slice's bounds.
func ptrWithin(p, lo, hi *byte) bool {
	pa := uintptr(unsafe.Pointer(p))
	la := uintptr(unsafe.Pointer(lo))
	ha := uintptr(unsafe.Pointer(hi))
	return pa >= la && pa <= ha
}

// AccountingFault is panicked (never returned) when a caller double-frees or
// passes a purpose tag that disagrees with the one alloc saw: free must
// receive the same purpose tag that alloc saw, and a mismatch is a fatal
// accounting bug rather than an ordinary error. Recovered only by the
// kworker's dispatch loop (see package syscall), never by user code.
type AccountingFault struct {
	Purpose Purpose
	Detail  string
}

func (f AccountingFault) Error() string {
	return fmt.Sprintf("mm: accounting fault (purpose=%s): %s", f.Purpose, f.Detail)
}

// Pointer is an opaque handle returned by Alloc; it encodes which region and
// offset back it, so Free and the IsHeapPointer/IsROMPointer predicates
// don't need real memory addresses.
type Pointer struct {
	region *heap
	off    int
	size   int
	purpose Purpose
	module  int // valid iff purpose == PurposeModule
}

// Bytes exposes the payload as a byte slice for callers that need to read or
// write through the allocation.
func (p Pointer) Bytes() []byte {
	return p.region.arena[p.off : p.off+p.size]
}

func (p Pointer) Size() int { return p.size }

// Manager owns the set of backing regions and the per-purpose/per-module
// accounting counters. A Manager with no regions registered yet fails every
// allocation with an error rather than panicking -- allocation failure is
// ordinary and non-fatal; only a free/purpose accounting mismatch panics.
type Manager struct {
	mu         sync.Mutex
	regions    []*heap
	usage      [purposeCount]int64
	modules    map[int]int64
	romRegions [][]byte
}

func NewManager() *Manager {
	return &Manager{modules: make(map[int]int64)}
}

// RegisterRegion adds a backing region of the given size. Regions are tried
// in registration order: if one region cannot satisfy a request, the next
// is tried.
func (m *Manager) RegisterRegion(name string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions = append(m.regions, newHeap(name, size))
}

// Alloc is kalloc: allocate size bytes tagged with purpose. moduleID is only
// consulted when purpose == PurposeModule, so per-module counters stay
// consistent.
func (m *Manager) Alloc(purpose Purpose, size int, moduleID int) (Pointer, error) {
	return m.alloc(purpose, size, moduleID, false)
}

// ZAlloc is kzalloc: same as Alloc but zero-filled. Every region is one
// fixed arena whose blocks are reused after Free, and freeing does not
// scrub payload bytes, so the returned payload is always zeroed explicitly.
func (m *Manager) ZAlloc(purpose Purpose, size int, moduleID int) (Pointer, error) {
	return m.alloc(purpose, size, moduleID, true)
}

func (m *Manager) alloc(purpose Purpose, size int, moduleID int, zero bool) (Pointer, error) {
	if size <= 0 {
		return Pointer{}, fmt.Errorf("mm: invalid size %d", size)
	}
	m.mu.Lock()
	regions := append([]*heap(nil), m.regions...)
	m.mu.Unlock()

	for _, r := range regions {
		off := r.alloc(size)
		if off == -1 {
			continue
		}
		ptr := Pointer{region: r, off: off, size: alignUp(size), purpose: purpose, module: moduleID}
		if zero {
			b := ptr.Bytes()
			for i := range b {
				b[i] = 0
			}
		}
		m.account(purpose, moduleID, int64(ptr.size))
		return ptr, nil
	}
	return Pointer{}, fmt.Errorf("mm: no memory for %d bytes (purpose=%s)", size, purpose)
}

// Free is kfree: release ptr, which must have been produced by Alloc/ZAlloc
// with the same purpose tag. On success the caller's pointer variable should
// be nulled by convention (mirroring "kfree nulls the pointer on success");
// Go callers do this by discarding the returned Pointer value.
func (m *Manager) Free(purpose Purpose, ptr *Pointer) error {
	if ptr == nil || ptr.region == nil {
		return nil
	}
	if ptr.purpose != purpose {
		panic(AccountingFault{Purpose: purpose, Detail: fmt.Sprintf("alloc'd as %s, freed as %s", ptr.purpose, purpose)})
	}
	if err := ptr.region.free(ptr.off, ptr.size); err != nil {
		panic(AccountingFault{Purpose: purpose, Detail: err.Error()})
	}
	m.account(purpose, ptr.module, -int64(ptr.size))
	*ptr = Pointer{}
	return nil
}

func (m *Manager) account(purpose Purpose, moduleID int, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch purpose {
	case PurposeKernel:
		atomic.AddInt64(&m.usage[PurposeKernel], delta)
	case PurposeFilesystem:
		atomic.AddInt64(&m.usage[PurposeFilesystem], delta)
	case PurposeNetwork:
		atomic.AddInt64(&m.usage[PurposeNetwork], delta)
	case PurposeProgram:
		atomic.AddInt64(&m.usage[PurposeProgram], delta)
	case PurposeShared:
		atomic.AddInt64(&m.usage[PurposeShared], delta)
	case PurposeCache:
		atomic.AddInt64(&m.usage[PurposeCache], delta)
	case PurposeModule:
		atomic.AddInt64(&m.usage[PurposeModule], delta)
		m.modules[moduleID] += delta
	}
}

// UsageDetails returns the per-purpose usage snapshot (_mm_get_mem_usage_details
// in the original; supplemented, see SPEC_FULL.md).
func (m *Manager) UsageDetails() UsageDetails {
	m.mu.Lock()
	defer m.mu.Unlock()
	return UsageDetails{
		Kernel:     m.usage[PurposeKernel],
		Filesystem: m.usage[PurposeFilesystem],
		Network:    m.usage[PurposeNetwork],
		Program:    m.usage[PurposeProgram],
		Shared:     m.usage[PurposeShared],
		Cache:      m.usage[PurposeCache],
		Module:     m.usage[PurposeModule],
	}
}

// ModuleUsage returns the outstanding bytes charged to moduleID.
func (m *Manager) ModuleUsage(moduleID int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modules[moduleID]
}

// MemFree sums free bytes across every region.
func (m *Manager) MemFree() int64 {
	m.mu.Lock()
	regions := append([]*heap(nil), m.regions...)
	m.mu.Unlock()
	var total int64
	for _, r := range regions {
		total += r.free_()
	}
	return total
}

// IsHeapPointer reports whether ptr's bytes fall inside one of this
// Manager's regions -- _mm_is_object_in_heap in the original, used by the
// syscall layer to validate that a user-supplied pointer argument actually
// points into process data rather than being forged.
func (m *Manager) IsHeapPointer(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	m.mu.Lock()
	regions := append([]*heap(nil), m.regions...)
	m.mu.Unlock()
	for _, r := range regions {
		arena := r.arena
		if len(arena) == 0 {
			continue
		}
		lo := &arena[0]
		hi := &arena[len(arena)-1]
		p := &b[0]
		if ptrWithin(p, lo, hi) {
			return true
		}
	}
	return false
}

// IsROMPointer is the is_rom_address predicate. This hosted build has no
// real ROM segment; romRegions lets tests/demo register a read-only byte
// range (e.g. the program table's literal argv strings) to exercise the
// same validation path the syscall layer takes for ROM-resident arguments.
func (m *Manager) IsROMPointer(b []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rom := range m.romRegions {
		if len(rom) == 0 || len(b) == 0 {
			continue
		}
		if ptrWithin(&b[0], &rom[0], &rom[len(rom)-1]) {
			return true
		}
	}
	return false
}

// RegisterROM records a read-only byte range for IsROMPointer to recognize.
func (m *Manager) RegisterROM(b []byte) {
	m.mu.Lock()
	m.romRegions = append(m.romRegions, b)
	m.mu.Unlock()
}
