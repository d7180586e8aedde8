package mm

import (
	"fmt"
	"sync"
)

// align is the allocator's alignment granularity. 8 matches a 64-bit host's
// natural alignment, the hosted analogue of the original's platform word
// alignment.
const align = 8

func alignUp(n int) int {
	return (n + align - 1) &^ (align - 1)
}

// blockHeader precedes every chunk (free or allocated) inside a region's
// arena, forming the doubly-linked free list the spec calls for. prev/next
// index into region.arena by byte offset; -1 marks a list end.
type blockHeader struct {
	size int // payload size, not including this header
	free bool
	prev int
	next int
}

const headerSize = 32 // size, free-flag, prev, next: four 8-byte words

// heap is a single backing region: a byte arena plus a first-fit free list.
// Operations are mutex-protected per region so concurrent allocators never
// race on the same arena.
type heap struct {
	mu     sync.Mutex
	name   string
	arena  []byte
	used   int64 // bytes currently allocated (payload only)
}

func newHeap(name string, size int) *heap {
	size = alignUp(size)
	h := &heap{name: name, arena: make([]byte, size)}
	h.putHeader(0, blockHeader{size: size - headerSize, free: true, prev: -1, next: -1})
	return h
}

// putHeader/getHeader encode the header by hand instead of via unsafe casts:
// this keeps the arena a plain []byte (so IsHeapPointer's range check stays
// a simple slice-bound comparison) while still modeling a real
// header-in-band allocator.
func (h *heap) putHeader(off int, bh blockHeader) {
	putInt(h.arena[off:], bh.size)
	free := 0
	if bh.free {
		free = 1
	}
	putInt(h.arena[off+8:], free)
	putInt(h.arena[off+16:], bh.prev)
	putInt(h.arena[off+24:], bh.next)
}

func (h *heap) getHeader(off int) blockHeader {
	return blockHeader{
		size: getInt(h.arena[off:]),
		free: getInt(h.arena[off+8:]) == 1,
		prev: getInt(h.arena[off+16:]),
		next: getInt(h.arena[off+24:]),
	}
}

func putInt(b []byte, v int) {
	u := uint64(int64(v))
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt(b []byte) int {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int(int64(u))
}

// alloc performs first-fit allocation of size bytes, returning the payload
// offset within the arena. Returns -1 if no free block is large enough.
func (h *heap) alloc(size int) int {
	size = alignUp(size)
	h.mu.Lock()
	defer h.mu.Unlock()

	for off := 0; off != -1; {
		bh := h.getHeader(off)
		if bh.free && bh.size >= size {
			h.splitAndTake(off, bh, size)
			h.used += int64(size)
			return off + headerSize
		}
		off = bh.next
	}
	return -1
}

// splitAndTake carves `size` bytes out of the free block at off, leaving a
// remainder free block behind when there's room for one.
func (h *heap) splitAndTake(off int, bh blockHeader, size int) {
	remainder := bh.size - size
	if remainder > headerSize {
		newOff := off + headerSize + size
		h.putHeader(newOff, blockHeader{size: remainder - headerSize, free: true, prev: bh.prev, next: bh.next})
		h.linkNeighbors(newOff, bh.prev, bh.next, off)
		h.putHeader(off, blockHeader{size: size, free: false, prev: bh.prev, next: newOff})
	} else {
		h.putHeader(off, blockHeader{size: bh.size, free: false, prev: bh.prev, next: bh.next})
	}
}

func (h *heap) linkNeighbors(middle, prev, next, replacing int) {
	if prev != -1 {
		p := h.getHeader(prev)
		if p.next == replacing {
			p.next = middle
			h.putHeader(prev, p)
		}
	}
	if next != -1 {
		n := h.getHeader(next)
		if n.prev == replacing {
			n.prev = middle
			h.putHeader(next, n)
		}
	}
}

// free releases the payload at off, coalescing with free neighbors.
func (h *heap) free(off int, size int) error {
	size = alignUp(size)
	h.mu.Lock()
	defer h.mu.Unlock()

	blockOff := off - headerSize
	if blockOff < 0 || blockOff >= len(h.arena) {
		return fmt.Errorf("mm: free of out-of-range pointer in region %q", h.name)
	}
	bh := h.getHeader(blockOff)
	if bh.free {
		return fmt.Errorf("mm: double free in region %q", h.name)
	}
	// splitAndTake hands out the whole block when the remainder is too
	// small to split off, so the block may exceed size by up to headerSize.
	if bh.size < size || bh.size-size > headerSize {
		return fmt.Errorf("mm: free size mismatch in region %q: alloc'd %d, freed %d", h.name, bh.size, size)
	}
	bh.free = true
	h.putHeader(blockOff, bh)
	h.used -= int64(size)

	if bh.next != -1 {
		n := h.getHeader(bh.next)
		if n.free {
			merged := bh
			merged.size = bh.size + headerSize + n.size
			merged.next = n.next
			h.putHeader(blockOff, merged)
			h.linkNeighbors(blockOff, -1, n.next, bh.next)
			bh = merged
		}
	}
	if bh.prev != -1 {
		p := h.getHeader(bh.prev)
		if p.free {
			merged := p
			merged.size = p.size + headerSize + bh.size
			merged.next = bh.next
			h.putHeader(bh.prev, merged)
			h.linkNeighbors(bh.prev, -1, bh.next, blockOff)
		}
	}
	return nil
}

// contains reports whether off (a payload offset previously returned by
// alloc) falls inside this region's arena.
func (h *heap) contains(off int) bool {
	return off >= headerSize && off < len(h.arena)
}

func (h *heap) blockSize(off int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.getHeader(off - headerSize).size
}

func (h *heap) free_() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.arena)) - h.used
}
