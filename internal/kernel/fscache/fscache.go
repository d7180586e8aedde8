// Package fscache implements the block-level file system cache sitting
// between a FileHandle and its backing storage: write-through or
// write-back semantics per write, dirty-bit tracking, and sync/drop/reduce
// maintenance operations.
//
// Grounded on original_source/src/system/include/mm/cache.h (sys_cache_write/
// sys_cache_read, enum cache_mode {WRITE_THROUGH,WRITE_BACK}, _cache_sync/
// _cache_drop/_cache_reduce/_cache_is_sync_needed).
package fscache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dnx-rtos/kernel/internal/kernel/kerrors"
)

// Mode selects write-through vs write-back semantics -- enum cache_mode.
type Mode int

const (
	WriteThrough Mode = iota
	WriteBack
)

// Backend is whatever the cache sits in front of: a file's underlying
// storage medium, written through or flushed back to on eviction/sync.
type Backend interface {
	WriteBlock(block uint32, data []byte) error
	ReadBlock(block uint32) ([]byte, error)
}

type entry struct {
	data  []byte
	dirty bool
}

// blockKey identifies a cached block by the file it belongs to (by
// *Backend identity, since two open files never share a Backend) and block
// number.
type blockKey struct {
	backend Backend
	block   uint32
}

// Cache is the block cache, grounded on an LRU eviction policy --
// github.com/hashicorp/golang-lru gives the fixed-capacity, evict-oldest
// behavior the original's fixed-size RAM cache needs without hand-rolling
// an LRU list.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	mode  Mode
}

// New creates a cache with room for capacity blocks.
func New(capacity int, mode Mode) (*Cache, error) {
	c := &Cache{mode: mode}
	l, err := lru.NewWithEvict(capacity, c.onEvict)
	if err != nil {
		return nil, kerrors.Wrap("fscache.New", kerrors.KindInvalidArgument, err)
	}
	c.lru = l
	return c, nil
}

// onEvict writes back a dirty block before the LRU drops it, so
// write-back data is never silently lost to capacity pressure.
func (c *Cache) onEvict(key interface{}, value interface{}) {
	k := key.(blockKey)
	e := value.(*entry)
	if e.dirty {
		_ = k.backend.WriteBlock(k.block, e.data)
	}
}

// Write stores data for (backend, block) in the cache. Under WriteThrough
// it is written to backend immediately and cached clean; under WriteBack
// it is marked dirty and only flushed on Sync, Drop, or eviction --
// sys_cache_write(file, block, size, src, mode).
func (c *Cache) Write(backend Backend, block uint32, data []byte, mode Mode) error {
	buf := append([]byte(nil), data...)
	c.mu.Lock()
	defer c.mu.Unlock()

	if mode == WriteThrough {
		if err := backend.WriteBlock(block, buf); err != nil {
			return kerrors.Wrap("fscache.Write", kerrors.KindIOError, err)
		}
		c.lru.Add(blockKey{backend, block}, &entry{data: buf, dirty: false})
		return nil
	}
	c.lru.Add(blockKey{backend, block}, &entry{data: buf, dirty: true})
	return nil
}

// Read returns the cached block, filling the cache from backend on a miss
// -- sys_cache_read(file, block, size, dst).
func (c *Cache) Read(backend Backend, block uint32) ([]byte, error) {
	key := blockKey{backend, block}
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		e := v.(*entry)
		out := append([]byte(nil), e.data...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	data, err := backend.ReadBlock(block)
	if err != nil {
		return nil, kerrors.Wrap("fscache.Read", kerrors.KindIOError, err)
	}
	c.mu.Lock()
	c.lru.Add(key, &entry{data: data, dirty: false})
	c.mu.Unlock()
	return append([]byte(nil), data...), nil
}

// Sync writes back every dirty block without evicting it -- _cache_sync.
func (c *Cache) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, key := range c.lru.Keys() {
		v, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		k := key.(blockKey)
		e := v.(*entry)
		if e.dirty {
			if err := k.backend.WriteBlock(k.block, e.data); err != nil && firstErr == nil {
				firstErr = err
			}
			e.dirty = false
		}
	}
	if firstErr != nil {
		return kerrors.Wrap("fscache.Sync", kerrors.KindIOError, firstErr)
	}
	return nil
}

// Drop discards every cached block without writing back dirty ones --
// _cache_drop, used when a file system is force-unmounted.
func (c *Cache) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Purge runs the eviction callback for every entry; clearing the dirty
	// bits first keeps that callback from writing anything back.
	for _, key := range c.lru.Keys() {
		if v, ok := c.lru.Peek(key); ok {
			v.(*entry).dirty = false
		}
	}
	c.lru.Purge()
}

// Reduce evicts up to n entries (writing back any that are dirty via the
// eviction callback) to free cache pressure -- _cache_reduce(size).
func (c *Cache) Reduce(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		if c.lru.Len() == 0 {
			return
		}
		c.lru.RemoveOldest()
	}
}

// IsSyncNeeded reports whether any block is currently dirty --
// _cache_is_sync_needed.
func (c *Cache) IsSyncNeeded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if v, ok := c.lru.Peek(key); ok && v.(*entry).dirty {
			return true
		}
	}
	return false
}

// Len reports the number of cached blocks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
