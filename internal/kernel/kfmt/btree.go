// Package kfmt holds small formatting and container helpers shared across
// the kernel: an ordered map used by the mount tree, option-string helpers
// (see options.go), and printk-style klog forwarding (see printk.go).
package kfmt

import "sort"

// Ordered is satisfied by every key type the kernel indexes by: strings
// (mount paths, device names) and integers (PIDs, descriptors).
type Ordered interface {
	~string | ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// BTree is a sorted associative container keyed by any Ordered type. The
// mount tree walks its mount points in ascending path order and keeps the
// longest one that prefixes the path being resolved; none of
// the surveyed example repos import a real B-tree library; a sorted slice
// with binary search gives the same ordered-traversal behavior at the
// scale a kernel's handful of mounts/modules/descriptors needs, so this is
// a plain generic wrapper rather than bringing in a dedicated dependency
// for a handful of entries.
type BTree[K Ordered, V any] struct {
	keys []K
	vals []V
}

func NewBTree[K Ordered, V any]() *BTree[K, V] {
	return &BTree[K, V]{}
}

func (t *BTree[K, V]) search(k K) (int, bool) {
	i := sort.Search(len(t.keys), func(i int) bool { return t.keys[i] >= k })
	if i < len(t.keys) && t.keys[i] == k {
		return i, true
	}
	return i, false
}

// Set inserts or replaces the value for k.
func (t *BTree[K, V]) Set(k K, v V) {
	i, found := t.search(k)
	if found {
		t.vals[i] = v
		return
	}
	t.keys = append(t.keys, k)
	copy(t.keys[i+1:], t.keys[i:])
	t.keys[i] = k
	var zero V
	t.vals = append(t.vals, zero)
	copy(t.vals[i+1:], t.vals[i:])
	t.vals[i] = v
}

// Get looks up k.
func (t *BTree[K, V]) Get(k K) (V, bool) {
	i, found := t.search(k)
	if !found {
		var zero V
		return zero, false
	}
	return t.vals[i], true
}

// Delete removes k if present.
func (t *BTree[K, V]) Delete(k K) {
	i, found := t.search(k)
	if !found {
		return
	}
	t.keys = append(t.keys[:i], t.keys[i+1:]...)
	t.vals = append(t.vals[:i], t.vals[i+1:]...)
}

// Len reports the number of entries.
func (t *BTree[K, V]) Len() int { return len(t.keys) }

// Ascend calls fn for every entry in ascending key order, stopping early if
// fn returns false.
func (t *BTree[K, V]) Ascend(fn func(k K, v V) bool) {
	for i := range t.keys {
		if !fn(t.keys[i], t.vals[i]) {
			return
		}
	}
}

// Descend calls fn for every entry in descending key order, stopping early
// if fn returns false.
func (t *BTree[K, V]) Descend(fn func(k K, v V) bool) {
	for i := len(t.keys) - 1; i >= 0; i-- {
		if !fn(t.keys[i], t.vals[i]) {
			return
		}
	}
}
