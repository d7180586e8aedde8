package diag

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// Line is one persisted klog entry.
type Line struct {
	Timestamp time.Time
	Text      string
}

// Ring is a fixed-capacity klog buffer backed by the same Store, grounded
// on printk.c's logbuf ring (head/tail indices into a fixed byte buffer).
// Go keeps this as a capped slice rather than reproducing the original's
// manual byte-ring indexing, since the kernel.kfmt.Sink interface only ever
// needs ordered append-and-evict, not raw byte addressing.
type Ring struct {
	mu       sync.Mutex
	store    *Store
	capacity int
	lines    []Line
}

// NewRing wraps store with an in-memory ring of the given line capacity,
// seeded from whatever was last persisted.
func NewRing(store *Store, capacity int) (*Ring, error) {
	r := &Ring{store: store, capacity: capacity}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Ring) load() error {
	return r.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLog)
		v := b.Get(keyLast)
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &r.lines)
	})
}

// WriteLog implements kfmt.Sink: appends a line, evicting the oldest once
// capacity is exceeded, and persists the resulting window.
func (r *Ring) WriteLog(ts time.Time, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, Line{Timestamp: ts, Text: line})
	if over := len(r.lines) - r.capacity; over > 0 {
		r.lines = r.lines[over:]
	}
	_ = r.persistLocked()
}

func (r *Ring) persistLocked() error {
	buf, err := json.Marshal(r.lines)
	if err != nil {
		return errors.Wrap(err, "diag: marshal log ring")
	}
	return r.store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLog).Put(keyLast, buf)
	})
}

// Snapshot returns a copy of the currently buffered lines, oldest first.
func (r *Ring) Snapshot() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}
