// Package diag is the kernel's diagnostics store: the klog ring buffer and
// the panic descriptor that survives a warm reset, grounded on
// kernel/printk.c and kernel/include/kernel/kpanic.h (original_source).
//
// The original persists the panic descriptor in a small battery-backed SRAM
// region read back at boot before the rest of RAM is zeroed. This hosted
// build has no such region, so go.etcd.io/bbolt -- a pack-wide embedded
// key/value store -- stands in as the persistence layer: a bbolt file on
// disk plays the same "survives across a process restart" role the SRAM
// region plays across a warm reset.
package diag

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// PanicCause enumerates the original's enum _kernel_panic_desc_cause.
type PanicCause int

const (
	CauseSegfault PanicCause = iota
	CauseStackOverflow
	CauseCPUFault
	CauseInternal1
	CauseInternal2
	CauseInternal3
	CauseInternal4
	CauseUnknown
)

func (c PanicCause) String() string {
	switch c {
	case CauseSegfault:
		return "segfault"
	case CauseStackOverflow:
		return "stack-overflow"
	case CauseCPUFault:
		return "cpu-fault"
	case CauseInternal1, CauseInternal2, CauseInternal3, CauseInternal4:
		return "internal"
	default:
		return "unknown"
	}
}

// PanicDescriptor is the persisted record of the last kernel panic --
// _kernel_panic_report's payload.
type PanicDescriptor struct {
	Cause     PanicCause
	Message   string
	Timestamp time.Time
}

var (
	bucketPanic = []byte("panic")
	bucketLog   = []byte("log")
	keyLast     = []byte("last")
)

// Store is the persistence backend for both the panic descriptor and the
// klog ring buffer, opened over a single bbolt file so both survive the
// same warm-reset-equivalent (process restart against the same path).
type Store struct {
	db *bbolt.DB
}

// Open creates or reopens the diagnostics store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "diag: open store")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPanic); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketLog)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "diag: init buckets")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ReportPanic persists desc, overwriting any previously recorded panic --
// _kernel_panic_report.
func (s *Store) ReportPanic(desc PanicDescriptor) error {
	buf, err := json.Marshal(desc)
	if err != nil {
		return errors.Wrap(err, "diag: marshal panic descriptor")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPanic).Put(keyLast, buf)
	})
}

// DetectPanic reports whether a panic descriptor survived from a prior
// run, returning it and clearing it so it is reported exactly once --
// _kernel_panic_detect, which the original calls once at boot before the
// descriptor region is scrubbed.
func (s *Store) DetectPanic() (PanicDescriptor, bool, error) {
	var desc PanicDescriptor
	var found bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPanic)
		v := b.Get(keyLast)
		if v == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(v, &desc); err != nil {
			return err
		}
		return b.Delete(keyLast)
	})
	if err != nil {
		return PanicDescriptor{}, false, errors.Wrap(err, "diag: detect panic")
	}
	return desc, found, nil
}
