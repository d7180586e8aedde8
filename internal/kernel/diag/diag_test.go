package diag

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diag.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReportAndDetectPanicOnce(t *testing.T) {
	store := openTestStore(t)

	_, found, err := store.DetectPanic()
	require.NoError(t, err)
	assert.False(t, found)

	desc := PanicDescriptor{Cause: CauseStackOverflow, Message: "overflow", Timestamp: time.Now()}
	require.NoError(t, store.ReportPanic(desc))

	got, found, err := store.DetectPanic()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, CauseStackOverflow, got.Cause)
	assert.Equal(t, "overflow", got.Message)

	_, found, err = store.DetectPanic()
	require.NoError(t, err)
	assert.False(t, found, "a second DetectPanic should not see the same report again")
}

func TestRingEvictsOldest(t *testing.T) {
	store := openTestStore(t)
	ring, err := NewRing(store, 2)
	require.NoError(t, err)

	ring.WriteLog(time.Now(), "one")
	ring.WriteLog(time.Now(), "two")
	ring.WriteLog(time.Now(), "three")

	lines := ring.Snapshot()
	require.Len(t, lines, 2)
	assert.Equal(t, "two", lines[0].Text)
	assert.Equal(t, "three", lines[1].Text)
}

func TestRingPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.db")
	store, err := Open(path)
	require.NoError(t, err)
	ring, err := NewRing(store, 4)
	require.NoError(t, err)
	ring.WriteLog(time.Now(), "persisted")
	require.NoError(t, store.Close())

	store2, err := Open(path)
	require.NoError(t, err)
	defer store2.Close()
	ring2, err := NewRing(store2, 4)
	require.NoError(t, err)
	lines := ring2.Snapshot()
	require.Len(t, lines, 1)
	assert.Equal(t, "persisted", lines[0].Text)
}
