package restype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	Header
	released bool
}

func (f *fakeResource) Release() error {
	f.released = true
	return nil
}

func TestRegisterLookupRejectsWrongTag(t *testing.T) {
	reg := NewRegistry()
	res := &fakeResource{Header: Header{Tag: TagFile}}
	id := reg.Register(res)

	got, ok := reg.Lookup(id, TagFile)
	require.True(t, ok)
	assert.Same(t, res, got)

	_, ok = reg.Lookup(id, TagDir)
	assert.False(t, ok, "a resource looked up with the wrong tag must not resolve")
}

func TestLookupUnknownIDFails(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Lookup(ID(999), TagFile)
	assert.False(t, ok)
}

func TestReleaseRemovesAndCallsRelease(t *testing.T) {
	reg := NewRegistry()
	res := &fakeResource{Header: Header{Tag: TagFile}}
	id := reg.Register(res)

	require.NoError(t, reg.Release(id))
	assert.True(t, res.released)

	_, ok := reg.Lookup(id, TagFile)
	assert.False(t, ok)
}

func TestListAddRemoveSnapshotDrain(t *testing.T) {
	l := NewList()
	l.Add(1)
	l.Add(2)
	l.Add(3)
	l.Remove(2)

	assert.Equal(t, []ID{1, 3}, l.Snapshot())

	drained := l.Drain()
	assert.Equal(t, []ID{1, 3}, drained)
	assert.Empty(t, l.Snapshot())
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "file", TagFile.String())
	assert.Contains(t, Tag(0xdeadbeef).String(), "unknown")
}
