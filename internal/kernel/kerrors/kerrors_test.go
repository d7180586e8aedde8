package kerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithSuccessKindIsNil(t *testing.T) {
	assert.Nil(t, New("op", KindNone))
}

func TestNewProducesClassifiedError(t *testing.T) {
	err := New("vfs.Open", KindNoSuchEntry)
	assert.EqualError(t, err, "vfs.Open: no-such-entry")
	assert.Equal(t, KindNoSuchEntry, KindOf(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap("op", KindIOError, nil))
}

func TestWrapPreservesCauseAndKind(t *testing.T) {
	cause := errors.New("disk gone")
	err := Wrap("fscache.Read", KindIOError, cause)
	assert.True(t, Is(err, KindIOError))

	var ke *Error
	require.True(t, errors.As(err, &ke))
	assert.True(t, errors.Is(ke.Cause(), cause))
}

func TestKindOfUnclassifiedErrorDefaultsToIOError(t *testing.T) {
	assert.Equal(t, KindIOError, KindOf(errors.New("plain")))
}

func TestKindOfNilIsNone(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
}
