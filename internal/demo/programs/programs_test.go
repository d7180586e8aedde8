package programs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumAddsIntegerArgs(t *testing.T) {
	assert.Equal(t, 0, sumMain([]string{"1", "2", "3"}))
}

func TestSumRejectsNonInteger(t *testing.T) {
	assert.Equal(t, 1, sumMain([]string{"x"}))
}

func TestFalseAlwaysFails(t *testing.T) {
	assert.Equal(t, 1, falseMain(nil))
}

func TestEchoSucceeds(t *testing.T) {
	assert.Equal(t, 0, echoMain([]string{"a", "b"}))
}
