package rferr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsKindAndMessage(t *testing.T) {
	err := New(MissingId, "root entity must have an id")
	assert.Equal(t, "MissingId: root entity must have an id", err.Error())
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("underlying failure")
	err := Wrap(ShapeMismatch, "expected an array", cause)

	assert.Equal(t, "ShapeMismatch: expected an array: underlying failure", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestErrorsIsMatchesByKindNotMessage(t *testing.T) {
	err := New(TypeConflict, "widget vs gadget")

	assert.True(t, errors.Is(err, ErrTypeConflict))
	assert.False(t, errors.Is(err, ErrMissingType))
}

func TestErrorsIsUnwrapsThroughWrap(t *testing.T) {
	cause := New(InvalidArgument, "bad arg")
	err := Wrap(InvalidPattern, "while parsing", cause)

	require.True(t, errors.Is(err, ErrInvalidPattern))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestKindStringCoversEveryDefinedKind(t *testing.T) {
	kinds := []Kind{
		TypeConflict, MissingType, MissingId, InvalidArgument,
		InvalidPattern, ShapeMismatch, NestedEntityAssertion,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "Unknown", k.String())
	}
	assert.Equal(t, "Unknown", Kind(999).String())
}
