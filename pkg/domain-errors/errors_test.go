package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	t.Run("returns outermost code", func(t *testing.T) {
		inner := New(CodeNotFound, "identity not found")
		outer := Wrap(inner, CodeInvalidState, "cannot verify")
		assert.Equal(t, CodeInvalidState, CodeOf(outer))
	})

	t.Run("finds code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("apply call: %w", New(CodeUnauthorized, "caller is not admin"))
		assert.Equal(t, CodeUnauthorized, CodeOf(err))
	})

	t.Run("unclassified errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("disk full")))
	})
}

func TestHasCode(t *testing.T) {
	inner := New(CodeAlreadyRegistered, "role already assigned")
	outer := Wrap(inner, CodeDuplicateIdentity, "identity exists")

	assert.True(t, HasCode(outer, CodeDuplicateIdentity))
	assert.True(t, HasCode(outer, CodeAlreadyRegistered))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "append event")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ERR_INTERNAL")
	assert.Contains(t, err.Error(), "connection reset")
}
