package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_UnwrapAndCode(t *testing.T) {
	cause := stderrors.New("db down")
	appErr := NewAppError(ErrGetFailed, "failed to load credential", cause)
	wrapped := fmt.Errorf("token manager: %w", appErr)

	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, NewAppError(ErrGetFailed, "", nil))
	assert.NotErrorIs(t, wrapped, NewAppError(ErrNotFound, "", nil))

	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrGetFailed, code)
	assert.Contains(t, appErr.Error(), "db down")
}

func TestCodeOf_PlainError(t *testing.T) {
	_, ok := CodeOf(stderrors.New("boom"))
	assert.False(t, ok)
}
