package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByType(t *testing.T) {
	err := New(ErrorTypeOversizeForPlatform, "too large").WithDetail("pixels", 20000000)

	assert.True(t, stderrors.Is(err, ErrOversizeForPlatform))
	assert.False(t, stderrors.Is(err, ErrWorkerFailure))
}

func TestIsThroughFmtWrap(t *testing.T) {
	inner := New(ErrorTypeWorkerFailure, "band 2 failed")
	wrapped := fmt.Errorf("resample: %w", inner)

	assert.True(t, Is(wrapped, ErrWorkerFailure))
	assert.Equal(t, ErrorTypeWorkerFailure, TypeOf(wrapped))
}

func TestWrapWithTypeKeepsInnerError(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := WrapWithType(cause, ErrorTypeDecodeFailure, "decode source")

	require.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrDecodeFailure))
	assert.Equal(t, "decode source: unexpected EOF", err.Error())
}

func TestFromErrorPlainError(t *testing.T) {
	appErr := FromError(stderrors.New("boom"))

	assert.Equal(t, ErrorTypeUnknown, appErr.Type)
	assert.Nil(t, FromError(nil))
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"plain", stderrors.New("x"), ErrorTypeUnknown},
		{"typed", New(ErrorTypeEncodeFailure, "x"), ErrorTypeEncodeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.want {
				t.Errorf("TypeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	err := New(ErrorTypeInvalidTargetSize, "width is 0").
		WithDetail("width", 0).
		WithDetail("height", 3)

	assert.Equal(t, "[invalid_target_size] width is 0 | height=3 | width=0", Format(err))
	assert.Equal(t, "", Format(nil))
}
