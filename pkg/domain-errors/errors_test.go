package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCode(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeConflict, "duplicate email")
		assert.Equal(t, CodeConflict, GetCode(err))
	})

	t.Run("wrapped coded error survives fmt wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "no such user")
		outer := fmt.Errorf("login: %w", inner)
		assert.Equal(t, CodeNotFound, GetCode(outer))
		assert.True(t, HasCode(outer, CodeNotFound))
	})

	t.Run("uncoded error maps to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, GetCode(fmt.Errorf("raw driver noise")))
	})
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeTransient, "redis write failed")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeTransient, GetCode(err))
	assert.Contains(t, err.Error(), "redis write failed")
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidInput: http.StatusBadRequest,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeRateLimited:  http.StatusTooManyRequests,
		CodeTransient:    http.StatusInternalServerError,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
