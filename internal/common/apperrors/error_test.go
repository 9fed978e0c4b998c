package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedErrorsMatchSentinel(t *testing.T) {
	sentinel := New("store error").SetStatusCode(http.StatusInternalServerError)
	derived := sentinel.New("conflict").SetStatusCode(http.StatusConflict)

	assert.True(t, errors.Is(derived, sentinel))
	assert.Equal(t, http.StatusConflict, derived.StatusCode())
	assert.Equal(t, "conflict", derived.Error())
}

func TestMsgWrapsOriginal(t *testing.T) {
	sentinel := New("telemetry error")
	wrapped := sentinel.Msg("desk unreachable")

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.Equal(t, "desk unreachable", wrapped.Error())
	assert.Equal(t, "desk unreachable; telemetry error", wrapped.ErrorAll())
}

func TestErrAttachesCauses(t *testing.T) {
	sentinel := New("db error").SetStatusCode(http.StatusInternalServerError)
	cause := errors.New("connection refused")
	err := sentinel.Err(cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "db error", err.Error())
	assert.Contains(t, err.ErrorAll(), "connection refused")

	all := err.UnwrapAll()
	require.Len(t, all, 2)
	assert.Equal(t, cause, all[1])
}

func TestMsgErrInheritsStatusCode(t *testing.T) {
	sentinel := New("validation error").SetStatusCode(http.StatusBadRequest)
	err := sentinel.MsgErr("bad start time", errors.New("parse failure"))

	assert.Equal(t, http.StatusBadRequest, err.StatusCode())
	assert.True(t, errors.Is(err, sentinel))
	assert.Contains(t, err.ErrorAll(), "parse failure")
}
