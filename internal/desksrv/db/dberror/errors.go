// Package dberror defines the sentinel errors of the session store layer.
package dberror

import (
	"net/http"

	"github.com/deskwise/deskwise/internal/common/apperrors"
)

var (
	ErrDatabase      apperrors.Error = apperrors.New("store error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict)
	ErrNotFound      apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidInput  apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
)
