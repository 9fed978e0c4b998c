// Package telemetry reads live desk state from the desk controller fleet.
// The service pulls height on demand; nothing in this package pushes
// samples into sessions.
package telemetry

import (
	"context"
	"net/http"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
)

var (
	ErrTelemetry    apperrors.Error = apperrors.New("telemetry error").SetStatusCode(http.StatusBadGateway)
	ErrDeskNotFound apperrors.Error = ErrTelemetry.New("unknown desk").SetStatusCode(http.StatusNotFound)
	ErrUnavailable  apperrors.Error = ErrTelemetry.New("desk controller unavailable").SetStatusCode(http.StatusBadGateway)
)

// Source reads the current state of a desk. Implementations must be safe
// for concurrent use; callers treat every failure as transient and fall
// back to recorded history.
type Source interface {
	GetState(ctx context.Context, deskID string) (deskcommon.DeskState, apperrors.Error)
}
