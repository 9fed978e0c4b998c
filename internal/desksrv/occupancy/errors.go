package occupancy

import (
	"net/http"

	"github.com/deskwise/deskwise/internal/common/apperrors"
)

var (
	ErrOccupancy apperrors.Error = apperrors.New("occupancy error").SetStatusCode(http.StatusInternalServerError)

	// Expected business outcomes. The API layer reports these as
	// success=false results, never as request failures.
	ErrDeskOccupied     apperrors.Error = ErrOccupancy.New("desk is occupied").SetStatusCode(http.StatusConflict)
	ErrDeskBooked       apperrors.Error = ErrOccupancy.New("desk is booked").SetStatusCode(http.StatusConflict)
	ErrBookingOverlap   apperrors.Error = ErrOccupancy.New("booking overlaps an existing booking").SetStatusCode(http.StatusConflict)
	ErrNoActivePairing  apperrors.Error = ErrOccupancy.New("no active pairing").SetStatusCode(http.StatusNotFound)
	ErrInvalidTimeRange apperrors.Error = ErrOccupancy.New("start time must be before end time").SetStatusCode(http.StatusBadRequest)
)
