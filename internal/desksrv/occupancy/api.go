package occupancy

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/httpx"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
	"github.com/deskwise/deskwise/internal/desksrv/schemavalidator"
)

// occupancyRsp is the business-outcome envelope. Conflicts and not-found
// are expected outcomes reported with success=false; only infrastructure
// failures use the error envelope.
type occupancyRsp struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	DeskID    string `json:"desk_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type bookingReq struct {
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

var coordinator = NewCoordinator()

func sessionRsp(session *models.Session, message string) *occupancyRsp {
	rsp := &occupancyRsp{
		Success:   true,
		Message:   message,
		SessionID: session.SessionID.String(),
		DeskID:    session.DeskID,
		UserID:    session.UserID,
		StartTime: session.StartTime.UTC().Format(time.RFC3339),
	}
	if session.EndTime != nil {
		rsp.EndTime = session.EndTime.UTC().Format(time.RFC3339)
	}
	return rsp
}

// outcomeRsp maps expected business failures to success=false results.
// Anything else propagates to the error envelope.
func outcomeRsp(err error) (*httpx.Response, error) {
	var rsp *occupancyRsp
	switch {
	case errors.Is(err, ErrDeskOccupied):
		rsp = &occupancyRsp{Message: "desk is occupied by another user", Reason: err.Error()}
	case errors.Is(err, ErrDeskBooked):
		rsp = &occupancyRsp{Message: "desk is booked for this time", Reason: "booked"}
	case errors.Is(err, ErrBookingOverlap):
		rsp = &occupancyRsp{Message: "desk is already booked for an overlapping time", Reason: "overlap"}
	case errors.Is(err, ErrNoActivePairing):
		rsp = &occupancyRsp{Message: "no active pairing", Reason: "not_found"}
	case errors.Is(err, ErrInvalidTimeRange):
		rsp = &occupancyRsp{Message: "start time must be before end time", Reason: "invalid_time_range"}
	default:
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func invalidTimestampRsp(field string) *httpx.Response {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &occupancyRsp{
			Message: field + " is not a valid RFC 3339 timestamp",
			Reason:  "invalid_timestamp",
		},
	}
}

func notAuthenticatedRsp() *httpx.Response {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &occupancyRsp{
			Message: "not authenticated",
			Reason:  "not_authenticated",
		},
	}
}

func pairDesk(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	userID := deskcommon.GetUserID(ctx)
	if userID == "" {
		return notAuthenticatedRsp(), nil
	}
	deskID := chi.URLParam(r, "deskID")
	if err := schemavalidator.V().Var(deskID, "deskid"); err != nil {
		return nil, httpx.ErrInvalidDesk()
	}

	session, err := coordinator.Pair(ctx, userID, deskID)
	if err != nil {
		return outcomeRsp(err)
	}
	log.Ctx(ctx).Info().Str("user_id", userID).Str("desk_id", deskID).Msg("paired")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   sessionRsp(session, "paired"),
	}, nil
}

func unpairDesk(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	userID := deskcommon.GetUserID(ctx)
	if userID == "" {
		return notAuthenticatedRsp(), nil
	}

	session, err := coordinator.Unpair(ctx, userID)
	if err != nil {
		return outcomeRsp(err)
	}
	log.Ctx(ctx).Info().Str("user_id", userID).Str("desk_id", session.DeskID).Msg("unpaired")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   sessionRsp(session, "unpaired"),
	}, nil
}

func forceUnpairDesk(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if deskcommon.GetUserID(ctx) == "" {
		return notAuthenticatedRsp(), nil
	}
	if !deskcommon.IsAdmin(ctx) {
		return nil, httpx.ErrForbidden("admin role required")
	}
	deskID := chi.URLParam(r, "deskID")
	if err := schemavalidator.V().Var(deskID, "deskid"); err != nil {
		return nil, httpx.ErrInvalidDesk()
	}

	session, err := coordinator.ForceUnpair(ctx, deskID)
	if err != nil {
		return outcomeRsp(err)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   sessionRsp(session, "pairing closed"),
	}, nil
}

func bookDesk(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	userID := deskcommon.GetUserID(ctx)
	if userID == "" {
		return notAuthenticatedRsp(), nil
	}
	deskID := chi.URLParam(r, "deskID")
	if err := schemavalidator.V().Var(deskID, "deskid"); err != nil {
		return nil, httpx.ErrInvalidDesk()
	}

	req := bookingReq{}
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest("start_time and end_time are required")
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return invalidTimestampRsp("start_time"), nil
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return invalidTimestampRsp("end_time"), nil
	}

	session, bookErr := coordinator.Book(ctx, userID, deskID, start, end)
	if bookErr != nil {
		return outcomeRsp(bookErr)
	}
	log.Ctx(ctx).Info().Str("user_id", userID).Str("desk_id", deskID).Msg("booked")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   sessionRsp(session, "booked"),
	}, nil
}
