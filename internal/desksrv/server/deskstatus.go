package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/httpx"
	"github.com/deskwise/deskwise/internal/desksrv/db"
	"github.com/deskwise/deskwise/internal/desksrv/db/dberror"
	"github.com/deskwise/deskwise/internal/desksrv/schemavalidator"
	"github.com/deskwise/deskwise/internal/desksrv/telemetry"
)

type deskStatusRsp struct {
	Success    bool   `json:"success"`
	DeskID     string `json:"desk_id"`
	Paired     bool   `json:"paired"`
	PairedUser string `json:"paired_user,omitempty"`
	PositionMM int    `json:"position_mm,omitempty"`
	SpeedMMS   int    `json:"speed_mms,omitempty"`
	Status     string `json:"status,omitempty"`
	IsMoving   bool   `json:"is_moving"`
	Telemetry  string `json:"telemetry"`
}

// getDeskStatus reports the desk's pairing state plus its live telemetry.
// An unreachable controller degrades the telemetry part of the response
// rather than failing the request.
func (s *DeskServer) getDeskStatus(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	deskID := chi.URLParam(r, "deskID")
	if err := schemavalidator.V().Var(deskID, "deskid"); err != nil {
		return nil, httpx.ErrInvalidDesk()
	}

	store := db.GetStore(ctx)
	if store == nil {
		return nil, httpx.ErrUnableToServeRequest()
	}

	rsp := &deskStatusRsp{Success: true, DeskID: deskID}

	pairing, err := store.FindOpenPairingByDesk(ctx, deskID)
	if err != nil && !errors.Is(err, dberror.ErrNotFound) {
		return nil, err
	}
	if pairing != nil {
		rsp.Paired = true
		rsp.PairedUser = pairing.UserID
	}

	state, terr := s.source.GetState(ctx, deskID)
	switch {
	case terr == nil:
		rsp.Telemetry = "ok"
		rsp.PositionMM = state.PositionMM
		rsp.SpeedMMS = state.SpeedMMS
		rsp.Status = state.Status
		rsp.IsMoving = state.IsMoving()
	case errors.Is(terr, telemetry.ErrDeskNotFound):
		return nil, httpx.ErrInvalidDesk()
	default:
		log.Ctx(ctx).Warn().Err(terr).Str("desk_id", deskID).Msg("telemetry unavailable for status")
		rsp.Telemetry = "unavailable"
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}
