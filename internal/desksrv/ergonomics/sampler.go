package ergonomics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/db"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
	"github.com/deskwise/deskwise/internal/desksrv/telemetry"
)

// Sampler appends height samples to session logs, pulling from the
// telemetry source at most once per tick per session.
type Sampler struct {
	source          telemetry.Source
	tickSeconds     float64
	defaultHeightMM int
}

// NewSampler builds a sampler over the given telemetry source using the
// configured tick and fallback height.
func NewSampler(source telemetry.Source) *Sampler {
	return &Sampler{
		source:          source,
		tickSeconds:     config.Config().Ergonomics.SampleTickSeconds,
		defaultHeightMM: config.Config().Telemetry.DefaultHeightMM,
	}
}

// Sample records the session's current height at now. Elapsed time is
// clamped to the session's bounds, so closed and booking sessions sampled
// after their end accrue nothing new. A telemetry failure falls back to
// the session's last known height, then the configured default; it never
// fails the caller. Within one tick of the last sample the call is a
// no-op, which makes sampling idempotent and safe on every metrics
// request. When a sample is recorded it is also appended to the session
// argument, keeping it consistent with the store.
func (s *Sampler) Sample(ctx context.Context, session *models.Session, now time.Time) apperrors.Error {
	store := db.GetStore(ctx)
	if store == nil {
		return apperrors.New("no session store")
	}

	elapsed := session.EffectiveElapsed(now)
	if last := session.LastSample(); last != nil && elapsed-last.OffsetSeconds < s.tickSeconds {
		return nil
	}

	heightMM := s.defaultHeightMM
	state, err := s.source.GetState(ctx, session.DeskID)
	switch {
	case err == nil:
		heightMM = state.PositionMM
	case session.LastSample() != nil:
		heightMM = session.LastSample().HeightMM
		log.Ctx(ctx).Warn().Err(err).Str("desk_id", session.DeskID).Msg("telemetry read failed, using last known height")
	default:
		log.Ctx(ctx).Warn().Err(err).Str("desk_id", session.DeskID).Msg("telemetry read failed, using default height")
	}

	sample := models.HeightSample{OffsetSeconds: elapsed, HeightMM: heightMM}
	appended, storeErr := store.AppendSample(ctx, session.SessionID, sample, s.tickSeconds)
	if storeErr != nil {
		return storeErr
	}
	if appended {
		session.HeightHistory = append(session.HeightHistory, sample)
	}
	return nil
}
