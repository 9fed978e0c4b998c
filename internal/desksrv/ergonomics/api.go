package ergonomics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/common/httpx"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/db"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
	"github.com/deskwise/deskwise/internal/desksrv/telemetry"
)

var (
	sampler    *Sampler
	calculator *Calculator
)

// Init wires the package to its telemetry source. Must be called before
// the router serves requests.
func Init(source telemetry.Source) {
	sampler = NewSampler(source)
	calculator = NewCalculator()
}

// BuildReport samples every active session of the user, analyzes each,
// and aggregates the result. A user with no active sessions gets a
// zeroed report.
func BuildReport(ctx context.Context, userID string, now time.Time) (Report, apperrors.Error) {
	store := db.GetStore(ctx)
	if store == nil {
		return Report{}, apperrors.New("no session store")
	}

	window := config.Config().Ergonomics.GetReportingWindowOrDefault()
	sessions, err := store.ListActiveSessions(ctx, userID, now.Add(-window), now)
	if err != nil {
		return Report{}, err
	}

	thresholdMM := config.Config().Ergonomics.SittingThresholdMM
	analyses := make([]Analysis, 0, len(sessions))
	for _, session := range sessions {
		if err := sampler.Sample(ctx, session, now); err != nil {
			return Report{}, err
		}
		analyses = append(analyses, AnalyzeSegments(
			session.HeightHistory,
			session.EffectiveElapsed(now),
			session.StartTime,
			thresholdMM,
		))
	}
	return calculator.Aggregate(analyses, now), nil
}

type reportRsp struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	*Report
}

func getUserReport(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	userID := deskcommon.GetUserID(ctx)
	if userID == "" {
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response: &reportRsp{
				Message: "not authenticated",
				Reason:  "not_authenticated",
			},
		}, nil
	}

	report, err := BuildReport(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Str("user_id", userID).Float64("health_score", report.HealthScore).Msg("ergonomics report")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &reportRsp{Success: true, Report: &report},
	}, nil
}

// Router mounts the ergonomics endpoints on the given router.
func Router(r chi.Router) {
	r.Method(http.MethodGet, "/users/self/ergonomics", httpx.WrapHttpRsp(getUserReport))
}
