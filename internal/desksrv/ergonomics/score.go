package ergonomics

import (
	"math"
	"time"

	"github.com/deskwise/deskwise/internal/desksrv/config"
)

const (
	balanceWeight  = 0.6
	activityWeight = 0.4
)

// Report is the per-user metrics summary for one reporting window.
// Durations are reported minutes, scaled from raw seconds by the
// configured time-scale factor.
type Report struct {
	SittingMinutes           float64  `json:"sitting_minutes"`
	StandingMinutes          float64  `json:"standing_minutes"`
	TotalMinutes             float64  `json:"total_minutes"`
	SittingPct               float64  `json:"sitting_pct"`
	StandingPct              float64  `json:"standing_pct"`
	Transitions              int      `json:"transitions"`
	ChangesPerHour           float64  `json:"changes_per_hour"`
	LastTransitionMinutesAgo *float64 `json:"last_transition_minutes_ago"`
	HealthScore              float64  `json:"health_score"`
}

// Calculator aggregates per-session analyses into a report. All scoring
// parameters come from configuration.
type Calculator struct {
	SecondsToReportedMinutes float64
	TargetSittingPct         float64
	TargetStandingPct        float64
	IdealChangesPerHour      float64
}

// NewCalculator builds a calculator from the service configuration.
func NewCalculator() *Calculator {
	e := &config.Config().Ergonomics
	return &Calculator{
		SecondsToReportedMinutes: e.SecondsToReportedMinutes,
		TargetSittingPct:         e.TargetSittingPct,
		TargetStandingPct:        e.TargetStandingPct,
		IdealChangesPerHour:      e.IdealChangesPerHour,
	}
}

// Aggregate sums the analyses and derives percentages, activity, and the
// composite health score. With no recorded time it returns a zeroed
// report; that is the expected no-session outcome, not an error.
func (c *Calculator) Aggregate(analyses []Analysis, now time.Time) Report {
	report := Report{}

	var sittingSeconds, standingSeconds float64
	var lastTransition *time.Time
	for _, analysis := range analyses {
		sittingSeconds += analysis.SittingSeconds
		standingSeconds += analysis.StandingSeconds
		report.Transitions += analysis.Transitions
		if analysis.LastTransition != nil &&
			(lastTransition == nil || analysis.LastTransition.After(*lastTransition)) {
			lastTransition = analysis.LastTransition
		}
	}

	report.SittingMinutes = sittingSeconds * c.SecondsToReportedMinutes
	report.StandingMinutes = standingSeconds * c.SecondsToReportedMinutes
	report.TotalMinutes = report.SittingMinutes + report.StandingMinutes
	if report.TotalMinutes == 0 {
		return report
	}

	report.SittingPct = math.Round(report.SittingMinutes / report.TotalMinutes * 100)
	report.StandingPct = math.Round(report.StandingMinutes / report.TotalMinutes * 100)

	balanceScore := 100 - (math.Abs(report.SittingPct-c.TargetSittingPct)+
		math.Abs(report.StandingPct-c.TargetStandingPct))/2

	report.ChangesPerHour = float64(report.Transitions) / (report.TotalMinutes / 60)
	activityScore := math.Min(100, report.ChangesPerHour/c.IdealChangesPerHour*100)

	report.HealthScore = clampScore(math.Round(balanceWeight*balanceScore + activityWeight*activityScore))

	if lastTransition != nil {
		minutesAgo := now.Sub(*lastTransition).Minutes()
		report.LastTransitionMinutesAgo = &minutesAgo
	}
	return report
}

func clampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}
