// Package ergonomics turns a session's height log into sitting/standing
// segments and aggregates them into a composite health score. Sampling is
// pull-based: the metrics endpoint samples opportunistically, nothing
// runs on a timer.
package ergonomics

import (
	"sort"
	"time"

	"github.com/deskwise/deskwise/internal/desksrv/db/models"
)

// Posture is the inferred state of a desk user at a point in time.
type Posture int

const (
	PostureSitting Posture = iota
	PostureStanding
)

// Classify maps a desk height to a posture. Heights at the threshold
// classify as standing.
func Classify(heightMM, thresholdMM int) Posture {
	if heightMM < thresholdMM {
		return PostureSitting
	}
	return PostureStanding
}

// Analysis is the per-session result of segment reconstruction.
type Analysis struct {
	SittingSeconds  float64
	StandingSeconds float64
	Transitions     int
	LastTransition  *time.Time
}

// AnalyzeSegments reconstructs posture segments from a session's height
// log. The first segment starts at offset zero with the first sample's
// posture; each posture change closes the open segment at that sample's
// offset; the final segment runs to elapsed, so dwell time after the last
// sample is attributed to the last known posture. For any non-empty log,
// sitting plus standing seconds equals elapsed.
func AnalyzeSegments(history []models.HeightSample, elapsed float64, startTime time.Time, thresholdMM int) Analysis {
	analysis := Analysis{}
	if len(history) == 0 {
		return analysis
	}

	samples := make([]models.HeightSample, len(history))
	copy(samples, history)
	// Producers append in order; sorting keeps the result well defined if
	// one does not.
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].OffsetSeconds < samples[j].OffsetSeconds
	})

	segmentStart := 0.0
	segmentPosture := Classify(samples[0].HeightMM, thresholdMM)
	for _, sample := range samples[1:] {
		posture := Classify(sample.HeightMM, thresholdMM)
		if posture == segmentPosture {
			continue
		}
		analysis.addSegment(segmentPosture, sample.OffsetSeconds-segmentStart)
		analysis.Transitions++
		at := startTime.Add(time.Duration(sample.OffsetSeconds * float64(time.Second)))
		analysis.LastTransition = &at
		segmentStart = sample.OffsetSeconds
		segmentPosture = posture
	}
	analysis.addSegment(segmentPosture, elapsed-segmentStart)
	return analysis
}

func (a *Analysis) addSegment(posture Posture, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if posture == PostureSitting {
		a.SittingSeconds += seconds
	} else {
		a.StandingSeconds += seconds
	}
}
