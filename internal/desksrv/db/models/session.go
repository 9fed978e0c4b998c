// Package models defines the persisted records of the desk service.
package models

import (
	"time"

	"github.com/deskwise/deskwise/internal/common/uuid"
)

// SessionKind tags the two occupancy variants: an open-ended pairing or a
// fixed-window booking.
type SessionKind string

const (
	SessionKindPairing SessionKind = "pairing"
	SessionKindBooking SessionKind = "booking"
)

// HeightSample is one entry of a session's height log. Offsets are seconds
// from the session's start time and are strictly increasing.
type HeightSample struct {
	OffsetSeconds float64 `json:"offset_seconds"`
	HeightMM      int     `json:"height_mm"`
}

// Session represents one occupancy interval of one user on one desk.
// Pairings have a nil EndTime while active; bookings carry both bounds
// from creation and expire naturally.
type Session struct {
	SessionID     uuid.UUID      `db:"session_id"`
	Kind          SessionKind    `db:"kind"`
	UserID        string         `db:"user_id"`
	DeskID        string         `db:"desk_id"`
	StartTime     time.Time      `db:"start_time"`
	EndTime       *time.Time     `db:"end_time"`
	HeightHistory []HeightSample `db:"height_history"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// IsOpen reports whether the session is an open pairing.
func (s *Session) IsOpen() bool {
	return s.Kind == SessionKindPairing && s.EndTime == nil
}

// IsLiveAt reports whether the session covers the given instant. Bookings
// use a half-open [start, end) window.
func (s *Session) IsLiveAt(now time.Time) bool {
	if now.Before(s.StartTime) {
		return false
	}
	if s.EndTime == nil {
		return true
	}
	return now.Before(*s.EndTime)
}

// EffectiveElapsed returns the seconds of the session elapsed at now,
// clamped to the session's fixed bounds for closed and booking sessions.
func (s *Session) EffectiveElapsed(now time.Time) float64 {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed < 0 {
		return 0
	}
	if s.EndTime != nil {
		if max := s.EndTime.Sub(s.StartTime).Seconds(); elapsed > max {
			return max
		}
	}
	return elapsed
}

// LastSample returns the most recent height sample, or nil if the log is
// empty.
func (s *Session) LastSample() *HeightSample {
	if len(s.HeightHistory) == 0 {
		return nil
	}
	return &s.HeightHistory[len(s.HeightHistory)-1]
}
