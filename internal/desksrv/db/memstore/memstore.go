// Package memstore implements the session store in process memory. The
// memory driver backs demo deployments and the test suite; it enforces
// the same per-desk serialization and tick-guarded sampling as the
// PostgreSQL store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/common/uuid"
	"github.com/deskwise/deskwise/internal/desksrv/db/dberror"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
)

// SessionStore holds all sessions in memory. Safe for concurrent use.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*models.Session
	deskLocks sync.Map // desk id -> *sync.Mutex
}

// New returns an empty in-memory session store.
func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*models.Session),
	}
}

var (
	defaultStore *SessionStore
	defaultOnce  sync.Once
)

// Default returns the process-wide store shared by all requests of a
// memory-driver deployment.
func Default() *SessionStore {
	defaultOnce.Do(func() {
		defaultStore = New()
	})
	return defaultStore
}

// WithDeskLock serializes fn against all other operations on the same
// desk.
func (s *SessionStore) WithDeskLock(ctx context.Context, deskID string, fn func(ctx context.Context) apperrors.Error) apperrors.Error {
	lock, _ := s.deskLocks.LoadOrStore(deskID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

// CreatePairing stores an open pairing.
func (s *SessionStore) CreatePairing(ctx context.Context, session *models.Session) apperrors.Error {
	if session.Kind != models.SessionKindPairing {
		return dberror.ErrInvalidInput.Msg("session is not a pairing")
	}
	return s.insert(session, func() apperrors.Error {
		for _, existing := range s.sessions {
			if existing.Kind != models.SessionKindPairing || !existing.IsOpen() {
				continue
			}
			if existing.UserID == session.UserID || existing.DeskID == session.DeskID {
				return dberror.ErrAlreadyExists.Msg("conflicting open session")
			}
		}
		return nil
	})
}

// CreateBooking stores a booking.
func (s *SessionStore) CreateBooking(ctx context.Context, session *models.Session) apperrors.Error {
	if session.Kind != models.SessionKindBooking || session.EndTime == nil {
		return dberror.ErrInvalidInput.Msg("booking requires both time bounds")
	}
	return s.insert(session, func() apperrors.Error { return nil })
}

func (s *SessionStore) insert(session *models.Session, check func() apperrors.Error) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := check(); err != nil {
		return err
	}
	if session.SessionID == uuid.Nil {
		session.SessionID = uuid.New()
	}
	if _, ok := s.sessions[session.SessionID]; ok {
		return dberror.ErrAlreadyExists.Msg("session already exists")
	}
	if session.HeightHistory == nil {
		session.HeightHistory = []models.HeightSample{}
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	s.sessions[session.SessionID] = copySession(session)
	return nil
}

// FindOpenPairingByUser returns the user's open pairing, or ErrNotFound.
func (s *SessionStore) FindOpenPairingByUser(ctx context.Context, userID string) (*models.Session, apperrors.Error) {
	return s.findOne(func(session *models.Session) bool {
		return session.IsOpen() && session.UserID == userID
	})
}

// FindOpenPairingByDesk returns the desk's open pairing, or ErrNotFound.
func (s *SessionStore) FindOpenPairingByDesk(ctx context.Context, deskID string) (*models.Session, apperrors.Error) {
	return s.findOne(func(session *models.Session) bool {
		return session.IsOpen() && session.DeskID == deskID
	})
}

// ClosePairing sets the end time on an open pairing.
func (s *SessionStore) ClosePairing(ctx context.Context, sessionID uuid.UUID, endTime time.Time) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || !session.IsOpen() {
		return dberror.ErrNotFound.Msg("no open pairing")
	}
	end := endTime
	session.EndTime = &end
	session.UpdatedAt = time.Now()
	return nil
}

// FindOverlappingBooking returns a booking on the desk whose half-open
// window intersects [start, end), or ErrNotFound.
func (s *SessionStore) FindOverlappingBooking(ctx context.Context, deskID string, start, end time.Time) (*models.Session, apperrors.Error) {
	return s.findOne(func(session *models.Session) bool {
		return session.Kind == models.SessionKindBooking &&
			session.DeskID == deskID &&
			session.StartTime.Before(end) &&
			session.EndTime.After(start)
	})
}

// FindLiveBooking returns the booking covering the instant on the desk,
// or ErrNotFound.
func (s *SessionStore) FindLiveBooking(ctx context.Context, deskID string, at time.Time) (*models.Session, apperrors.Error) {
	return s.findOne(func(session *models.Session) bool {
		return session.Kind == models.SessionKindBooking &&
			session.DeskID == deskID &&
			session.IsLiveAt(at)
	})
}

// GetSession fetches a session by id.
func (s *SessionStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, dberror.ErrNotFound
	}
	return copySession(session), nil
}

// AppendSample appends the sample to the session's height log if the log
// is empty or a full tick has passed since the last recorded offset.
// Reports whether the sample was appended.
func (s *SessionStore) AppendSample(ctx context.Context, sessionID uuid.UUID, sample models.HeightSample, tickSeconds float64) (bool, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if last := session.LastSample(); last != nil && sample.OffsetSeconds-last.OffsetSeconds < tickSeconds {
		return false, nil
	}
	session.HeightHistory = append(session.HeightHistory, sample)
	session.UpdatedAt = time.Now()
	return true, nil
}

// ListActiveSessions returns the user's open pairings that started within
// the reporting window, plus any bookings live at now, ordered by start
// time.
func (s *SessionStore) ListActiveSessions(ctx context.Context, userID string, windowStart, now time.Time) ([]*models.Session, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := []*models.Session{}
	for _, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		live := (session.IsOpen() && !session.StartTime.Before(windowStart)) ||
			(session.Kind == models.SessionKindBooking && session.IsLiveAt(now))
		if live {
			sessions = append(sessions, copySession(session))
		}
	}
	sortSessionsByStart(sessions)
	return sessions, nil
}

// Ping always succeeds.
func (s *SessionStore) Ping(ctx context.Context) apperrors.Error {
	return nil
}

// Close is a no-op; the store owns no per-request resources.
func (s *SessionStore) Close(ctx context.Context) {}

// Reset drops all sessions. Test helper.
func (s *SessionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[uuid.UUID]*models.Session)
}

func (s *SessionStore) findOne(match func(*models.Session) bool) (*models.Session, apperrors.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Session
	for _, session := range s.sessions {
		if !match(session) {
			continue
		}
		if found == nil || session.StartTime.Before(found.StartTime) {
			found = session
		}
	}
	if found == nil {
		return nil, dberror.ErrNotFound
	}
	return copySession(found), nil
}

func sortSessionsByStart(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
}

func copySession(session *models.Session) *models.Session {
	dup := *session
	if session.EndTime != nil {
		end := *session.EndTime
		dup.EndTime = &end
	}
	dup.HeightHistory = make([]models.HeightSample, len(session.HeightHistory))
	copy(dup.HeightHistory, session.HeightHistory)
	return &dup
}
