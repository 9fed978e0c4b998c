package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/common/uuid"
	"github.com/deskwise/deskwise/internal/desksrv/db/dberror"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
)

const sessionColumns = `session_id, kind, user_id, desk_id, start_time, end_time, height_history, created_at, updated_at`

// CreatePairing inserts an open pairing. The partial unique indexes on
// (user_id) and (desk_id) for open pairings back up the exclusivity
// invariants the coordinator enforces under the desk lock.
func (s *SessionStore) CreatePairing(ctx context.Context, session *models.Session) apperrors.Error {
	if session.Kind != models.SessionKindPairing {
		return dberror.ErrInvalidInput.Msg("session is not a pairing")
	}
	return s.insertSession(ctx, session)
}

// CreateBooking inserts a booking with both bounds set.
func (s *SessionStore) CreateBooking(ctx context.Context, session *models.Session) apperrors.Error {
	if session.Kind != models.SessionKindBooking || session.EndTime == nil {
		return dberror.ErrInvalidInput.Msg("booking requires both time bounds")
	}
	return s.insertSession(ctx, session)
}

func (s *SessionStore) insertSession(ctx context.Context, session *models.Session) apperrors.Error {
	if session.SessionID == uuid.Nil {
		session.SessionID = uuid.New()
	}
	if session.HeightHistory == nil {
		session.HeightHistory = []models.HeightSample{}
	}
	history, err := json.Marshal(session.HeightHistory)
	if err != nil {
		return dberror.ErrInvalidInput.Msg("failed to serialize height history").Err(err)
	}

	query := `
		INSERT INTO sessions (session_id, kind, user_id, desk_id, start_time, end_time, height_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err = s.conn.Conn().QueryRowContext(ctx, query,
		session.SessionID, session.Kind, session.UserID, session.DeskID,
		session.StartTime, session.EndTime, history,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Ctx(ctx).Error().Str("desk_id", session.DeskID).Msg("conflicting open session")
			return dberror.ErrAlreadyExists.Msg("conflicting open session").Err(err)
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to insert session")
		return dberror.ErrDatabase.Msg("failed to insert session").Err(err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique_violation from the
// pgx driver, which surfaces server errors as *pgconn.PgError.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindOpenPairingByUser returns the user's open pairing, or ErrNotFound.
func (s *SessionStore) FindOpenPairingByUser(ctx context.Context, userID string) (*models.Session, apperrors.Error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE kind = 'pairing' AND user_id = $1 AND end_time IS NULL`
	return s.querySession(ctx, query, userID)
}

// FindOpenPairingByDesk returns the desk's open pairing, or ErrNotFound.
func (s *SessionStore) FindOpenPairingByDesk(ctx context.Context, deskID string) (*models.Session, apperrors.Error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE kind = 'pairing' AND desk_id = $1 AND end_time IS NULL`
	return s.querySession(ctx, query, deskID)
}

// ClosePairing sets the end time on an open pairing.
func (s *SessionStore) ClosePairing(ctx context.Context, sessionID uuid.UUID, endTime time.Time) apperrors.Error {
	query := `
		UPDATE sessions
		SET end_time = $2, updated_at = now()
		WHERE session_id = $1 AND kind = 'pairing' AND end_time IS NULL`
	result, err := s.conn.Conn().ExecContext(ctx, query, sessionID, endTime)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to close pairing")
		return dberror.ErrDatabase.Msg("failed to close pairing").Err(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return dberror.ErrNotFound.Msg("no open pairing")
	}
	return nil
}

// FindOverlappingBooking returns a booking on the desk whose half-open
// window [start, end) intersects the given one, or ErrNotFound. Adjacent
// windows do not overlap.
func (s *SessionStore) FindOverlappingBooking(ctx context.Context, deskID string, start, end time.Time) (*models.Session, apperrors.Error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE kind = 'booking' AND desk_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
		LIMIT 1`
	return s.querySession(ctx, query, deskID, start, end)
}

// FindLiveBooking returns the booking covering the given instant on the
// desk, or ErrNotFound.
func (s *SessionStore) FindLiveBooking(ctx context.Context, deskID string, at time.Time) (*models.Session, apperrors.Error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE kind = 'booking' AND desk_id = $1 AND start_time <= $2 AND end_time > $2
		LIMIT 1`
	return s.querySession(ctx, query, deskID, at)
}

// GetSession fetches a session by id.
func (s *SessionStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, apperrors.Error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE session_id = $1`
	return s.querySession(ctx, query, sessionID)
}

// AppendSample appends the sample to the session's height log in a single
// guarded update. The guard enforces the sampling tick on the server, so
// concurrent pollers of the same session record at most one sample per
// tick and never lose each other's appends.
func (s *SessionStore) AppendSample(ctx context.Context, sessionID uuid.UUID, sample models.HeightSample, tickSeconds float64) (bool, apperrors.Error) {
	entry, err := json.Marshal(sample)
	if err != nil {
		return false, dberror.ErrInvalidInput.Msg("failed to serialize sample").Err(err)
	}
	query := `
		UPDATE sessions
		SET height_history = height_history || $2::jsonb, updated_at = now()
		WHERE session_id = $1
		  AND (jsonb_array_length(height_history) = 0
		       OR $3 - ((height_history -> -1) ->> 'offset_seconds')::float8 >= $4)`
	result, err := s.conn.Conn().ExecContext(ctx, query, sessionID, entry, sample.OffsetSeconds, tickSeconds)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to append height sample")
		return false, dberror.ErrDatabase.Msg("failed to append height sample").Err(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListActiveSessions returns the user's open pairings that started within
// the reporting window, plus any bookings live at now, ordered by start
// time.
func (s *SessionStore) ListActiveSessions(ctx context.Context, userID string, windowStart, now time.Time) ([]*models.Session, apperrors.Error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		  AND ((kind = 'pairing' AND end_time IS NULL AND start_time >= $2)
		       OR (kind = 'booking' AND start_time <= $3 AND end_time > $3))
		ORDER BY start_time`
	rows, err := s.conn.Conn().QueryContext(ctx, query, userID, windowStart, now)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list active sessions")
		return nil, dberror.ErrDatabase.Msg("failed to list active sessions").Err(err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		session, scanErr := scanSession(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to read sessions").Err(err)
	}
	return sessions, nil
}

func (s *SessionStore) querySession(ctx context.Context, query string, args ...any) (*models.Session, apperrors.Error) {
	row := s.conn.Conn().QueryRowContext(ctx, query, args...)
	session, err := scanSession(row.Scan)
	if err != nil {
		if !errors.Is(err, dberror.ErrNotFound) {
			log.Ctx(ctx).Error().Err(err).Msg("failed to query session")
		}
		return nil, err
	}
	return session, nil
}

func scanSession(scan func(dest ...any) error) (*models.Session, apperrors.Error) {
	session := &models.Session{}
	var history pgtype.JSONB
	err := scan(
		&session.SessionID, &session.Kind, &session.UserID, &session.DeskID,
		&session.StartTime, &session.EndTime, &history,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound
		}
		return nil, dberror.ErrDatabase.Msg("failed to scan session").Err(err)
	}
	if err := json.Unmarshal(history.Bytes, &session.HeightHistory); err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to decode height history").Err(err)
	}
	return session, nil
}
