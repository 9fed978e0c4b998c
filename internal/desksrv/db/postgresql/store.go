// Package postgresql implements the session store on PostgreSQL. Each
// store instance wraps one dedicated connection checked out for the
// lifetime of a request, which makes session-level advisory locks safe to
// use for per-desk serialization.
package postgresql

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/db/dberror"
	"github.com/deskwise/deskwise/internal/desksrv/db/dbmanager"
)

// SessionStore is a PostgreSQL-backed session store bound to a single
// connection.
type SessionStore struct {
	conn dbmanager.SessionConn
}

// NewStore wraps a checked-out connection in a session store.
func NewStore(conn dbmanager.SessionConn) *SessionStore {
	return &SessionStore{conn: conn}
}

// Close returns the underlying connection to the pool. Any advisory locks
// still held on the connection are released by the server when the
// connection is reset.
func (s *SessionStore) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// Ping verifies the connection is still usable.
func (s *SessionStore) Ping(ctx context.Context) apperrors.Error {
	if err := s.conn.Conn().PingContext(ctx); err != nil {
		return dberror.ErrDatabase.Msg("ping failed").Err(err)
	}
	return nil
}

// WithDeskLock serializes fn against all other desk operations on the same
// desk. The advisory lock is keyed on the desk id and held on this
// request's dedicated connection, so it is released even if fn panics and
// the connection is returned.
func (s *SessionStore) WithDeskLock(ctx context.Context, deskID string, fn func(ctx context.Context) apperrors.Error) apperrors.Error {
	_, err := s.conn.Conn().ExecContext(ctx, `SELECT pg_advisory_lock(hashtext($1))`, deskID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("desk_id", deskID).Msg("failed to acquire desk lock")
		return dberror.ErrDatabase.Msg("failed to acquire desk lock").Err(err)
	}
	defer func() {
		if _, err := s.conn.Conn().ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, deskID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("desk_id", deskID).Msg("failed to release desk lock")
		}
	}()
	return fn(ctx)
}
