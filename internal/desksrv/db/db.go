// Package db defines the session store contract of the desk service and
// carries a store handle through the request context. Two implementations
// exist: a PostgreSQL store (package postgresql) and an in-process store
// (package memstore) for demo deployments and tests.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/common/uuid"
	"github.com/deskwise/deskwise/internal/desksrv/db/dbmanager"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
)

// Store is the session store contract. All mutating occupancy operations
// against a single desk must run inside WithDeskLock so the exclusivity
// invariants hold under concurrency; AppendSample must be atomic per
// session so concurrent samplers never lose a sample.
type Store interface {
	// Pairings
	CreatePairing(ctx context.Context, session *models.Session) apperrors.Error
	FindOpenPairingByUser(ctx context.Context, userID string) (*models.Session, apperrors.Error)
	FindOpenPairingByDesk(ctx context.Context, deskID string) (*models.Session, apperrors.Error)
	ClosePairing(ctx context.Context, sessionID uuid.UUID, endTime time.Time) apperrors.Error

	// Bookings
	CreateBooking(ctx context.Context, session *models.Session) apperrors.Error
	FindOverlappingBooking(ctx context.Context, deskID string, start, end time.Time) (*models.Session, apperrors.Error)
	FindLiveBooking(ctx context.Context, deskID string, at time.Time) (*models.Session, apperrors.Error)

	// Sessions
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.Session, apperrors.Error)
	// AppendSample appends the sample to the session's height log if and
	// only if the log is empty or the sample is at least tickSeconds past
	// the last recorded offset. Reports whether the sample was appended.
	AppendSample(ctx context.Context, sessionID uuid.UUID, sample models.HeightSample, tickSeconds float64) (bool, apperrors.Error)
	ListActiveSessions(ctx context.Context, userID string, windowStart, now time.Time) ([]*models.Session, apperrors.Error)

	// WithDeskLock runs fn inside a critical section serialized per desk.
	WithDeskLock(ctx context.Context, deskID string, fn func(ctx context.Context) apperrors.Error) apperrors.Error

	// Ping verifies store connectivity for readiness checks.
	Ping(ctx context.Context) apperrors.Error

	// Close releases any per-request resources held by the store handle.
	Close(ctx context.Context)
}

var pool dbmanager.SessionDb

// Init initializes the PostgreSQL connection pool. It is a no-op for the
// memory driver, which needs no pool.
func Init() {
	ctx := log.Logger.WithContext(context.Background())
	pg := dbmanager.NewSessionDb(ctx, "postgres")
	if pg == nil {
		panic("unable to create db pool")
	}
	pool = pg
}

// Conn returns a new database connection from the pool.
func Conn(ctx context.Context) (dbmanager.SessionConn, error) {
	if pool != nil {
		conn, err := pool.Conn(ctx)
		if err == nil {
			return conn, nil
		}
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return nil, fmt.Errorf("database pool not initialized")
}

type ctxStoreKeyType string

const ctxStoreKey ctxStoreKeyType = "DeskwiseSessionStore"

// WithStore attaches a store handle to the context. Request middleware and
// tests use this to inject the store implementation.
func WithStore(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, ctxStoreKey, s)
}

// GetStore returns the store handle from the context. Returns nil if no
// store is attached.
func GetStore(ctx context.Context) Store {
	if s, ok := ctx.Value(ctxStoreKey).(Store); ok {
		return s
	}
	log.Ctx(ctx).Error().Msg("unable to get session store from context")
	return nil
}
