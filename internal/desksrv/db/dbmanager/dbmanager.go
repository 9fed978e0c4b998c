package dbmanager

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

// SessionDb hands out dedicated per-request connections. Each request in
// the desk service holds exactly one connection for its lifetime, so
// session-level advisory locks taken on it are safe.
type SessionDb interface {
	// Conn returns a new connection to the database.
	Conn(ctx context.Context) (SessionConn, error)
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
}

// SessionConn is a single database connection checked out for one request.
type SessionConn interface {
	// Conn returns the underlying *sql.Conn. Do not close this directly.
	// Use SessionConn.Close(ctx) to return it to the pool.
	Conn() *sql.Conn
	// Close returns the connection back to the pool.
	Close(ctx context.Context)
}

// NewSessionDb returns a SessionDb for the given database type. The
// connection is not concurrency safe and must be used by a single
// goroutine; deskwise uses one connection per request and does not spawn
// further goroutines on it.
func NewSessionDb(ctx context.Context, dbtype string) SessionDb {
	switch dbtype {
	case "postgres":
		db, err := NewPostgresqlDb()
		if err != nil || db == nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to create PostgreSQL DB")
			return nil
		}
		return db
	}
	return nil
}
