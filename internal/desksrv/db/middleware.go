package db

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/httpx"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/db/memstore"
	"github.com/deskwise/deskwise/internal/desksrv/db/postgresql"
)

// StoreMiddleware attaches a session store to the request context. For the
// postgres driver a dedicated connection is checked out for the lifetime
// of the request, the way advisory locks require; for the memory driver
// the shared in-process store is used.
func StoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if config.Config().DB.Driver == "memory" {
			ctx = WithStore(ctx, memstore.Default())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		conn, err := Conn(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
			httpx.ErrUnableToServeRequest().Send(w)
			return
		}
		store := postgresql.NewStore(conn)
		defer store.Close(ctx)

		ctx = WithStore(ctx, store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
