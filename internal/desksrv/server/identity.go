package server

import (
	"net/http"

	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
)

const (
	userHeader = "X-Deskwise-User"
	roleHeader = "X-Deskwise-Role"
)

// IdentityMiddleware reads the caller's identity from the gateway-set
// headers into the request context. An absent user header leaves the
// context without an identity; handlers report that as a rejected
// result, not an HTTP failure.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if userID := r.Header.Get(userHeader); userID != "" {
			ctx = deskcommon.WithUserID(ctx, userID)
		}
		if role := r.Header.Get(roleHeader); role == string(deskcommon.RoleAdmin) {
			ctx = deskcommon.WithRole(ctx, deskcommon.RoleAdmin)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
