// Package server assembles the deskwise HTTP service: routing,
// middleware, identity, and the wiring between the session store, the
// telemetry source, and the occupancy and ergonomics APIs.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/httpx"
	"github.com/deskwise/deskwise/internal/common/logtrace"
	"github.com/deskwise/deskwise/internal/common/middleware"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/db"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
	"github.com/deskwise/deskwise/internal/desksrv/ergonomics"
	"github.com/deskwise/deskwise/internal/desksrv/occupancy"
	"github.com/deskwise/deskwise/internal/desksrv/telemetry"
)

// DeskServer is the main HTTP server of the desk service.
type DeskServer struct {
	Router *chi.Mux
	source telemetry.Source
}

// CreateNewServer builds the server and its telemetry pipeline: an HTTP
// client on the desk controller wrapped in the refresh cache. The cache
// is the source every component reads from.
func CreateNewServer() (*DeskServer, error) {
	cfg := config.Config()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	ttl, err := cfg.Telemetry.GetRefreshInterval()
	if err != nil {
		return nil, fmt.Errorf("invalid telemetry refresh interval: %w", err)
	}

	s := &DeskServer{
		Router: chi.NewRouter(),
		source: telemetry.NewCache(telemetry.NewClient(&cfg.Telemetry), ttl),
	}
	ergonomics.Init(s.source)
	return s, nil
}

// NewServerWithSource builds a server over a caller-supplied telemetry
// source. Used by tests.
func NewServerWithSource(source telemetry.Source) *DeskServer {
	s := &DeskServer{
		Router: chi.NewRouter(),
		source: source,
	}
	ergonomics.Init(source)
	return s
}

// Source returns the telemetry source the server reads from.
func (s *DeskServer) Source() telemetry.Source {
	return s.source
}

// MountHandlers sets up middleware and all resource endpoints.
func (s *DeskServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.Router.Use(s.limitRequestBody)
	s.Router.Use(IdentityMiddleware)
	s.Router.Use(db.StoreMiddleware)
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

func (s *DeskServer) mountResourceHandlers(r chi.Router) {
	occupancy.Router(r)
	ergonomics.Router(r)
	r.Method(http.MethodGet, "/desks/{deskID}/status", httpx.WrapHttpRsp(s.getDeskStatus))
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
}

// GetVersionRsp represents the response for version information.
type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *DeskServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Deskwise Server: " + deskcommon.ServerVersion,
		ApiVersion:    deskcommon.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *DeskServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	store := db.GetStore(r.Context())
	if store == nil {
		httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "no session store",
		})
		return
	}
	if err := store.Ping(r.Context()); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("store ping failed during readiness check")
		httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "session store unreachable",
		})
		return
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (s *DeskServer) limitRequestBody(next http.Handler) http.Handler {
	limit := config.Config().MaxRequestBodySize
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > limit {
			httpx.ErrRequestTooLarge(limit).Send(w)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
func (s *DeskServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", userHeader, roleHeader},
		ExposedHeaders:   []string{"Link", "Location", "X-Deskwise-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
