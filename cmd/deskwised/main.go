package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/logtrace"
	"github.com/deskwise/deskwise/internal/desksrv/config"
	"github.com/deskwise/deskwise/internal/desksrv/db"
	"github.com/deskwise/deskwise/internal/desksrv/server"
	"github.com/deskwise/deskwise/internal/desksrv/telemetry"
)

const defaultConfigFile = "/etc/deskwise/deskwised.conf"

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
}

func parseFlags() cmdoptions {
	opt := cmdoptions{}
	flag.StringVar(&opt.configFile, "config", defaultConfigFile, "path to the configuration file")
	flag.Parse()
	return opt
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	// Local overrides for development; absence is not an error.
	_ = godotenv.Load()

	opt := parseFlags()

	slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	if config.Config().ServerPort == "" {
		return fmt.Errorf("server port not defined")
	}

	if config.Config().DB.Driver != "memory" {
		db.Init()
	}

	s, err := server.CreateNewServer()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	startTelemetryRefresher(ctx, s.Source())

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if config.Config().SupportTLS {
			slog.Info().Str("port", config.Config().ServerPort).Msg("server started with TLS")
			serverErrors <- srv.ListenAndServeTLS(config.Config().TLSCertFile, config.Config().TLSKeyFile)
		} else {
			slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
			serverErrors <- srv.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		// Give outstanding requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	slog.Info().Msg("server stopped")
	return nil
}

// startTelemetryRefresher keeps cached desk telemetry warm between
// requests. Disabled when no refresh interval is configured.
func startTelemetryRefresher(ctx context.Context, source telemetry.Source) {
	cache, ok := source.(*telemetry.Cache)
	if !ok {
		return
	}
	interval, err := config.Config().Telemetry.GetRefreshInterval()
	if err != nil || interval <= 0 {
		return
	}
	go cache.StartRefresher(ctx, interval)
}
