package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/ubaish01/commune-backend/internal/adapters/http"
	wssignal "github.com/ubaish01/commune-backend/internal/adapters/signal"
	"github.com/ubaish01/commune-backend/internal/app"
	"github.com/ubaish01/commune-backend/internal/config"
	"github.com/ubaish01/commune-backend/internal/media"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// One media worker per process; if it cannot come up there is nothing
	// to serve and a supervisor should restart us.
	worker, err := media.NewWorker(media.WorkerConfig{
		RTCMinPort:  cfg.RTCMinPort,
		RTCMaxPort:  cfg.RTCMaxPort,
		AnnouncedIP: cfg.AnnouncedIP,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create media worker")
	}
	defer worker.Close()

	registry := app.NewSessionRegistry(worker)
	lifecycle := app.NewLifecycle(registry)
	broadcaster := app.NewBroadcaster(registry)

	ctl := wssignal.NewSignalWSController(registry, lifecycle, broadcaster)
	ctl.MediaTimeout = cfg.MediaTimeout
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Commune server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
