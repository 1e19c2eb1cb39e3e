package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"folio/internal/infrastructure/config"
	"folio/internal/infrastructure/logger"
	"folio/internal/infrastructure/svc"
	"folio/internal/interfaces/httpapi"
	"folio/internal/scheduler"
)

func main() {
	logger.Setup()
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service initialization failed")
	}
	defer sc.Close()

	if err := sc.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("store seed failed")
	}

	if cfg.Refresh.Enabled {
		sched := scheduler.New(log.Logger)
		if err := sched.AddJob(cfg.Refresh.Schedule, scheduler.NewRefreshJob(sc.Portfolio)); err != nil {
			log.Fatal().Err(err).Msg("failed to register refresh job")
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Warn().Msg("scheduled refresh disabled by config")
	}

	srv := httpapi.New(httpapi.Config{
		Port:       cfg.Server.Port,
		AdminToken: cfg.Server.AdminToken,
		Health: httpapi.HealthStatus{
			HasStore:       true,
			HasQuoteKey:    cfg.Alpaca.Key != "",
			HasQuoteSecret: cfg.Alpaca.Secret != "",
			HasAdminToken:  cfg.Server.AdminToken != "",
		},
		Log:       log.Logger,
		Portfolio: sc.Portfolio,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	log.Info().
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Bool("scheduled_refresh", cfg.Refresh.Enabled).
		Msg("folio started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}
