package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/bullseye/assets"
	"github.com/robalobadob/bullseye/internal/config"
	"github.com/robalobadob/bullseye/internal/db"
	"github.com/robalobadob/bullseye/internal/httpserver"
	"github.com/robalobadob/bullseye/internal/randomapi"
	"github.com/robalobadob/bullseye/internal/store"
)

const (
	sessionIdle  = 2 * time.Hour
	sweepEvery   = 10 * time.Minute
	roundTimeout = 20 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg)

	fallback, _ := cfg.FallbackPolicy() // validated by config.Load

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer conn.Close()
	if _, err := db.Migrate(conn, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	client := randomapi.New(
		randomapi.WithBaseURL(cfg.RandomAPI.URL),
		randomapi.WithTimeout(cfg.RandomAPI.Timeout),
		randomapi.WithAttempts(cfg.RandomAPI.Attempts),
		randomapi.WithBackoff(cfg.RandomAPI.Backoff),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := store.NewMemoryStore()
	go sweepSessions(ctx, sessions)

	srv := httpserver.New(sessions, conn, client, httpserver.Config{
		Fallback:       fallback,
		ClientOrigin:   cfg.ClientOrigin,
		Production:     cfg.Production(),
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenTTL:       time.Duration(cfg.Auth.ExpiresDays) * 24 * time.Hour,
		CookieName:     cfg.Auth.CookieName,
		HandlerTimeout: roundTimeout,
	})

	log.Info().Str("port", cfg.Port).Str("randomApi", cfg.RandomAPI.URL).Str("fallback", string(fallback)).Msg("starting bullseye server")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// sweepSessions evicts sessions nobody has touched for sessionIdle.
func sweepSessions(ctx context.Context, m *store.Memory) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(sessionIdle); n > 0 {
				log.Debug().Int("evicted", n).Int("live", m.Len()).Msg("swept idle sessions")
			}
		}
	}
}
