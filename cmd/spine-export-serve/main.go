// spine-export-serve - HTTP сервис предпросмотра маппингов экспорта.
//
// Usage:
//
//	spine-export-serve [--config serve.yaml] [--addr :8080]
//
// Endpoints:
//
//	POST /api/preview  спецификация + адрес базы -> таблицы предпросмотра
//	GET  /healthz
//	GET  /metrics      Prometheus
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/spine-export/pkg/source"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: built-in defaults)")
	addrOverride := flag.String("addr", "", "listen address override (e.g. :8080)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("config load failed")
	}
	if *addrOverride != "" {
		cfg.Server.Addr = *addrOverride
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      NewRouter(cfg, source.Default()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Int("max_tables", cfg.Preview.MaxTables).
			Int("max_rows", cfg.Preview.MaxRows).
			Msg("spine-export-serve started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("stopped")
}
