// cmd/libradesk/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libradesk/internal/api"
	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/config"
	"libradesk/internal/ids"
	"libradesk/internal/logging"
	"libradesk/internal/membership"
	"libradesk/internal/store"
	"libradesk/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("libradesk stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	kv, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	st := store.New(kv,
		store.WithIDGenerator(ids.NewTimeRandom(cfg.IDPrefix)),
		store.WithLogger(logger),
	)
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing storage failed", "error", err)
		}
	}()
	if err := st.Load(ctx); err != nil {
		return err
	}

	loans, err := circulation.NewService(st, logger, nil)
	if err != nil {
		return err
	}
	router := api.NewRouter(api.Services{
		Users: membership.NewService(st, logger),
		Books: catalog.NewService(st, logger),
		Loans: loans,
	}, api.Options{
		MutationsPerMinute: cfg.MutationsPerMinute,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting libradesk", "port", cfg.Port, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
