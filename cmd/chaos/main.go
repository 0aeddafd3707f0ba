// cmd/chaos/main.go
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"libradesk/internal/chaos"
	"libradesk/internal/logging"
	"libradesk/internal/storage"
	"libradesk/internal/telemetry"
)

func main() {
	users := flag.Int("users", 5, "readers to register before the game day")
	books := flag.Int("books", 10, "books to catalog before the game day")
	pause := flag.Duration("pause", 0, "wait between experiments")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	otlpEndpoint := flag.String("otlp-endpoint", os.Getenv("LIBRADESK_OTLP_ENDPOINT"), "OTLP/HTTP collector host:port")
	flag.Parse()

	logger := logging.InitLogger(*logLevel)
	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, "libradesk-chaos", *otlpEndpoint)
	if err != nil {
		logger.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}

	code := 0
	if err := gameDay(ctx, logger, *users, *books, *pause); err != nil {
		logger.Error("chaos game day failed", "error", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}
	os.Exit(code)
}

func gameDay(ctx context.Context, logger *slog.Logger, users, books int, pause time.Duration) error {
	lib, err := chaos.NewLibrary(ctx, storage.NewMemory(0), logger)
	if err != nil {
		return err
	}
	defer lib.Store.Close()
	if err := lib.Seed(ctx, users, books); err != nil {
		return err
	}

	engine := chaos.NewEngine(logger)
	engine.RegisterExperiments(lib)

	return engine.ExecuteGameDay(ctx, chaos.GameDay{
		Name:      "Library storage game day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     pause,
	})
}
