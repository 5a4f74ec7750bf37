package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pumpwatch/internal/alert"
	"pumpwatch/internal/cfg"
	"pumpwatch/internal/dashboard"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/metrics"
	"pumpwatch/internal/ml"
	"pumpwatch/internal/scan"
	"pumpwatch/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	if err := os.MkdirAll(c.DataPath, 0o750); err != nil {
		log.Fatal().Err(err).Str("data_path", c.DataPath).Msg("data directory unavailable")
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer store.Close()

	classifier := ml.New(c.ModelPath, c.MinTrainingRows, m)

	var notifier alert.Notifier
	if c.DryRun {
		log.Info().Msg("dry run: alerts will be logged, not delivered")
		notifier = alert.LogNotifier{}
	} else {
		notifier = alert.NewTelegram(c.TelegramToken, c.TelegramChatID, c.FetchTimeout)
	}

	startMetricsServer(ctx, c.MetricsPort)

	dash := dashboard.New(store, c.DashboardPort)
	dash.Start(ctx)

	source := feed.NewClient(c.FeedURL, c.FetchTimeout)
	scanner := scan.New(c, source, classifier, store, notifier, m, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner.Run(ctx)
	}()

	waitForShutdown(ctx, cancel, done)
}

// startMetricsServer exposes /metrics and /health.
func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown blocks on a termination signal, then cancels the context
// and gives the scanner a bounded window to finish in-flight work.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	cancel()

	select {
	case <-done:
		log.Info().Msg("scanner stopped cleanly")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
