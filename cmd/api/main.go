package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/api"
	"collection-qa-go/internal/config"
	"collection-qa-go/internal/extractor"
	"collection-qa-go/internal/logger"
	"collection-qa-go/internal/processor"
	"collection-qa-go/internal/storage"
	"collection-qa-go/internal/transcription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	log.WithField("service", "collection-qa-go").Info("starting service")

	store, err := storage.Open(cfg.DBPath, cfg.Scoring.PassThreshold)
	if err != nil {
		log.WithError(err).Fatal("failed to open analysis store")
	}
	defer store.Close()
	log.WithField("db_path", cfg.DBPath).Info("analysis store ready")

	engine, err := aggregator.New(aggregator.Config{Weights: cfg.Scoring.Weights, PassThreshold: cfg.Scoring.PassThreshold})
	if err != nil {
		log.WithError(err).Fatal("invalid scoring config")
	}
	svc, info, err := extractor.New(cfg.LLM, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build extraction service")
	}
	log.WithField("provider", info.Provider).WithField("model", info.Model).Info("extraction service ready")

	p := processor.New(processor.Options{
		Service:     svc,
		Engine:      engine,
		Store:       store,
		Transcriber: transcription.New(cfg.Transcription, log),
		ModelInfo:   info,
		Logger:      log,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.New(p, store, log).Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("server stopped")
}
