// main package for the chatterbox-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/chatterbox-service/internal/config"
	"github.com/book-expert/chatterbox-service/internal/core"
	"github.com/book-expert/chatterbox-service/internal/engine"
	"github.com/book-expert/chatterbox-service/internal/format"
	"github.com/book-expert/chatterbox-service/internal/objectstore"
	"github.com/book-expert/chatterbox-service/internal/queue"
	"github.com/book-expert/chatterbox-service/internal/server"
	"github.com/book-expert/chatterbox-service/internal/text"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownGrace     = 10 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "chatterbox-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// connectArchive connects the optional NATS-backed audio archive. An empty
// NATS URL disables the archive; the service runs without it.
func connectArchive(cfg *config.Config, log *logger.Logger) (core.ObjectStore, *nats.Conn, error) {
	if cfg.NATS.URL == "" {
		log.Info("NATS URL not configured; audio archive disabled.")

		return nil, nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	archive, err := objectstore.New(natsConnection, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to initialize audio archive: %w", err)
	}

	log.Info("Audio archive enabled on bucket '%s'.", cfg.NATS.AudioObjectStoreBucket)

	return archive, natsConnection, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	synthesizer := engine.NewClient(
		cfg.Engine.BaseURL,
		time.Duration(cfg.Engine.TimeoutSeconds)*time.Second,
	)

	archive, natsConnection, err := connectArchive(cfg, log)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	estimator := text.NewEstimator(cfg.Chunking.CharsPerSecond)
	chunker := text.NewChunker(
		cfg.Chunking.ComfortableDurationSeconds,
		cfg.Chunking.HardLimitSeconds,
		estimator,
	)

	jobQueue := queue.New(synthesizer, chunker, cfg.Server.MaxQueueSize, log)
	jobQueue.Start(ctx)

	referenceAudioDir := cfg.Paths.ReferenceAudioDir
	if referenceAudioDir == "" {
		referenceAudioDir = os.TempDir()
	}

	facade := server.New(jobQueue, synthesizer, format.NewFFmpegEncoder(log), archive, server.Options{
		EngineBaseURL:     cfg.Engine.BaseURL,
		MaxTextLength:     cfg.Server.MaxTextLength,
		MaxBatchSize:      cfg.Server.MaxBatchSize,
		RequestTimeout:    time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		BatchTimeout:      time.Duration(cfg.Server.BatchTimeoutSeconds) * time.Second,
		ReferenceAudioDir: referenceAudioDir,
	}, log)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           facade.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErrs := make(chan error, 1)

	go func() {
		log.System("Chatterbox service listening on %s (engine at %s)",
			httpServer.Addr, cfg.Engine.BaseURL)

		listenErr := httpServer.ListenAndServe()
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			serveErrs <- listenErr

			return
		}

		serveErrs <- nil
	}()

	select {
	case <-ctx.Done():
		log.System("Shutdown signal received.")
	case listenErr := <-serveErrs:
		if listenErr != nil {
			return fmt.Errorf("http server failed: %w", listenErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)

	jobQueue.Close()

	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown failed: %w", shutdownErr)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
