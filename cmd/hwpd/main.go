package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/internal/app"
	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/ingest"
	"github.com/joseph-ayodele/hwp-analyzer/internal/repository"
	"github.com/joseph-ayodele/hwp-analyzer/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel, true)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := app.Documents(cfg, logger)
	if err != nil {
		logger.Error("document handler unavailable", "error", err)
		os.Exit(1)
	}

	uploads, err := ingest.NewUploadStore(filepath.Join(cfg.Document.WorkDir, "hwp-uploads"), cfg.Server.MaxUploadBytes, logger)
	if err != nil {
		logger.Error("failed to create upload store", "error", err)
		os.Exit(1)
	}

	deps := server.Deps{Documents: docs, Uploads: uploads}

	an, err := app.NewAnalysis(ctx, cfg, logger)
	switch {
	case errors.Is(err, app.ErrNoProvider):
		logger.Warn("analysis endpoints disabled", "provider", cfg.LLM.Provider, "reason", err)
	case err != nil:
		logger.Error("analysis endpoints disabled", "provider", cfg.LLM.Provider, "error", err)
	default:
		deps.Analyzer = an.Service
		defer an.Close()
	}

	var db *repository.DB
	if db, deps.History, err = app.History(ctx, cfg, logger); err != nil {
		logger.Warn("analysis history disabled", "driver", cfg.History.Driver, "error", err)
		deps.History = nil
	} else {
		defer db.Close(logger)
	}

	srv := server.New(deps, server.Config{
		MaxUploadBytes:        cfg.Server.MaxUploadBytes,
		MaxConcurrentRequests: cfg.Server.MaxConcurrentRequests,
		RequestTimeout:        cfg.Server.RequestTimeout,
		RateLimitPerMinute:    cfg.Server.RateLimitPerMinute,
		RateLimitBurst:        cfg.Server.RateLimitBurst,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	health := server.NewHealthServer(deps, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		if err := health.Serve(lis); err != nil {
			logger.Error("grpc serve error", "error", err)
		}
	}()

	go func() {
		logger.Info("hwpd listening", "addr", cfg.Server.HTTPAddr, "version", server.Version,
			"mode", docs.Capability().Mode, "degraded", docs.Capability().Degraded)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	j := &janitor{
		documents: docs,
		limiters:  srv,
		uploads:   uploads,
		retention: uploadRetention,
		health:    health,
		logger:    logger,
	}
	if an != nil {
		j.analysis = an.Cached
	}
	if db != nil {
		j.history = db
	}
	go j.run(ctx, time.Minute)

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	health.Stop()
	logger.Info("stopped")
}
