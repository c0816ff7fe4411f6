package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dangbaokhoa/identity-card/internal/common"
	"github.com/dangbaokhoa/identity-card/internal/extract"
	"github.com/dangbaokhoa/identity-card/internal/pipeline"
	"github.com/dangbaokhoa/identity-card/internal/qr"
	"github.com/dangbaokhoa/identity-card/internal/recognize"
	"github.com/dangbaokhoa/identity-card/internal/server"
	"github.com/dangbaokhoa/identity-card/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer startCancel()
	st, err := store.Open(startCtx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(startCtx); err != nil {
		logger.Error("failed to migrate store", "error", err)
		os.Exit(1)
	}

	pre := recognize.NewPreprocessor(cfg.Recognize.Magick, logger)
	engine := recognize.NewEngine(recognize.Config{
		Tesseract:   cfg.Recognize.Tesseract,
		Lang:        cfg.Recognize.Lang,
		TessdataDir: cfg.Recognize.TessdataDir,
		PSM:         cfg.Recognize.PSM,
		OEM:         cfg.Recognize.OEM,
	}, logger)
	parser := extract.NewParser(extract.DefaultPolicy(), logger)
	decoder := qr.NewDecoder(qr.DecoderConfig{Zbarimg: cfg.Recognize.Zbarimg}, logger)
	proc := pipeline.NewProcessor(logger, pre, engine, parser, decoder)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.New(proc, st, logger).Router(),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
