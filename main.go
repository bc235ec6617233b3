package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gible/internal/api"
	"gible/internal/config"
	"gible/internal/logging"
	"gible/internal/middleware"
	"gible/internal/repo"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the server config (default $GIBLE_CONFIG or gible.json)")
	flag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	r, err := repo.Open(cfg.Repository.Path, repo.Options{Logger: logger.Logger})
	if err != nil {
		logger.Fatal("failed to open repository", zap.String("path", cfg.Repository.Path), zap.Error(err))
	}
	defer r.Close()

	mux := http.NewServeMux()
	api.NewRepoHandler(r, logger).Register(mux)

	handler := middleware.Chain(
		mux,
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("address", addr), zap.String("repository", r.Root()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
