package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/config"
	"github.com/rl1809/order-saga/internal/logger"
	"github.com/rl1809/order-saga/internal/tracing"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file, empty for defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Service.Name,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zlog.Fatal("failed to init tracing", zap.Error(err))
	}

	a, err := newApp(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to start", zap.Error(err))
	}

	zlog.Info("starting", zap.Strings("roles", cfg.Service.Roles),
		zap.String("messaging", cfg.Messaging.Driver))

	runErr := a.run(ctx)
	if runErr != nil {
		zlog.Error("stopped with error", zap.Error(runErr))
	}

	zlog.Info("shutting down...")
	a.close()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		zlog.Warn("tracing shutdown failed", zap.Error(err))
	}

	zlog.Info("stopped")
	if runErr != nil {
		zlog.Sync()
		os.Exit(1)
	}
}
