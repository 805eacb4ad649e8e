// Package main runs the background tally audit worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pollbox/backend/config"
	"github.com/pollbox/backend/internal/worker"
	"github.com/pollbox/backend/pkg/database"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	interval := time.Duration(cfg.Audit.IntervalMinutes) * time.Minute
	auditor := worker.NewTallyAuditor(pool, interval, cfg.Audit.Repair, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go auditor.Run(workerCtx)
	logger.Info("tally auditor started",
		zap.Duration("interval", interval),
		zap.Bool("repair", cfg.Audit.Repair),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
