package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"scriptcheck/internal/broker"
	"scriptcheck/internal/config"
	"scriptcheck/internal/daemon"
	"scriptcheck/internal/ledger"
	"scriptcheck/internal/logging"
	"scriptcheck/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := ledger.NewMongoStore(ctx, cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return
	}
	defer store.Close(context.Background()) //nolint:errcheck

	objects, err := storage.NewMinioStore(ctx, cfg)
	if err != nil {
		logger.Error("open object storage", logging.Error(err))
		return
	}

	queue, err := broker.New(cfg, logger)
	if err != nil {
		logger.Error("connect broker", logging.Error(err))
		return
	}
	defer queue.Close() //nolint:errcheck

	stages, err := buildStages(cfg, store, objects, queue, logger)
	if err != nil {
		logger.Error("assemble stages", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, queue, stages, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("scriptcheckd shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		logger.Warn("daemon stop", logging.Error(err))
	}
}
