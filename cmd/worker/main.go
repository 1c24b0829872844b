package main

import (
	"context"
	"os"
	"time"

	"rankledger/internal/activities"
	"rankledger/internal/config"
	"rankledger/internal/storage"
	"rankledger/internal/util"
	"rankledger/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := util.NewLogger(os.Stderr, cfg.LogLevel)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: tlog.NewStructuredLogger(logger)})
	if err != nil {
		logger.Error("dial temporal", "err", err)
		os.Exit(1)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{MaxConcurrentActivityExecutionSize: 1})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	a, err := activities.New(cfg, store, logger)
	if err != nil {
		logger.Error("configure activities", "err", err)
		os.Exit(1)
	}
	activities.Register(w, a)

	logger.Info("rankledger worker listening", "address", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "store", cfg.Store, "source", cfg.Sources)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
