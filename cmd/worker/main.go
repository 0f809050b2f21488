// Package main provides the reconciliation worker entry point. It runs
// separately from the API server so mirror convergence keeps going
// through API restarts.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/base-guestbook/internal/config"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/storage"
	"github.com/base-guestbook/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithField("pollInterval", cfg.Sync.PollInterval.String()).Info("Starting reconcile worker")

	mongo, err := storage.NewMongoStore(&cfg.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongo.Close(ctx)
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongo.EnsureIndexes(indexCtx); err != nil {
		cancelIndex()
		logger.WithError(err).Fatal("Failed to create mirror store indexes")
	}
	cancelIndex()

	redis, err := storage.NewRedisCache(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	chainClient, err := ledger.NewClient(&ledger.ClientConfig{
		RPCURL:          cfg.Chain.RPCPrimary,
		RPCFallback:     cfg.Chain.RPCSecondary,
		ContractAddress: cfg.Ledger.ContractAddress,
		ChainID:         cfg.Chain.ID.NumericChainID(),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create ledger client")
	}
	defer chainClient.Close()

	messageRepo := storage.NewMessageRepository(mongo)
	userRepo := storage.NewUserRepository(mongo)
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	w, err := worker.NewReconcileWorker(&worker.ReconcileWorkerConfig{
		Chain:        chainClient,
		Messages:     messageRepo,
		Users:        userRepo,
		Cache:        cacheService,
		PollInterval: cfg.Sync.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reconcile worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start reconcile worker")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reconcile worker...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Reconcile worker stop failed")
	}

	logger.Info("Reconcile worker exited")
}
