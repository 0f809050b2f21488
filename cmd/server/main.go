// Package main provides the API server entry point for the guestbook
// service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/base-guestbook/internal/api"
	"github.com/base-guestbook/internal/config"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/service"
	"github.com/base-guestbook/internal/storage"
	"github.com/ethereum/go-ethereum/common"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"chain":   string(cfg.Chain.ID),
		"network": cfg.Chain.ID.Network(),
	}).Info("Starting guestbook server")

	// Mirror store
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

	// Chain read cache
	redis, err := storage.NewRedisCache(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Chain clients
	chainClient, err := ledger.NewClient(&ledger.ClientConfig{
		RPCURL:          cfg.Chain.RPCPrimary,
		RPCFallback:     cfg.Chain.RPCSecondary,
		ContractAddress: cfg.Ledger.ContractAddress,
		ChainID:         cfg.Chain.ID.NumericChainID(),
		PrivateKeyHex:   cfg.Chain.PrivateKey,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create ledger client")
	}
	defer chainClient.Close()

	policy := ledger.NoFee()
	var tokenGate ledger.TokenGate
	if cfg.Ledger.FeePolicy == "erc20" {
		token := common.HexToAddress(cfg.Ledger.TokenAddress)
		policy = ledger.FixedERC20Fee(token, cfg.Ledger.SigningFee)

		erc20, err := ledger.NewERC20Client(chainClient.Eth(), cfg.Ledger.TokenAddress, cfg.Chain.ID.NumericChainID(), cfg.Chain.PrivateKey)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create fee token client")
		}
		tokenGate = erc20
	}

	// Repositories and services
	userRepo := storage.NewUserRepository(mongo)
	activityRepo := storage.NewActivityRepository(mongo)
	messageRepo := storage.NewMessageRepository(mongo)
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)

	userService := service.NewUserService(userRepo, activityRepo, cfg.Chain.ID, logger)
	activityService := service.NewActivityService(activityRepo, userRepo)
	guestbookService := service.NewGuestbookService(&service.GuestbookServiceConfig{
		Chain:          chainClient,
		Token:          tokenGate,
		Policy:         policy,
		Contract:       chainClient.Address(),
		Messages:       messageRepo,
		Users:          userRepo,
		Activities:     activityRepo,
		Cache:          cacheService,
		ChainID:        cfg.Chain.ID,
		MaxContent:     cfg.Ledger.MaxContentLength,
		ConfirmTimeout: cfg.Sync.ConfirmTimeout,
		Logger:         logger,
	})
	queryService := service.NewQueryService(chainClient, messageRepo, cacheService, logger)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
		RequestsPerSecond: cfg.Limit.RequestsPerSecond,
		Burst:             cfg.Limit.Burst,
	}

	server := api.NewServer(serverConfig, userService, activityService, guestbookService, queryService, mongo, redis)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
