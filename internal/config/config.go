// Package config provides configuration management for the guestbook service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/base-guestbook/internal/types"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Chain   ChainConfig
	Ledger  LedgerConfig
	Sync    SyncConfig
	Cache   CacheConfig
	Limit   RateLimitConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// MongoConfig holds mirror store configuration
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds chain client configuration
type ChainConfig struct {
	ID           types.ChainID
	RPCPrimary   string
	RPCSecondary string
	// PrivateKey is the hex-encoded key used by the server-side write
	// facade. Optional: read-only deployments leave it empty.
	PrivateKey string
}

// LedgerConfig holds guestbook contract configuration
type LedgerConfig struct {
	ContractAddress string
	// FeePolicy selects the contract variant: "none" for the free
	// guestbook, "erc20" for the USDC-gated one.
	FeePolicy    string
	TokenAddress string
	// SigningFee is denominated in the token's smallest unit
	// (USDC has 6 decimals, so 1000000 = 1 USDC).
	SigningFee *big.Int
	// MaxContentLength is the hard cap enforced before broadcast.
	MaxContentLength int
}

// SyncConfig holds reconciliation worker configuration
type SyncConfig struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// CacheConfig holds chain read cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	feePolicy := getEnv("LEDGER_FEE_POLICY", "erc20")
	if feePolicy != "none" && feePolicy != "erc20" {
		return nil, fmt.Errorf("invalid LEDGER_FEE_POLICY %q (must be 'none' or 'erc20')", feePolicy)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "base_guestbook"),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
		},
		Chain: ChainConfig{
			ID:           types.ChainID(getEnv("CHAIN_ID", string(types.ChainBaseSepolia))),
			RPCPrimary:   getEnv("CHAIN_RPC_PRIMARY", "https://sepolia.base.org"),
			RPCSecondary: getEnv("CHAIN_RPC_SECONDARY", ""),
			PrivateKey:   getEnv("PRIVATE_KEY", ""),
		},
		Ledger: LedgerConfig{
			ContractAddress:  getEnv("LEDGER_CONTRACT_ADDRESS", ""),
			FeePolicy:        feePolicy,
			TokenAddress:     getEnv("LEDGER_TOKEN_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			SigningFee:       getEnvAsBigInt("LEDGER_SIGNING_FEE", big.NewInt(1_000_000)),
			MaxContentLength: getEnvAsInt("LEDGER_MAX_CONTENT_LENGTH", 500),
		},
		Sync: SyncConfig{
			PollInterval:   getEnvAsDuration("SYNC_POLL_INTERVAL", 30*time.Second),
			ConfirmTimeout: getEnvAsDuration("SYNC_CONFIRM_TIMEOUT", 2*time.Minute),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 30*time.Second),
		},
		Limit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.Chain.ID.NumericChainID() == 0 {
		return nil, fmt.Errorf("unknown CHAIN_ID %q", config.Chain.ID)
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBigInt gets an environment variable as a big.Int with a default value
func getEnvAsBigInt(key string, defaultValue *big.Int) *big.Int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return defaultValue
	}
	return value
}
