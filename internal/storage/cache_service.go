package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/base-guestbook/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// Cache keys for the chain read cache
const (
	// CacheKeyChainMessages holds the full getAllMessages result. The
	// contract returns the entire sequence in one call, so one key
	// suffices; pagination happens after the cache.
	CacheKeyChainMessages = "chain:messages"
	// CacheKeyChainStatus holds the ledger status snapshot
	CacheKeyChainStatus = "chain:status"
)

// CacheService caches chain reads so a burst of page views costs one RPC
// round trip instead of one per request. Entries expire on TTL and are
// invalidated explicitly after a confirmed write.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// cachedMessage is the JSON shape of a chain message in the cache.
// Timestamps are stored as Unix seconds to round-trip big.Int cleanly.
type cachedMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Username  string `json:"username"`
	Tag       string `json:"tag"`
}

// SetChainMessages caches the full chain message sequence
func (c *CacheService) SetChainMessages(ctx context.Context, messages []ledger.Message) error {
	cached := make([]cachedMessage, len(messages))
	for i, m := range messages {
		var ts int64
		if m.Timestamp != nil {
			ts = m.Timestamp.Int64()
		}
		cached[i] = cachedMessage{
			Sender:    m.Sender.Hex(),
			Content:   m.Content,
			Timestamp: ts,
			Username:  m.Username,
			Tag:       m.Tag,
		}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal chain messages: %w", err)
	}
	return c.redis.Set(ctx, CacheKeyChainMessages, data, c.ttl)
}

// GetChainMessages returns the cached chain message sequence. The second
// return value reports a cache hit.
func (c *CacheService) GetChainMessages(ctx context.Context) ([]ledger.Message, bool, error) {
	data, err := c.redis.Get(ctx, CacheKeyChainMessages)
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get chain messages from cache: %w", err)
	}

	var cached []cachedMessage
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached chain messages: %w", err)
	}

	messages := make([]ledger.Message, len(cached))
	for i, m := range cached {
		messages[i] = ledger.Message{
			Sender:    common.HexToAddress(m.Sender),
			Content:   m.Content,
			Timestamp: big.NewInt(m.Timestamp),
			Username:  m.Username,
			Tag:       m.Tag,
		}
	}
	return messages, true, nil
}

// Set stores an arbitrary value under key with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a value into dest. The return value reports a cache hit.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// InvalidateChainReads drops all cached chain reads. Called after every
// confirmed write so the next read reflects the new message.
func (c *CacheService) InvalidateChainReads(ctx context.Context) error {
	return c.redis.Del(ctx, CacheKeyChainMessages, CacheKeyChainStatus)
}
