package worker

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	workerContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	workerSender   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type memMessageStore struct {
	mu       sync.Mutex
	byTxHash map[string]*models.GuestbookMessage
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{byTxHash: make(map[string]*models.GuestbookMessage)}
}

func (s *memMessageStore) Record(_ context.Context, message *models.GuestbookMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byTxHash[message.TxHash]; ok {
		return false, nil
	}
	s.byTxHash[message.TxHash] = message
	return true, nil
}

func (s *memMessageStore) ExistingChainKeys(_ context.Context, chainKeys []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]bool)
	for _, m := range s.byTxHash {
		for _, k := range chainKeys {
			if m.ChainKey == k {
				existing[k] = true
			}
		}
	}
	return existing, nil
}

func (s *memMessageStore) AdoptChainKey(_ context.Context, walletAddress, content, chainKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byTxHash {
		if m.ChainKey == "" && m.WalletAddress == strings.ToLower(walletAddress) && m.Message == content {
			m.ChainKey = chainKey
			return true, nil
		}
	}
	return false, nil
}

type memUserLookup struct {
	users map[string]*models.User // by lowercase wallet
}

func (l *memUserLookup) GetByWalletAddress(_ context.Context, walletAddress string) (*models.User, error) {
	if u, ok := l.users[strings.ToLower(walletAddress)]; ok {
		return u, nil
	}
	return nil, errors.NewNotFoundError("user", walletAddress)
}

type recordingCache struct {
	mu        sync.Mutex
	refreshed int
}

func (c *recordingCache) SetChainMessages(_ context.Context, _ []ledger.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed++
	return nil
}

func newTestWorker(t *testing.T, chain *ledger.MemLedger, store *memMessageStore, users *memUserLookup) (*ReconcileWorker, *recordingCache) {
	t.Helper()

	cache := &recordingCache{}
	var userLookup UserLookup
	if users != nil {
		userLookup = users
	}
	w, err := NewReconcileWorker(&ReconcileWorkerConfig{
		Chain:        ledger.NewSession(chain, workerSender),
		Messages:     store,
		Users:        userLookup,
		Cache:        cache,
		PollInterval: 10 * time.Millisecond,
		Logger:       logging.NewLogger(logging.LevelError, logging.FormatText),
	})
	require.NoError(t, err)
	return w, cache
}

func TestRunOnceMirrorsMissingMessages(t *testing.T) {
	chain := ledger.NewMemLedger(workerContract, ledger.NoFee(), nil)
	store := newMemMessageStore()
	users := &memUserLookup{users: map[string]*models.User{
		strings.ToLower(workerSender.Hex()): {
			UserID:        "user_abc123def456",
			WalletAddress: strings.ToLower(workerSender.Hex()),
			Username:      "alice",
		},
	}}
	ctx := context.Background()

	_, err := chain.SignGuestbookFrom(ctx, workerSender, "first", "alice", "hello")
	require.NoError(t, err)
	_, err = chain.SignGuestbookFrom(ctx, workerSender, "second", "alice", "")
	require.NoError(t, err)

	w, cache := newTestWorker(t, chain, store, users)

	mirrored, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, mirrored)
	assert.Len(t, store.byTxHash, 2)
	assert.Equal(t, 1, cache.refreshed)

	for _, m := range store.byTxHash {
		assert.Equal(t, "user_abc123def456", m.UserID, "known sender resolves to its mirror user")
		assert.NotEmpty(t, m.ChainKey)
		assert.True(t, strings.HasPrefix(m.TxHash, "recon:"))
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	chain := ledger.NewMemLedger(workerContract, ledger.NoFee(), nil)
	store := newMemMessageStore()
	ctx := context.Background()

	_, err := chain.SignGuestbookFrom(ctx, workerSender, "gm", "alice", "")
	require.NoError(t, err)

	w, _ := newTestWorker(t, chain, store, nil)

	mirrored, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mirrored)

	mirrored, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, mirrored, "a second pass over a converged mirror is a no-op")
	assert.Len(t, store.byTxHash, 1)
}

func TestRunOnceUnknownSenderStillMirrored(t *testing.T) {
	chain := ledger.NewMemLedger(workerContract, ledger.NoFee(), nil)
	store := newMemMessageStore()
	ctx := context.Background()

	stranger := common.HexToAddress("0x5555555555555555555555555555555555555555")
	_, err := chain.SignGuestbookFrom(ctx, stranger, "drive-by", "", "")
	require.NoError(t, err)

	w, _ := newTestWorker(t, chain, store, &memUserLookup{users: map[string]*models.User{}})

	mirrored, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mirrored)

	for _, m := range store.byTxHash {
		assert.Empty(t, m.UserID)
		assert.Equal(t, strings.ToLower(stranger.Hex()), m.WalletAddress)
	}
}

func TestRunOnceAdoptsKeylessClientRecord(t *testing.T) {
	chain := ledger.NewMemLedger(workerContract, ledger.NoFee(), nil)
	store := newMemMessageStore()
	ctx := context.Background()

	txHash, err := chain.SignGuestbookFrom(ctx, workerSender, "gm from the browser", "alice", "")
	require.NoError(t, err)

	// A client confirmation mirrored before the chain read could locate
	// the message: real txHash, no chain key
	keyless := &models.GuestbookMessage{
		MessageID:     "msg_aaa111bbb222",
		WalletAddress: strings.ToLower(workerSender.Hex()),
		Message:       "gm from the browser",
		TxHash:        txHash,
		UserReactions: []string{"user_abc123def456"},
		Reactions:     models.Reactions{Heart: 1},
	}
	store.byTxHash[txHash] = keyless

	w, _ := newTestWorker(t, chain, store, nil)

	mirrored, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mirrored)

	require.Len(t, store.byTxHash, 1, "adoption must not insert a second record for the same chain message")
	assert.NotEmpty(t, keyless.ChainKey)
	assert.Equal(t, int64(1), keyless.Reactions.Heart, "reaction state stays on the adopted record")

	mirrored, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, mirrored, "an adopted record counts as mirrored on later passes")
}

func TestWorkerStartStop(t *testing.T) {
	chain := ledger.NewMemLedger(workerContract, ledger.NoFee(), nil)
	store := newMemMessageStore()
	ctx := context.Background()

	_, err := chain.SignGuestbookFrom(ctx, workerSender, "gm", "alice", "")
	require.NoError(t, err)

	w, _ := newTestWorker(t, chain, store, nil)

	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx), "double start must fail")

	// Let at least one poll tick fire
	require.Eventually(t, func() bool {
		lastRun, _, _ := w.Status()
		return !lastRun.IsZero()
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.Error(t, w.Stop(stopCtx), "double stop must fail")

	_, _, running := w.Status()
	assert.False(t, running)
	assert.Len(t, store.byTxHash, 1)
}
