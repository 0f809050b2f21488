package storage

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/base-guestbook/internal/config"
	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against a live MongoDB when MONGO_TEST_URI is set,
// e.g. MONGO_TEST_URI=mongodb://localhost:27017. Each test gets its own
// database, dropped afterwards.
func integrationStore(t *testing.T) *MongoStore {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("set MONGO_TEST_URI to run mirror store integration tests")
	}

	store, err := NewMongoStore(&config.MongoConfig{URI: uri, Database: "guestbook_" + NewID("it")})
	require.NoError(t, err)

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	require.NoError(t, store.EnsureIndexes(indexCtx))
	cancel()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Database().Drop(ctx)
		_ = store.Close(ctx)
	})

	return store
}

const integrationWallet = "0x3333333333333333333333333333333333333333"

func TestMessageRecordReplay(t *testing.T) {
	store := integrationStore(t)
	repo := NewMessageRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	first := NewMessageRecord("user_abc123def456", integrationWallet, "alice", "gm", "", "0xdeadbeef", integrationWallet+":1:0", now)

	created, err := repo.Record(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	// A replayed confirmation builds a fresh record with a new messageId
	// but the same txHash
	replay := NewMessageRecord("user_abc123def456", integrationWallet, "alice", "gm", "", "0xdeadbeef", integrationWallet+":1:0", now)
	created, err = repo.Record(ctx, replay)
	require.NoError(t, err)
	assert.False(t, created, "same txHash must not create a second record")

	messages, pagination, err := repo.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pagination.Total)
	require.Len(t, messages, 1)
	assert.Equal(t, first.MessageID, messages[0].MessageID, "the first writer wins")
}

func TestAddReactionConcurrentDoubleTap(t *testing.T) {
	store := integrationStore(t)
	repo := NewMessageRepository(store)
	ctx := context.Background()

	record := NewMessageRecord("user_abc123def456", integrationWallet, "alice", "gm", "", "0xfeedface", integrationWallet+":1:0", time.Now().UTC())
	_, err := repo.Record(ctx, record)
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddReaction(ctx, record.MessageID, "user_111222333444", types.ReactionHeart)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected reaction error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent reaction may land")
	assert.Equal(t, attempts-1, conflicted)

	final, err := repo.GetByMessageID(ctx, record.MessageID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), final.Reactions.Heart)
	assert.Equal(t, []string{"user_111222333444"}, final.UserReactions)
}

func TestAddReactionDifferentUsersBothLand(t *testing.T) {
	store := integrationStore(t)
	repo := NewMessageRepository(store)
	ctx := context.Background()

	record := NewMessageRecord("user_abc123def456", integrationWallet, "alice", "gm", "", "0xcafebabe", integrationWallet+":1:0", time.Now().UTC())
	_, err := repo.Record(ctx, record)
	require.NoError(t, err)

	_, err = repo.AddReaction(ctx, record.MessageID, "user_aaa", types.ReactionHeart)
	require.NoError(t, err)
	final, err := repo.AddReaction(ctx, record.MessageID, "user_bbb", types.ReactionFire)
	require.NoError(t, err)

	assert.Equal(t, int64(2), final.Reactions.Total())
	assert.ElementsMatch(t, []string{"user_aaa", "user_bbb"}, final.UserReactions)
}

func TestAdoptChainKey(t *testing.T) {
	store := integrationStore(t)
	repo := NewMessageRepository(store)
	ctx := context.Background()

	chainKey := integrationWallet + ":1717243200:0"
	keyless := NewMessageRecord("user_abc123def456", integrationWallet, "alice", "gm", "", "0xbeef", "", time.Now().UTC())
	_, err := repo.Record(ctx, keyless)
	require.NoError(t, err)

	adopted, err := repo.AdoptChainKey(ctx, integrationWallet, "gm", chainKey)
	require.NoError(t, err)
	assert.True(t, adopted)

	adopted, err = repo.AdoptChainKey(ctx, integrationWallet, "gm", chainKey)
	require.NoError(t, err)
	assert.False(t, adopted, "a keyed record is not adopted twice")

	existing, err := repo.ExistingChainKeys(ctx, []string{chainKey})
	require.NoError(t, err)
	assert.True(t, existing[chainKey])
}
