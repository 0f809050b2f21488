package service

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/retry"
	"github.com/base-guestbook/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testSigner   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type guestbookFixture struct {
	service    *GuestbookService
	ledger     *ledger.MemLedger
	token      *ledger.MemToken
	users      *fakeUserStore
	activities *fakeActivityStore
	messages   *fakeMessageStore
	cache      *fakeChainCache
	user       *models.User
}

func newGuestbookFixture(t *testing.T, policy ledger.FeePolicy) *guestbookFixture {
	t.Helper()

	token := ledger.NewMemToken(testToken)
	chain := ledger.NewMemLedger(testContract, policy, token)
	session := ledger.NewSession(chain, testSigner)

	user := &models.User{
		UserID:        "user_abc123def456",
		WalletAddress: "0x3333333333333333333333333333333333333333",
		Username:      "alice",
	}
	users := newFakeUserStore(user)
	activities := &fakeActivityStore{}
	messages := newFakeMessageStore()
	cache := &fakeChainCache{}

	service := NewGuestbookService(&GuestbookServiceConfig{
		Chain:          session,
		Token:          ledger.NewTokenSession(token, testSigner),
		Policy:         policy,
		Contract:       testContract,
		Messages:       messages,
		Users:          users,
		Activities:     activities,
		Cache:          cache,
		ChainID:        types.ChainBaseSepolia,
		MaxContent:     500,
		ConfirmTimeout: 5 * time.Second,
		Logger:         testLogger(),
	})
	// Keep mirror failures fast in tests
	service.retryCfg = &retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

	return &guestbookFixture{
		service:    service,
		ledger:     chain,
		token:      token,
		users:      users,
		activities: activities,
		messages:   messages,
		cache:      cache,
		user:       user,
	}
}

func TestSignAndRecordSynced(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.FixedERC20Fee(testToken, big.NewInt(1_000_000)))
	ctx := context.Background()

	fix.token.Mint(testSigner, big.NewInt(10_000_000))
	fix.token.ApproveFrom(testSigner, testContract, big.NewInt(5_000_000))

	result, err := fix.service.SignAndRecord(ctx, &SignInput{
		UserID:  fix.user.UserID,
		Content: "gm base",
		Tag:     types.TagHello,
	})
	require.NoError(t, err)
	assert.Equal(t, types.SyncStatusSynced, result.SyncStatus)
	assert.NotEmpty(t, result.TxHash)
	require.NotNil(t, result.Message)
	assert.Equal(t, types.ChainKey(testSigner.Hex(), result.Message.Timestamp.Unix(), 0), result.ChainKey)
	assert.Equal(t, "gm base", result.Message.Message)
	assert.NotEmpty(t, result.Message.ChainKey)

	count, _ := fix.ledger.GetMessageCount(ctx)
	assert.Equal(t, int64(1), count.Int64())

	assert.Equal(t, int64(1), fix.user.TotalMessages)
	assert.Equal(t, 1, fix.cache.invalidated, "confirmed write must invalidate the chain read cache")

	activities, _, _ := fix.activities.List(ctx, types.ActivityMessagePosted, 1, 10)
	require.Len(t, activities, 1)
	assert.Equal(t, result.TxHash, activities[0].Data["txHash"])
}

func TestSignAndRecordAllowanceGate(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.FixedERC20Fee(testToken, big.NewInt(1_000_000)))
	ctx := context.Background()

	fix.token.Mint(testSigner, big.NewInt(10_000_000))
	fix.token.ApproveFrom(testSigner, testContract, big.NewInt(100))

	_, err := fix.service.SignAndRecord(ctx, &SignInput{UserID: fix.user.UserID, Content: "gm"})
	require.Error(t, err)

	catErr := errors.Categorize(err)
	assert.Equal(t, "APPROVAL_REQUIRED", catErr.Code)

	count, _ := fix.ledger.GetMessageCount(ctx)
	assert.Zero(t, count.Int64(), "gated write must not broadcast without allowance")
}

func TestSignAndRecordMirrorFailureIsPending(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())
	ctx := context.Background()

	fix.messages.failWith = errors.NewMirrorError("record message", assert.AnError)

	result, err := fix.service.SignAndRecord(ctx, &SignInput{UserID: fix.user.UserID, Content: "gm"})
	require.NoError(t, err, "a mirror failure must not fail a confirmed chain write")
	assert.Equal(t, types.SyncStatusPending, result.SyncStatus)
	assert.NotEmpty(t, result.TxHash)

	count, _ := fix.ledger.GetMessageCount(ctx)
	assert.Equal(t, int64(1), count.Int64(), "the chain write stands even when the mirror fails")
	assert.Zero(t, fix.user.TotalMessages, "counters are not bumped until the mirror succeeds")
}

func TestSignAndRecordValidation(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())
	ctx := context.Background()

	_, err := fix.service.SignAndRecord(ctx, &SignInput{UserID: fix.user.UserID, Content: "  "})
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)

	_, err = fix.service.SignAndRecord(ctx, &SignInput{UserID: fix.user.UserID, Content: "gm", Tag: "nonsense"})
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)

	_, err = fix.service.SignAndRecord(ctx, &SignInput{UserID: "user_unknown00000", Content: "gm"})
	assert.Equal(t, "NOT_FOUND", errors.Categorize(err).Code)

	count, _ := fix.ledger.GetMessageCount(ctx)
	assert.Zero(t, count.Int64())
}

func TestRecordMessageIdempotentOnTxHash(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())
	ctx := context.Background()

	input := &RecordMessageInput{
		UserID:  fix.user.UserID,
		Content: "gm base",
		Tag:     types.TagShipped,
		TxHash:  "0xabc123",
	}

	first, err := fix.service.RecordMessage(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fix.user.TotalMessages)

	second, err := fix.service.RecordMessage(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.TxHash, second.TxHash)
	assert.Equal(t, int64(1), fix.user.TotalMessages, "replaying a confirmation must not double count")

	activities, _, _ := fix.activities.List(ctx, types.ActivityMessagePosted, 1, 10)
	assert.Len(t, activities, 1)
}

func TestRecordMessageJoinsChainKey(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())
	ctx := context.Background()

	// The browser wallet signed and confirmed on chain; the server only
	// mirrors the result
	txHash, err := fix.ledger.SignGuestbookFrom(ctx, testSigner, "gm from the browser", "alice", "")
	require.NoError(t, err)

	recorded, err := fix.service.RecordMessage(ctx, &RecordMessageInput{
		UserID:  fix.user.UserID,
		Content: "gm from the browser",
		TxHash:  txHash,
	})
	require.NoError(t, err)
	require.NotEmpty(t, recorded.ChainKey)
	assert.Equal(t, types.ChainKey(testSigner.Hex(), recorded.Timestamp.Unix(), 0), recorded.ChainKey)

	_, err = fix.service.AddReaction(ctx, recorded.MessageID, fix.user.UserID, types.ReactionHeart)
	require.NoError(t, err)

	// The merged listing must see the mirror record, reactions included
	query := NewQueryService(ledger.NewSession(fix.ledger, testSigner), fix.messages, &fakeChainCache{}, testLogger())
	page, err := query.ListEntries(ctx, &EntryQuery{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.True(t, page.Entries[0].Mirrored)
	assert.Equal(t, int64(1), page.Entries[0].ReactionTotal)
}

// rivalLedger appends a competing message from another wallet while the
// first write waits for confirmation
type rivalLedger struct {
	ledger.Ledger
	chain *ledger.MemLedger
	rival common.Address
	once  sync.Once
}

func (l *rivalLedger) WaitConfirmed(ctx context.Context, txHash string) error {
	l.once.Do(func() {
		_, _ = l.chain.SignGuestbookFrom(ctx, l.rival, "me first", "mallory", "")
	})
	return l.Ledger.WaitConfirmed(ctx, txHash)
}

func TestSignAndRecordChainKeySurvivesRivalAppend(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())
	ctx := context.Background()

	rival := common.HexToAddress("0x5555555555555555555555555555555555555555")
	fix.service.chain = &rivalLedger{
		Ledger: ledger.NewSession(fix.ledger, testSigner),
		chain:  fix.ledger,
		rival:  rival,
	}

	result, err := fix.service.SignAndRecord(ctx, &SignInput{UserID: fix.user.UserID, Content: "gm base"})
	require.NoError(t, err)
	require.NotNil(t, result.Message)

	count, _ := fix.ledger.GetMessageCount(ctx)
	require.Equal(t, int64(2), count.Int64())

	// Our message is at index 0; the rival's landed behind it, and must
	// not donate its key to our record
	assert.Equal(t, types.ChainKey(testSigner.Hex(), result.Message.Timestamp.Unix(), 0), result.Message.ChainKey)
}

func TestRecordMessageValidatesTxHash(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())

	_, err := fix.service.RecordMessage(context.Background(), &RecordMessageInput{
		UserID:  fix.user.UserID,
		Content: "gm",
		TxHash:  "abc123",
	})
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
}

func TestAddReactionOncePerUser(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())
	ctx := context.Background()

	recorded, err := fix.service.RecordMessage(ctx, &RecordMessageInput{
		UserID:  fix.user.UserID,
		Content: "gm",
		TxHash:  "0xabc123",
	})
	require.NoError(t, err)

	message, err := fix.service.AddReaction(ctx, recorded.MessageID, fix.user.UserID, types.ReactionFire)
	require.NoError(t, err)
	assert.Equal(t, int64(1), message.Reactions.Fire)
	assert.Equal(t, int64(1), fix.user.TotalReactions)

	// Second reaction of any kind from the same user conflicts
	_, err = fix.service.AddReaction(ctx, recorded.MessageID, fix.user.UserID, types.ReactionHeart)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, int64(1), message.Reactions.Total(), "conflicting reaction must not increment")
	assert.Equal(t, int64(1), fix.user.TotalReactions)
}

func TestAddReactionUnknownKind(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())

	_, err := fix.service.AddReaction(context.Background(), "msg_x", fix.user.UserID, types.ReactionKind("clap"))
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
}

func TestApproveSigning(t *testing.T) {
	fee := big.NewInt(1_000_000)
	fix := newGuestbookFixture(t, ledger.FixedERC20Fee(testToken, fee))
	ctx := context.Background()

	txHash, err := fix.service.ApproveSigning(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)

	allowance, err := fix.token.Allowance(ctx, testSigner, testContract)
	require.NoError(t, err)
	expected := new(big.Int).Mul(fee, big.NewInt(approveMultiplier))
	assert.Zero(t, allowance.Cmp(expected), "approval should cover %d fees", approveMultiplier)
}

func TestApproveSigningUngated(t *testing.T) {
	fix := newGuestbookFixture(t, ledger.NoFee())

	_, err := fix.service.ApproveSigning(context.Background())
	assert.Equal(t, "INVALID_PARAMETER", errors.Categorize(err).Code)
}

func TestStatusSnapshot(t *testing.T) {
	fee := big.NewInt(1_000_000)
	fix := newGuestbookFixture(t, ledger.FixedERC20Fee(testToken, fee))
	ctx := context.Background()

	fix.token.Mint(testSigner, big.NewInt(10_000_000))
	fix.token.ApproveFrom(testSigner, testContract, big.NewInt(5_000_000))
	_, err := fix.service.SignAndRecord(ctx, &SignInput{UserID: fix.user.UserID, Content: "gm"})
	require.NoError(t, err)

	status, err := fix.service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Base Sepolia", status.Network)
	assert.Equal(t, int64(84532), status.ChainID)
	assert.Equal(t, int64(1), status.MessageCount)
	assert.Equal(t, "1000000", status.SigningFee)
	assert.Equal(t, "1", status.SigningFeeDisplay)
	assert.Equal(t, "1000000", status.TotalFeesCollected)
	assert.True(t, status.FeeGated)
	assert.Equal(t, testToken.Hex(), status.TokenAddress)
}
