package service

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/retry"
	"github.com/base-guestbook/internal/storage"
	"github.com/base-guestbook/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// approveMultiplier is how many signing fees one approval covers, so a
// user approves once and signs many times
const approveMultiplier = 100

// GuestbookService handles the write path: the chain append, the fee
// gate, and mirroring confirmed writes into the database.
//
// The ordering contract is strict: chain first, mirror second. A mirror
// failure after a confirmed chain write never fails the operation; the
// write is reported with sync status pending and the reconciliation
// worker converges it later.
type GuestbookService struct {
	chain          ledger.Ledger
	token          ledger.TokenGate
	policy         ledger.FeePolicy
	contract       common.Address
	messages       MessageStore
	users          UserStore
	activities     ActivityStore
	cache          ChainCache
	chainID        types.ChainID
	maxContent     int
	confirmTimeout time.Duration
	retryCfg       *retry.Config
	logger         *logging.Logger
}

// GuestbookServiceConfig holds the service dependencies
type GuestbookServiceConfig struct {
	Chain          ledger.Ledger
	Token          ledger.TokenGate
	Policy         ledger.FeePolicy
	Contract       common.Address
	Messages       MessageStore
	Users          UserStore
	Activities     ActivityStore
	Cache          ChainCache
	ChainID        types.ChainID
	MaxContent     int
	ConfirmTimeout time.Duration
	Logger         *logging.Logger
}

// NewGuestbookService creates a new guestbook service
func NewGuestbookService(cfg *GuestbookServiceConfig) *GuestbookService {
	maxContent := cfg.MaxContent
	if maxContent <= 0 {
		maxContent = ledger.DefaultMaxContentLength
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	return &GuestbookService{
		chain:          cfg.Chain,
		token:          cfg.Token,
		policy:         cfg.Policy,
		contract:       cfg.Contract,
		messages:       cfg.Messages,
		users:          cfg.Users,
		activities:     cfg.Activities,
		cache:          cfg.Cache,
		chainID:        cfg.ChainID,
		maxContent:     maxContent,
		confirmTimeout: confirmTimeout,
		retryCfg:       retry.DefaultConfig(),
		logger:         cfg.Logger,
	}
}

// SignInput describes a server-side signing request
type SignInput struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
	Tag     string `json:"tag,omitempty"`
}

// SignResult reports the outcome of a signing request. SyncStatus is
// "synced" when the mirror record was written, "sync_pending" when the
// chain write confirmed but the mirror write failed.
type SignResult struct {
	TxHash     string                   `json:"txHash"`
	ChainKey   string                   `json:"chainKey,omitempty"`
	MessageID  string                   `json:"messageId,omitempty"`
	SyncStatus types.SyncStatus         `json:"syncStatus"`
	Message    *models.GuestbookMessage `json:"message,omitempty"`
}

// SignAndRecord validates, gates, appends on-chain, waits for the
// confirmation and mirrors the result
func (s *GuestbookService) SignAndRecord(ctx context.Context, input *SignInput) (*SignResult, error) {
	if err := ledger.ValidateContent(input.Content, s.maxContent); err != nil {
		return nil, errors.NewValidationError("content", err.Error())
	}
	if !types.ValidTag(input.Tag) {
		return nil, errors.NewValidationError("tag", "unknown tag")
	}

	user, err := s.users.GetByUserID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	// Check the allowance before broadcasting so an under-approved
	// signer gets a clear error instead of burning gas on a revert
	if err := s.checkAllowance(ctx); err != nil {
		return nil, err
	}

	txHash, err := s.chain.SignGuestbook(ctx, input.Content, user.Username, input.Tag)
	if err != nil {
		return nil, errors.NewChainRejectedError("signGuestbook", err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()
	if err := s.chain.WaitConfirmed(confirmCtx, txHash); err != nil {
		return nil, errors.NewConfirmationError(txHash, err)
	}

	record := s.buildRecord(ctx, user, input.Content, input.Tag, txHash)

	if err := s.mirror(ctx, user, record); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"txHash": txHash,
			"userId": user.UserID,
		}).Warn("Chain write confirmed but mirror failed, deferring to reconciliation")
		return &SignResult{TxHash: txHash, ChainKey: record.ChainKey, SyncStatus: types.SyncStatusPending}, nil
	}

	return &SignResult{
		TxHash:     txHash,
		ChainKey:   record.ChainKey,
		MessageID:  record.MessageID,
		SyncStatus: types.SyncStatusSynced,
		Message:    record,
	}, nil
}

// checkAllowance verifies the signer's token allowance covers the fee
func (s *GuestbookService) checkAllowance(ctx context.Context) error {
	if !s.policy.Gated() || s.token == nil {
		return nil
	}

	allowance, err := s.token.Allowance(ctx, s.chain.Sender(), s.contract)
	if err != nil {
		return errors.NewChainRejectedError("allowance", err)
	}
	if allowance.Cmp(s.policy.Amount) < 0 {
		return errors.NewAllowanceError(allowance.String(), s.policy.Amount.String())
	}
	return nil
}

// locateChainMessage finds the newest chain message from sender with the
// given content and returns its chain key and timestamp. Scanning back
// from the tail tolerates appends by other signers landing between the
// write and the read: the tail entry is not necessarily ours.
func locateChainMessage(messages []ledger.Message, sender common.Address, content string) (string, time.Time, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Sender != sender || m.Content != content {
			continue
		}
		var ts int64
		if m.Timestamp != nil {
			ts = m.Timestamp.Int64()
		}
		return types.ChainKey(m.Sender.Hex(), ts, i), time.Unix(ts, 0).UTC(), true
	}
	return "", time.Time{}, false
}

// resolveChainKey reads the chain and locates the appended message for
// sender. A failed read or a message not yet visible yields an empty
// key; the reconciliation worker attaches it later.
func (s *GuestbookService) resolveChainKey(ctx context.Context, sender common.Address, content string) (string, time.Time) {
	messages, err := s.chain.GetAllMessages(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read chain for key resolution")
		return "", nowUTC()
	}
	key, ts, ok := locateChainMessage(messages, sender, content)
	if !ok {
		return "", nowUTC()
	}
	return key, ts
}

// buildRecord assembles the mirror record for a confirmed write. The
// chain key joins it back to the on-chain sequence.
func (s *GuestbookService) buildRecord(ctx context.Context, user *models.User, content, tag, txHash string) *models.GuestbookMessage {
	chainKey, timestamp := s.resolveChainKey(ctx, s.chain.Sender(), content)

	return storage.NewMessageRecord(
		user.UserID,
		user.WalletAddress,
		user.Username,
		content,
		tag,
		txHash,
		chainKey,
		timestamp,
	)
}

// mirror writes the record, counters and activity with retries. Only the
// message record is retried; counters and activity are best-effort on
// top of it.
func (s *GuestbookService) mirror(ctx context.Context, user *models.User, record *models.GuestbookMessage) error {
	result := retry.WithBackoff(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		_, err := s.messages.Record(ctx, record)
		return err
	})
	if !result.Success {
		return result.LastError
	}

	if err := s.users.IncrementMessages(ctx, user.UserID); err != nil {
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to bump message counter")
	}

	activity := &models.Activity{
		UserID:        user.UserID,
		WalletAddress: user.WalletAddress,
		Type:          types.ActivityMessagePosted,
		Data: map[string]interface{}{
			"messageId": record.MessageID,
			"txHash":    record.TxHash,
		},
		Timestamp: nowUTC(),
		BlockchainData: &models.BlockchainData{
			ChainID: s.chainID.NumericChainID(),
			Network: s.chainID.Network(),
		},
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to record message activity")
	}

	if err := s.cache.InvalidateChainReads(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate chain read cache")
	}

	return nil
}

// RecordMessageInput describes a client-side write to mirror: the browser
// wallet already signed and confirmed the transaction, the server only
// records it.
type RecordMessageInput struct {
	UserID  string `json:"userId"`
	Content string `json:"message"`
	Tag     string `json:"tag,omitempty"`
	TxHash  string `json:"txHash"`
}

// RecordMessage mirrors a client-confirmed chain write. Idempotent on
// txHash: replaying the same confirmation returns the existing record
// without double-counting.
func (s *GuestbookService) RecordMessage(ctx context.Context, input *RecordMessageInput) (*models.GuestbookMessage, error) {
	if err := ledger.ValidateContent(input.Content, s.maxContent); err != nil {
		return nil, errors.NewValidationError("message", err.Error())
	}
	if !types.ValidTag(input.Tag) {
		return nil, errors.NewValidationError("tag", "unknown tag")
	}
	if !strings.HasPrefix(input.TxHash, "0x") {
		return nil, errors.NewValidationError("txHash", "must be a 0x-prefixed transaction hash")
	}

	user, err := s.users.GetByUserID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	// The client wallet is the chain sender here, not the server key.
	// Resolving the chain key now keeps the record joined to the merged
	// entry listing; if the message is not visible yet the reconciler
	// attaches the key on its next pass.
	chainKey, timestamp := s.resolveChainKey(ctx, common.HexToAddress(user.WalletAddress), input.Content)

	record := storage.NewMessageRecord(
		user.UserID,
		user.WalletAddress,
		user.Username,
		input.Content,
		input.Tag,
		input.TxHash,
		chainKey,
		timestamp,
	)

	created, err := s.messages.Record(ctx, record)
	if err != nil {
		return nil, err
	}
	if !created {
		// Duplicate confirmation; counters were already bumped
		return record, nil
	}

	if err := s.users.IncrementMessages(ctx, user.UserID); err != nil {
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to bump message counter")
	}

	activity := &models.Activity{
		UserID:        user.UserID,
		WalletAddress: user.WalletAddress,
		Type:          types.ActivityMessagePosted,
		Data: map[string]interface{}{
			"messageId": record.MessageID,
			"txHash":    record.TxHash,
		},
		Timestamp: nowUTC(),
		BlockchainData: &models.BlockchainData{
			ChainID: s.chainID.NumericChainID(),
			Network: s.chainID.Network(),
		},
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to record message activity")
	}

	if err := s.cache.InvalidateChainReads(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate chain read cache")
	}

	return record, nil
}

// ApproveSigning approves the contract to spend approveMultiplier fees
// worth of tokens and returns the approval transaction hash
func (s *GuestbookService) ApproveSigning(ctx context.Context) (string, error) {
	if !s.policy.Gated() || s.token == nil {
		return "", errors.NewValidationError("feePolicy", "signing is not fee-gated")
	}

	amount := new(big.Int).Mul(s.policy.Amount, big.NewInt(approveMultiplier))
	txHash, err := s.token.Approve(ctx, s.contract, amount)
	if err != nil {
		return "", errors.NewChainRejectedError("approve", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"txHash": txHash,
		"amount": amount.String(),
	}).Info("Token spending approved")

	return txHash, nil
}

// ListMessages returns mirror records newest first
func (s *GuestbookService) ListMessages(ctx context.Context, page, limit int) ([]*models.GuestbookMessage, types.Pagination, error) {
	return s.messages.List(ctx, page, limit)
}

// AddReaction adds a reaction to a mirrored message. Each user reacts to
// a message at most once across all kinds.
func (s *GuestbookService) AddReaction(ctx context.Context, messageID, userID string, kind types.ReactionKind) (*models.GuestbookMessage, error) {
	if !types.ValidReactionKind(kind) {
		return nil, errors.NewValidationError("reactionType", "unknown reaction")
	}

	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	message, err := s.messages.AddReaction(ctx, messageID, user.UserID, kind)
	if err != nil {
		return nil, err
	}

	if err := s.users.IncrementReactions(ctx, user.UserID); err != nil {
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to bump reaction counter")
	}

	activity := &models.Activity{
		UserID:        user.UserID,
		WalletAddress: user.WalletAddress,
		Type:          types.ActivityReactionAdded,
		Data: map[string]interface{}{
			"messageId":    messageID,
			"reactionType": string(kind),
		},
		Timestamp: nowUTC(),
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.WithError(err).WithField("userId", user.UserID).Warn("Failed to record reaction activity")
	}

	return message, nil
}

// LedgerStatus is a point-in-time snapshot of the contract state
type LedgerStatus struct {
	Network            string `json:"network"`
	ChainID            int64  `json:"chainId"`
	ContractAddress    string `json:"contractAddress"`
	TokenAddress       string `json:"tokenAddress,omitempty"`
	SigningFee         string `json:"signingFee"`
	SigningFeeDisplay  string `json:"signingFeeDisplay"`
	MessageCount       int64  `json:"messageCount"`
	TotalFeesCollected string `json:"totalFeesCollected"`
	FeeGated           bool   `json:"feeGated"`
}

// Status reads the contract state snapshot
func (s *GuestbookService) Status(ctx context.Context) (*LedgerStatus, error) {
	count, err := s.chain.GetMessageCount(ctx)
	if err != nil {
		return nil, errors.NewChainRejectedError("getMessageCount", err)
	}
	fee, err := s.chain.GetSigningFee(ctx)
	if err != nil {
		return nil, errors.NewChainRejectedError("getSigningFee", err)
	}
	fees, err := s.chain.TotalFeesCollected(ctx)
	if err != nil {
		return nil, errors.NewChainRejectedError("totalFeesCollected", err)
	}

	status := &LedgerStatus{
		Network:            s.chainID.Network(),
		ChainID:            s.chainID.NumericChainID(),
		ContractAddress:    s.contract.Hex(),
		SigningFee:         fee.String(),
		SigningFeeDisplay:  ledger.FormatUnits(fee, ledger.USDCDecimals),
		MessageCount:       count.Int64(),
		TotalFeesCollected: fees.String(),
		FeeGated:           s.policy.Gated(),
	}
	if s.policy.Gated() {
		status.TokenAddress = s.policy.Token.Hex()
	}
	return status, nil
}
