package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

// fakeUserStore is an in-memory UserStore
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User // by userId
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[string]*models.User)}
	for _, u := range users {
		s.users[u.UserID] = u
	}
	return s
}

func (s *fakeUserStore) GetOrCreate(_ context.Context, walletAddress, username string) (*models.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.WalletAddress == walletAddress {
			return u, false, nil
		}
	}
	user := &models.User{
		UserID:        fmt.Sprintf("user_%012d", len(s.users)+1),
		WalletAddress: walletAddress,
		Username:      username,
	}
	s.users[user.UserID] = user
	return user, true, nil
}

func (s *fakeUserStore) GetByWalletAddress(_ context.Context, walletAddress string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.WalletAddress == walletAddress {
			return u, nil
		}
	}
	return nil, errors.NewNotFoundError("user", walletAddress)
}

func (s *fakeUserStore) GetByUserID(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, errors.NewNotFoundError("user", userID)
}

func (s *fakeUserStore) List(_ context.Context, page, limit int) ([]*models.User, types.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, types.NewPagination(page, limit, int64(len(users))), nil
}

func (s *fakeUserStore) IncrementMessages(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.NewNotFoundError("user", userID)
	}
	u.TotalMessages++
	return nil
}

func (s *fakeUserStore) IncrementReactions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.NewNotFoundError("user", userID)
	}
	u.TotalReactions++
	return nil
}

// fakeActivityStore is an in-memory ActivityStore
type fakeActivityStore struct {
	mu         sync.Mutex
	activities []*models.Activity
}

func (s *fakeActivityStore) Append(_ context.Context, activity *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, activity)
	return nil
}

func (s *fakeActivityStore) List(_ context.Context, activityType types.ActivityType, page, limit int) ([]*models.Activity, types.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Activity{}
	for _, a := range s.activities {
		if activityType == "" || a.Type == activityType {
			out = append(out, a)
		}
	}
	return out, types.NewPagination(page, limit, int64(len(out))), nil
}

func (s *fakeActivityStore) ListByUser(_ context.Context, userID string, page, limit int) ([]*models.Activity, types.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Activity{}
	for _, a := range s.activities {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, types.NewPagination(page, limit, int64(len(out))), nil
}

// fakeMessageStore is an in-memory MessageStore with the repository's
// idempotency and dedup semantics
type fakeMessageStore struct {
	mu       sync.Mutex
	byTxHash map[string]*models.GuestbookMessage
	failWith error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{byTxHash: make(map[string]*models.GuestbookMessage)}
}

func (s *fakeMessageStore) Record(_ context.Context, message *models.GuestbookMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	if _, ok := s.byTxHash[message.TxHash]; ok {
		return false, nil
	}
	s.byTxHash[message.TxHash] = message
	return true, nil
}

func (s *fakeMessageStore) GetByMessageID(_ context.Context, messageID string) (*models.GuestbookMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byTxHash {
		if m.MessageID == messageID {
			return m, nil
		}
	}
	return nil, errors.NewNotFoundError("message", messageID)
}

func (s *fakeMessageStore) List(_ context.Context, page, limit int) ([]*models.GuestbookMessage, types.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.GuestbookMessage, 0, len(s.byTxHash))
	for _, m := range s.byTxHash {
		out = append(out, m)
	}
	return out, types.NewPagination(page, limit, int64(len(out))), nil
}

func (s *fakeMessageStore) ListByChainKeys(_ context.Context, chainKeys []string) (map[string]*models.GuestbookMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	byKey := make(map[string]*models.GuestbookMessage)
	for _, m := range s.byTxHash {
		for _, k := range chainKeys {
			if m.ChainKey == k {
				byKey[k] = m
			}
		}
	}
	return byKey, nil
}

func (s *fakeMessageStore) AddReaction(_ context.Context, messageID, userID string, kind types.ReactionKind) (*models.GuestbookMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byTxHash {
		if m.MessageID != messageID {
			continue
		}
		if m.HasReacted(userID) {
			return nil, errors.NewAlreadyReactedError(messageID, userID)
		}
		switch kind {
		case types.ReactionHeart:
			m.Reactions.Heart++
		case types.ReactionThumbsUp:
			m.Reactions.ThumbsUp++
		case types.ReactionFire:
			m.Reactions.Fire++
		case types.ReactionHundred:
			m.Reactions.Hundred++
		}
		m.UserReactions = append(m.UserReactions, userID)
		return m, nil
	}
	return nil, errors.NewNotFoundError("message", messageID)
}

// fakeChainCache is an in-memory ChainCache
type fakeChainCache struct {
	mu          sync.Mutex
	messages    []ledger.Message
	populated   bool
	invalidated int
}

func (c *fakeChainCache) GetChainMessages(_ context.Context) ([]ledger.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.populated {
		return nil, false, nil
	}
	return c.messages, true, nil
}

func (c *fakeChainCache) SetChainMessages(_ context.Context, messages []ledger.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = messages
	c.populated = true
	return nil
}

func (c *fakeChainCache) InvalidateChainReads(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.populated = false
	c.invalidated++
	return nil
}
