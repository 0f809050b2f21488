package models

import (
	"time"

	"github.com/base-guestbook/internal/types"
)

// Reactions holds the four mutable reaction counters. Reaction state
// lives only in the mirror store; the chain never sees it.
type Reactions struct {
	Heart    int64 `bson:"heart" json:"heart"`
	ThumbsUp int64 `bson:"thumbsUp" json:"thumbsUp"`
	Fire     int64 `bson:"fire" json:"fire"`
	Hundred  int64 `bson:"hundred" json:"hundred"`
}

// Total returns the sum of all four reaction counters
func (r Reactions) Total() int64 {
	return r.Heart + r.ThumbsUp + r.Fire + r.Hundred
}

// Count returns the counter for a single reaction kind
func (r Reactions) Count(kind types.ReactionKind) int64 {
	switch kind {
	case types.ReactionHeart:
		return r.Heart
	case types.ReactionThumbsUp:
		return r.ThumbsUp
	case types.ReactionFire:
		return r.Fire
	case types.ReactionHundred:
		return r.Hundred
	default:
		return 0
	}
}

// GuestbookMessage is the denormalized mirror copy of an on-chain
// message. Message content and authorship are owned by the chain; the
// mirror owns the reaction counters and the dedup guard.
//
// TxHash carries a unique index so recordMessage is idempotent and
// safely retryable. ChainKey joins the record back to the on-chain
// sequence (lower(sender):timestamp:index).
type GuestbookMessage struct {
	MessageID     string    `bson:"messageId" json:"messageId"`
	UserID        string    `bson:"userId" json:"userId"`
	WalletAddress string    `bson:"walletAddress" json:"walletAddress"`
	Username      string    `bson:"username" json:"username"`
	Message       string    `bson:"message" json:"message"`
	Tag           string    `bson:"tag,omitempty" json:"tag,omitempty"`
	TxHash        string    `bson:"txHash" json:"txHash"`
	ChainKey      string    `bson:"chainKey,omitempty" json:"chainKey,omitempty"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
	Reactions     Reactions `bson:"reactions" json:"reactions"`
	UserReactions []string  `bson:"userReactions" json:"userReactions"`
}

// HasReacted reports whether userID already appears in the dedup guard
func (m *GuestbookMessage) HasReacted(userID string) bool {
	for _, id := range m.UserReactions {
		if id == userID {
			return true
		}
	}
	return false
}
