// Package types defines shared types used across the guestbook service.
package types

import (
	"fmt"
	"strings"
)

// ChainID represents a supported EVM chain
type ChainID string

const (
	ChainBase        ChainID = "base"
	ChainBaseSepolia ChainID = "base-sepolia"
)

// NumericChainID returns the EVM chain id for a ChainID
func (c ChainID) NumericChainID() int64 {
	switch c {
	case ChainBase:
		return 8453
	case ChainBaseSepolia:
		return 84532
	default:
		return 0
	}
}

// Network returns the human-readable network name
func (c ChainID) Network() string {
	switch c {
	case ChainBase:
		return "Base"
	case ChainBaseSepolia:
		return "Base Sepolia"
	default:
		return string(c)
	}
}

// ReactionKind identifies one of the four reaction counters on a message
type ReactionKind string

const (
	ReactionHeart    ReactionKind = "heart"
	ReactionThumbsUp ReactionKind = "thumbsUp"
	ReactionFire     ReactionKind = "fire"
	ReactionHundred  ReactionKind = "hundred"
)

// ReactionKinds lists all valid reaction kinds
var ReactionKinds = []ReactionKind{ReactionHeart, ReactionThumbsUp, ReactionFire, ReactionHundred}

// ValidReactionKind reports whether kind is one of the four reaction counters
func ValidReactionKind(kind ReactionKind) bool {
	switch kind {
	case ReactionHeart, ReactionThumbsUp, ReactionFire, ReactionHundred:
		return true
	default:
		return false
	}
}

// Tag vocabulary for guestbook messages. The contract accepts any string;
// the vocabulary is enforced at the service/API layer.
const (
	TagMilestone    = "milestone"
	TagBuilding     = "building"
	TagShipped      = "shipped"
	TagThanks       = "thanks"
	TagHello        = "hello"
	TagAnnouncement = "announcement"
	TagIdea         = "idea"
)

// MessageTags lists the fixed tag vocabulary
var MessageTags = []string{
	TagMilestone,
	TagBuilding,
	TagShipped,
	TagThanks,
	TagHello,
	TagAnnouncement,
	TagIdea,
}

// ValidTag reports whether tag is in the fixed vocabulary. The empty
// string is valid (untagged message).
func ValidTag(tag string) bool {
	if tag == "" {
		return true
	}
	for _, t := range MessageTags {
		if t == tag {
			return true
		}
	}
	return false
}

// ActivityType identifies the kind of an activity event
type ActivityType string

const (
	ActivitySignIn          ActivityType = "sign_in"
	ActivityMessagePosted   ActivityType = "message_posted"
	ActivityReactionAdded   ActivityType = "reaction_added"
	ActivityWalletConnected ActivityType = "wallet_connected"
)

// ValidActivityType reports whether t is a known activity type
func ValidActivityType(t ActivityType) bool {
	switch t {
	case ActivitySignIn, ActivityMessagePosted, ActivityReactionAdded, ActivityWalletConnected:
		return true
	default:
		return false
	}
}

// SyncStatus describes whether a confirmed on-chain write has been
// mirrored into the database
type SyncStatus string

const (
	// SyncStatusSynced means the mirror record was written
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusPending means the chain write succeeded but the mirror
	// write failed; the reconciliation worker will converge it later
	SyncStatusPending SyncStatus = "sync_pending"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Pagination describes a page of results
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination builds pagination metadata for a total count
func NewPagination(page, limit int, total int64) Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// DateFilter buckets entries by wall-clock age at query time
type DateFilter string

const (
	DateAll   DateFilter = "all"
	DateToday DateFilter = "today"
	DateWeek  DateFilter = "week"
	DateMonth DateFilter = "month"
)

// ValidDateFilter reports whether f is a known date filter
func ValidDateFilter(f DateFilter) bool {
	switch f {
	case DateAll, DateToday, DateWeek, DateMonth:
		return true
	default:
		return false
	}
}

// SortOrder controls the ordering of merged guestbook entries
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortReactions SortOrder = "reactions"
)

// ValidSortOrder reports whether s is a known sort order
func ValidSortOrder(s SortOrder) bool {
	switch s {
	case SortNewest, SortOldest, SortReactions:
		return true
	default:
		return false
	}
}

// ChainKey is the synthetic identity of an on-chain message used to join
// chain reads with mirror annotations: lower(sender):timestamp:index
func ChainKey(sender string, timestamp int64, index int) string {
	return fmt.Sprintf("%s:%d:%d", strings.ToLower(sender), timestamp, index)
}
