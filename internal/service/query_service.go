package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/base-guestbook/internal/errors"
	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/types"
)

// AnonymousUsername is substituted when an on-chain message carries no
// username and no mirror record names one
const AnonymousUsername = "Anonymous"

// QueryService is the read facade: chain messages merged with mirror
// annotations, filtered, sorted and paginated. The chain is the source
// of truth for content and order; the mirror contributes reactions and
// identity.
type QueryService struct {
	chain  ledger.Reader
	store  MessageStore
	cache  ChainCache
	logger *logging.Logger
}

// NewQueryService creates a new query service
func NewQueryService(chain ledger.Reader, store MessageStore, cache ChainCache, logger *logging.Logger) *QueryService {
	return &QueryService{
		chain:  chain,
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// EntryQuery defines the filter, sort and pagination parameters for the
// merged entry listing
type EntryQuery struct {
	Search string           `json:"search,omitempty"`
	Date   types.DateFilter `json:"date,omitempty"`
	Tag    string           `json:"tag,omitempty"`
	Sort   types.SortOrder  `json:"sort,omitempty"`
	Page   int              `json:"page"`
	Limit  int              `json:"limit"`
}

// Entry is a merged guestbook entry: on-chain content annotated with
// mirror state where a mirror record exists
type Entry struct {
	ChainKey      string           `json:"chainKey"`
	MessageID     string           `json:"messageId,omitempty"`
	Sender        string           `json:"sender"`
	Username      string           `json:"username"`
	Content       string           `json:"content"`
	Tag           string           `json:"tag,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	TxHash        string           `json:"txHash,omitempty"`
	Reactions     models.Reactions `json:"reactions"`
	ReactionTotal int64            `json:"reactionTotal"`
	Mirrored      bool             `json:"mirrored"`
}

// EntryPage is a page of merged entries
type EntryPage struct {
	Entries    []Entry          `json:"entries"`
	Pagination types.Pagination `json:"pagination"`
	Cached     bool             `json:"cached"`
}

// ListEntries returns the merged, filtered, sorted entry page
func (s *QueryService) ListEntries(ctx context.Context, query *EntryQuery) (*EntryPage, error) {
	if err := validateEntryQuery(query); err != nil {
		return nil, err
	}
	applyEntryDefaults(query)

	chainMessages, cached, err := s.chainMessages(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.merge(ctx, chainMessages)
	if err != nil {
		return nil, err
	}

	entries = filterEntries(entries, query)
	sortEntries(entries, query.Sort)

	total := int64(len(entries))
	start := (query.Page - 1) * query.Limit
	if start > len(entries) {
		start = len(entries)
	}
	end := start + query.Limit
	if end > len(entries) {
		end = len(entries)
	}

	return &EntryPage{
		Entries:    entries[start:end],
		Pagination: types.NewPagination(query.Page, query.Limit, total),
		Cached:     cached,
	}, nil
}

// chainMessages reads the chain sequence through the cache
func (s *QueryService) chainMessages(ctx context.Context) ([]ledger.Message, bool, error) {
	messages, hit, err := s.cache.GetChainMessages(ctx)
	if err != nil {
		// A broken cache degrades to a direct chain read
		s.logger.WithError(err).Warn("Chain read cache unavailable")
	}
	if hit {
		return messages, true, nil
	}

	messages, err = s.chain.GetAllMessages(ctx)
	if err != nil {
		return nil, false, errors.NewChainRejectedError("getAllMessages", err)
	}

	if err := s.cache.SetChainMessages(ctx, messages); err != nil {
		s.logger.WithError(err).Warn("Failed to populate chain read cache")
	}
	return messages, false, nil
}

// merge annotates chain messages with mirror state, joined on chain key.
// A mirror outage degrades to chain-only entries rather than failing
// the read.
func (s *QueryService) merge(ctx context.Context, chainMessages []ledger.Message) ([]Entry, error) {
	keys := make([]string, len(chainMessages))
	for i, m := range chainMessages {
		var ts int64
		if m.Timestamp != nil {
			ts = m.Timestamp.Int64()
		}
		keys[i] = types.ChainKey(m.Sender.Hex(), ts, i)
	}

	annotations, err := s.store.ListByChainKeys(ctx, keys)
	if err != nil {
		s.logger.WithError(err).Warn("Mirror store unavailable, serving chain-only entries")
		annotations = map[string]*models.GuestbookMessage{}
	}

	entries := make([]Entry, len(chainMessages))
	for i, m := range chainMessages {
		var ts int64
		if m.Timestamp != nil {
			ts = m.Timestamp.Int64()
		}

		entry := Entry{
			ChainKey:  keys[i],
			Sender:    m.Sender.Hex(),
			Username:  m.Username,
			Content:   m.Content,
			Tag:       m.Tag,
			Timestamp: time.Unix(ts, 0).UTC(),
		}
		if mirror, ok := annotations[keys[i]]; ok {
			entry.MessageID = mirror.MessageID
			entry.TxHash = mirror.TxHash
			entry.Reactions = mirror.Reactions
			entry.ReactionTotal = mirror.Reactions.Total()
			entry.Mirrored = true
			if entry.Username == "" {
				entry.Username = mirror.Username
			}
		}
		if entry.Username == "" {
			entry.Username = AnonymousUsername
		}
		entries[i] = entry
	}
	return entries, nil
}

func validateEntryQuery(query *EntryQuery) error {
	if query.Date != "" && !types.ValidDateFilter(query.Date) {
		return errors.NewValidationError("date", "unknown date filter")
	}
	if query.Sort != "" && !types.ValidSortOrder(query.Sort) {
		return errors.NewValidationError("sort", "unknown sort order")
	}
	if query.Tag != "" && !types.ValidTag(query.Tag) {
		return errors.NewValidationError("tag", "unknown tag")
	}
	if query.Page < 0 || query.Limit < 0 {
		return errors.NewValidationError("page", "page and limit must be positive")
	}
	return nil
}

func applyEntryDefaults(query *EntryQuery) {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 20
	}
	if query.Limit > 100 {
		query.Limit = 100
	}
	if query.Date == "" {
		query.Date = types.DateAll
	}
	if query.Sort == "" {
		query.Sort = types.SortNewest
	}
}

// filterEntries applies search, date and tag filters in order
func filterEntries(entries []Entry, query *EntryQuery) []Entry {
	cutoff, hasCutoff := dateCutoff(query.Date, nowUTC())
	search := strings.ToLower(strings.TrimSpace(query.Search))

	filtered := entries[:0:0]
	for _, e := range entries {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Content), search) &&
			!strings.Contains(strings.ToLower(e.Username), search) {
			continue
		}
		if hasCutoff && e.Timestamp.Before(cutoff) {
			continue
		}
		if query.Tag != "" && e.Tag != query.Tag {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// dateCutoff returns the inclusive lower bound for a date filter
func dateCutoff(filter types.DateFilter, now time.Time) (time.Time, bool) {
	switch filter {
	case types.DateToday:
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	case types.DateWeek:
		return now.AddDate(0, 0, -7), true
	case types.DateMonth:
		return now.AddDate(0, -1, 0), true
	default:
		return time.Time{}, false
	}
}

// sortEntries orders entries in place. Sorts are stable so entries that
// compare equal keep their on-chain order.
func sortEntries(entries []Entry, order types.SortOrder) {
	switch order {
	case types.SortOldest:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		})
	case types.SortReactions:
		// Equal totals compare equal so the stable sort keeps their
		// on-chain order
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ReactionTotal > entries[j].ReactionTotal
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		})
	}
}
