// Package worker implements the reconciliation worker that converges the
// mirror store toward the chain.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/base-guestbook/internal/ledger"
	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/storage"
	"github.com/base-guestbook/internal/types"
)

// MessageReconcileStore is the mirror surface the worker needs
type MessageReconcileStore interface {
	Record(ctx context.Context, message *models.GuestbookMessage) (bool, error)
	ExistingChainKeys(ctx context.Context, chainKeys []string) (map[string]bool, error)
	AdoptChainKey(ctx context.Context, walletAddress, content, chainKey string) (bool, error)
}

// UserLookup resolves chain senders back to mirror users
type UserLookup interface {
	GetByWalletAddress(ctx context.Context, walletAddress string) (*models.User, error)
}

// ChainReadCache is the cache surface the worker refreshes
type ChainReadCache interface {
	SetChainMessages(ctx context.Context, messages []ledger.Message) error
}

// ReconcileWorker periodically reads the full chain sequence and mirrors
// any message the database is missing. Together with the unique txHash
// index this makes the mirror converge after partial failures: the chain
// is the source of truth, the mirror only ever catches up.
type ReconcileWorker struct {
	chain        ledger.Reader
	messages     MessageReconcileStore
	users        UserLookup
	cache        ChainReadCache
	pollInterval time.Duration
	logger       *logging.Logger

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastRun      time.Time
	lastMirrored int
}

// ReconcileWorkerConfig holds configuration for the reconciliation worker
type ReconcileWorkerConfig struct {
	Chain        ledger.Reader
	Messages     MessageReconcileStore
	Users        UserLookup
	Cache        ChainReadCache
	PollInterval time.Duration
	Logger       *logging.Logger
}

// NewReconcileWorker creates a new reconciliation worker
func NewReconcileWorker(cfg *ReconcileWorkerConfig) (*ReconcileWorker, error) {
	if cfg.Chain == nil {
		return nil, fmt.Errorf("chain reader cannot be nil")
	}
	if cfg.Messages == nil {
		return nil, fmt.Errorf("message store cannot be nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ReconcileWorker{
		chain:        cfg.Chain,
		messages:     cfg.Messages,
		users:        cfg.Users,
		cache:        cfg.Cache,
		pollInterval: pollInterval,
		logger:       logger.WithField("component", "reconcile_worker"),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins the reconciliation loop
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithField("pollInterval", w.pollInterval.String()).Info("Starting reconcile worker")

	go w.pollLoop(ctx)
	return nil
}

// Stop gracefully stops the worker
func (w *ReconcileWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("Reconcile worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *ReconcileWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			mirrored, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.WithError(err).Warn("Reconciliation pass failed")
				continue
			}
			if mirrored > 0 {
				w.logger.WithField("mirrored", mirrored).Info("Reconciliation mirrored missing messages")
			}
		}
	}
}

// RunOnce executes a single reconciliation pass and returns how many
// missing messages were mirrored
func (w *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	chainMessages, err := w.chain.GetAllMessages(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read chain messages: %w", err)
	}

	keys := make([]string, len(chainMessages))
	for i, m := range chainMessages {
		var ts int64
		if m.Timestamp != nil {
			ts = m.Timestamp.Int64()
		}
		keys[i] = types.ChainKey(m.Sender.Hex(), ts, i)
	}

	existing, err := w.messages.ExistingChainKeys(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("failed to list mirrored chain keys: %w", err)
	}

	mirrored := 0
	for i, m := range chainMessages {
		if existing[keys[i]] {
			continue
		}
		// A keyless record for the same wallet and content is a client
		// confirmation that beat the chain read; attach the key to it
		// rather than inserting a second record for one chain message.
		if adopted, err := w.messages.AdoptChainKey(ctx, m.Sender.Hex(), m.Content, keys[i]); err == nil && adopted {
			mirrored++
			continue
		}
		if err := w.mirrorMessage(ctx, m, keys[i]); err != nil {
			w.logger.WithError(err).WithField("chainKey", keys[i]).Warn("Failed to mirror message")
			continue
		}
		mirrored++
	}

	if w.cache != nil {
		if err := w.cache.SetChainMessages(ctx, chainMessages); err != nil {
			w.logger.WithError(err).Warn("Failed to refresh chain read cache")
		}
	}

	w.mu.Lock()
	w.lastRun = time.Now()
	w.lastMirrored = mirrored
	w.mu.Unlock()

	return mirrored, nil
}

// mirrorMessage writes the mirror record for a chain message that has
// none. The sender may be unknown to the mirror when the message was
// written by a wallet that never signed in; the record is still kept so
// reactions can attach to it.
func (w *ReconcileWorker) mirrorMessage(ctx context.Context, m ledger.Message, chainKey string) error {
	var ts int64
	if m.Timestamp != nil {
		ts = m.Timestamp.Int64()
	}

	userID := ""
	wallet := strings.ToLower(m.Sender.Hex())
	if w.users != nil {
		if user, err := w.users.GetByWalletAddress(ctx, m.Sender.Hex()); err == nil {
			userID = user.UserID
			wallet = user.WalletAddress
		}
	}

	// Reconciled records have no transaction hash to key on, so the
	// chain key stands in. The recon: prefix keeps it out of the way of
	// real hashes under the unique index.
	record := storage.NewMessageRecord(
		userID,
		wallet,
		m.Username,
		m.Content,
		m.Tag,
		"recon:"+chainKey,
		chainKey,
		time.Unix(ts, 0).UTC(),
	)

	_, err := w.messages.Record(ctx, record)
	return err
}

// Status reports the worker's last pass for health checks
func (w *ReconcileWorker) Status() (lastRun time.Time, lastMirrored int, running bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastMirrored, w.running
}
