package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MemToken is an in-memory ERC-20 used by MemLedger to exercise the fee
// gate without a chain. All amounts are in the token's smallest unit.
type MemToken struct {
	mu         sync.Mutex
	address    common.Address
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewMemToken creates an in-memory token at the given address
func NewMemToken(address common.Address) *MemToken {
	return &MemToken{
		address:    address,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Address returns the token address
func (t *MemToken) Address() common.Address {
	return t.address
}

// Mint credits amount to account
func (t *MemToken) Mint(account common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = new(big.Int).Add(t.balance(account), amount)
}

// BalanceOf returns account's balance
func (t *MemToken) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance(account)), nil
}

// Allowance returns the amount spender may transfer from owner
func (t *MemToken) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.allowance(owner, spender)), nil
}

// ApproveFrom sets spender's allowance over owner's tokens
func (t *MemToken) ApproveFrom(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

// transferFrom moves amount from owner to recipient consuming spender's
// allowance. Caller holds the lock. Fails atomically: no partial state
// change on an allowance or balance shortfall.
func (t *MemToken) transferFrom(owner, spender, recipient common.Address, amount *big.Int) error {
	allowed := t.allowance(owner, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient allowance: have %s, need %s", allowed, amount)
	}
	balance := t.balance(owner)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: have %s, need %s", balance, amount)
	}

	t.allowances[owner][spender] = new(big.Int).Sub(allowed, amount)
	t.balances[owner] = new(big.Int).Sub(balance, amount)
	t.balances[recipient] = new(big.Int).Add(t.balance(recipient), amount)
	return nil
}

func (t *MemToken) balance(account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *MemToken) allowance(owner, spender common.Address) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

// MemLedger is an in-memory guestbook with the contract's append and fee
// semantics: messages are append-only, and under a fee policy the token
// transfer and the append succeed or fail together.
type MemLedger struct {
	mu        sync.Mutex
	address   common.Address
	policy    FeePolicy
	token     *MemToken
	messages  []Message
	totalFees *big.Int
	confirmed map[string]bool
	now       func() time.Time
}

// NewMemLedger creates an in-memory ledger. token may be nil when the
// policy is NoFee.
func NewMemLedger(address common.Address, policy FeePolicy, token *MemToken) *MemLedger {
	return &MemLedger{
		address:   address,
		policy:    policy,
		token:     token,
		totalFees: big.NewInt(0),
		confirmed: make(map[string]bool),
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source, for tests
func (l *MemLedger) SetClock(now func() time.Time) {
	l.now = now
}

// Token returns the in-memory fee token, nil when ungated
func (l *MemLedger) Token() *MemToken {
	return l.token
}

// SignGuestbookFrom appends a message as sender. Under a fee policy the
// fee is transferred first; a shortfall leaves the message sequence and
// all balances untouched.
func (l *MemLedger) SignGuestbookFrom(_ context.Context, sender common.Address, content, username, tag string) (string, error) {
	if err := ValidateContent(content, DefaultMaxContentLength); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.policy.Gated() {
		if l.token == nil {
			return "", fmt.Errorf("fee policy requires a token")
		}
		if err := l.token.transferFromLocked(sender, l.address, l.address, l.policy.Amount); err != nil {
			return "", fmt.Errorf("fee transfer failed: %w", err)
		}
		l.totalFees = new(big.Int).Add(l.totalFees, l.policy.Amount)
	}

	ts := big.NewInt(l.now().Unix())
	l.messages = append(l.messages, Message{
		Sender:    sender,
		Content:   content,
		Timestamp: ts,
		Username:  username,
		Tag:       tag,
	})

	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d:%d", sender.Hex(), ts.Int64(), len(l.messages)-1))).Hex()
	l.confirmed[hash] = true
	return hash, nil
}

// transferFromLocked wraps transferFrom with the token's own lock
func (t *MemToken) transferFromLocked(owner, spender, recipient common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferFrom(owner, spender, recipient, amount)
}

// GetAllMessages returns a copy of the ordered message sequence
func (l *MemLedger) GetAllMessages(_ context.Context) ([]Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out, nil
}

// GetMessageCount returns the number of appended messages
func (l *MemLedger) GetMessageCount(_ context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return big.NewInt(int64(len(l.messages))), nil
}

// GetSigningFee returns the fee per append, zero when ungated
func (l *MemLedger) GetSigningFee(_ context.Context) (*big.Int, error) {
	if !l.policy.Gated() {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(l.policy.Amount), nil
}

// GetTokenAddress returns the fee token address
func (l *MemLedger) GetTokenAddress(_ context.Context) (common.Address, error) {
	return l.policy.Token, nil
}

// TotalFeesCollected returns cumulative fees held by the ledger
func (l *MemLedger) TotalFeesCollected(_ context.Context) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.totalFees), nil
}

// Session binds a MemLedger to a fixed sender, satisfying Writer
type Session struct {
	ledger *MemLedger
	sender common.Address
}

// NewSession creates a fixed-sender session over a MemLedger
func NewSession(ledger *MemLedger, sender common.Address) *Session {
	return &Session{ledger: ledger, sender: sender}
}

// Sender returns the session's signing account
func (s *Session) Sender() common.Address {
	return s.sender
}

// SignGuestbook appends a message as the session sender
func (s *Session) SignGuestbook(ctx context.Context, content, username, tag string) (string, error) {
	return s.ledger.SignGuestbookFrom(ctx, s.sender, content, username, tag)
}

// WaitConfirmed resolves immediately for hashes this ledger produced
func (s *Session) WaitConfirmed(_ context.Context, txHash string) error {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	if !s.ledger.confirmed[txHash] {
		return fmt.Errorf("unknown transaction: %s", txHash)
	}
	return nil
}

// GetAllMessages delegates to the underlying ledger
func (s *Session) GetAllMessages(ctx context.Context) ([]Message, error) {
	return s.ledger.GetAllMessages(ctx)
}

// GetMessageCount delegates to the underlying ledger
func (s *Session) GetMessageCount(ctx context.Context) (*big.Int, error) {
	return s.ledger.GetMessageCount(ctx)
}

// GetSigningFee delegates to the underlying ledger
func (s *Session) GetSigningFee(ctx context.Context) (*big.Int, error) {
	return s.ledger.GetSigningFee(ctx)
}

// GetTokenAddress delegates to the underlying ledger
func (s *Session) GetTokenAddress(ctx context.Context) (common.Address, error) {
	return s.ledger.GetTokenAddress(ctx)
}

// TotalFeesCollected delegates to the underlying ledger
func (s *Session) TotalFeesCollected(ctx context.Context) (*big.Int, error) {
	return s.ledger.TotalFeesCollected(ctx)
}

// TokenSession binds a MemToken to a fixed owner, satisfying TokenGate
type TokenSession struct {
	token *MemToken
	owner common.Address
}

// NewTokenSession creates a fixed-owner session over a MemToken
func NewTokenSession(token *MemToken, owner common.Address) *TokenSession {
	return &TokenSession{token: token, owner: owner}
}

// Allowance delegates to the underlying token
func (s *TokenSession) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return s.token.Allowance(ctx, owner, spender)
}

// BalanceOf delegates to the underlying token
func (s *TokenSession) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return s.token.BalanceOf(ctx, owner)
}

// Approve sets spender's allowance over the session owner's tokens and
// returns a synthetic transaction hash
func (s *TokenSession) Approve(_ context.Context, spender common.Address, amount *big.Int) (string, error) {
	s.token.ApproveFrom(s.owner, spender, amount)
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("approve:%s:%s:%s", s.owner.Hex(), spender.Hex(), amount))).Hex(), nil
}
