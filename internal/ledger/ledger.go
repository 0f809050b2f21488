// Package ledger provides typed clients for the on-chain guestbook
// contract and its ERC-20 token gate, plus an in-memory ledger with the
// same append and fee semantics for tests and chainless development.
//
// One typed client exists per contract shape; callers never touch raw
// ABI method names.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Message is an on-chain guestbook entry. Field order mirrors the
// contract's Message struct tuple.
type Message struct {
	Sender    common.Address `json:"sender"`
	Content   string         `json:"content"`
	Timestamp *big.Int       `json:"timestamp"`
	Username  string         `json:"username"`
	Tag       string         `json:"tag"`
}

// Reader is the read surface of the guestbook contract
type Reader interface {
	GetAllMessages(ctx context.Context) ([]Message, error)
	GetMessageCount(ctx context.Context) (*big.Int, error)
	GetSigningFee(ctx context.Context) (*big.Int, error)
	GetTokenAddress(ctx context.Context) (common.Address, error)
	TotalFeesCollected(ctx context.Context) (*big.Int, error)
}

// Writer is the write surface of the guestbook contract. Sender is the
// account the writer signs with; SignGuestbook returns the transaction
// hash, and WaitConfirmed blocks until it is mined or ctx expires.
// Once broadcast a transaction cannot be cancelled.
type Writer interface {
	Sender() common.Address
	SignGuestbook(ctx context.Context, content, username, tag string) (string, error)
	WaitConfirmed(ctx context.Context, txHash string) error
}

// Ledger combines the read and write surfaces
type Ledger interface {
	Reader
	Writer
}

// TokenGate is the ERC-20 surface consumed by the fee gate
type TokenGate interface {
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (string, error)
}

// FeePolicyKind selects between the free and fee-gated contract variants
type FeePolicyKind string

const (
	// FeeNone is the free guestbook: no token transfer on append
	FeeNone FeePolicyKind = "none"
	// FeeFixedERC20 charges a fixed token amount per append via
	// transferFrom, requiring prior approval
	FeeFixedERC20 FeePolicyKind = "erc20"
)

// FeePolicy parameterizes the contract variant at construction time,
// replacing parallel contract definitions.
type FeePolicy struct {
	Kind   FeePolicyKind
	Token  common.Address
	Amount *big.Int
}

// NoFee returns the free-guestbook policy
func NoFee() FeePolicy {
	return FeePolicy{Kind: FeeNone, Amount: big.NewInt(0)}
}

// FixedERC20Fee returns a policy charging amount (in the token's
// smallest unit) per append
func FixedERC20Fee(token common.Address, amount *big.Int) FeePolicy {
	return FeePolicy{Kind: FeeFixedERC20, Token: token, Amount: new(big.Int).Set(amount)}
}

// Gated reports whether appends require a token transfer
func (p FeePolicy) Gated() bool {
	return p.Kind == FeeFixedERC20 && p.Amount != nil && p.Amount.Sign() > 0
}

// DefaultMaxContentLength is the contract's message length cap
const DefaultMaxContentLength = 500

var addressPattern = regexp.MustCompile("^0x[a-fA-F0-9]{40}$")

// ValidAddress checks EVM address format: 0x followed by 40 hex characters
func ValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// ValidateContent enforces the contract's content rules: non-empty after
// trimming, and no longer than maxLen characters.
func ValidateContent(content string, maxLen int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content must not be empty")
	}
	if len([]rune(content)) > maxLen {
		return fmt.Errorf("content exceeds %d characters", maxLen)
	}
	return nil
}
