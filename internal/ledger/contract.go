package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/base-guestbook/internal/logging"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// receiptPollInterval controls how often WaitConfirmed polls for a receipt
const receiptPollInterval = 2 * time.Second

// Client is the typed client for the guestbook contract. It implements
// Reader always and Writer when constructed with a signing key.
type Client struct {
	address  common.Address
	contract *bind.BoundContract
	eth      *ethclient.Client
	chainID  *big.Int

	key    *ecdsa.PrivateKey
	sender common.Address
}

// ClientConfig holds configuration for creating a contract client
type ClientConfig struct {
	// RPCURL is the primary RPC endpoint. Required.
	RPCURL string

	// RPCFallback is dialed when the primary is unreachable. Optional.
	RPCFallback string

	// ContractAddress is the deployed guestbook contract. Required.
	ContractAddress string

	// ChainID is the numeric EVM chain id used for transaction signing.
	ChainID int64

	// PrivateKeyHex enables the write surface when set.
	PrivateKeyHex string
}

// NewClient creates a typed guestbook contract client
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if !ValidAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	eth, err := dialWithFallback(cfg.RPCURL, cfg.RPCFallback)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(guestbookABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse guestbook ABI: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	client := &Client{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, eth, eth, eth),
		eth:      eth,
		chainID:  big.NewInt(cfg.ChainID),
	}

	if cfg.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		client.key = key
		client.sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	return client, nil
}

// dialWithFallback dials the primary endpoint, then the fallback
func dialWithFallback(primary, fallback string) (*ethclient.Client, error) {
	eth, err := ethclient.Dial(primary)
	if err == nil {
		return eth, nil
	}
	if fallback == "" {
		return nil, fmt.Errorf("failed to dial RPC %s: %w", primary, err)
	}

	logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"primary":  primary,
		"fallback": fallback,
	}).Warn("Primary RPC unreachable, using fallback")

	eth, err = ethclient.Dial(fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to dial fallback RPC %s: %w", fallback, err)
	}
	return eth, nil
}

// Address returns the contract address
func (c *Client) Address() common.Address {
	return c.address
}

// Eth returns the underlying RPC client so other typed clients can share
// the connection
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Sender returns the account the client signs transactions with.
// Zero address when the client is read-only.
func (c *Client) Sender() common.Address {
	return c.sender
}

// CanWrite reports whether the client holds a signing key
func (c *Client) CanWrite() bool {
	return c.key != nil
}

// GetAllMessages returns the full ordered message sequence.
// Unbounded by contract design; pagination happens off-chain.
func (c *Client) GetAllMessages(ctx context.Context) ([]Message, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAllMessages"); err != nil {
		return nil, fmt.Errorf("getAllMessages call failed: %w", err)
	}
	messages := *abi.ConvertType(out[0], new([]Message)).(*[]Message)
	return messages, nil
}

// GetMessageCount returns the number of appended messages
func (c *Client) GetMessageCount(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getMessageCount"); err != nil {
		return nil, fmt.Errorf("getMessageCount call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetSigningFee returns the fee per append in the token's smallest unit
func (c *Client) GetSigningFee(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getSigningFee"); err != nil {
		return nil, fmt.Errorf("getSigningFee call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// GetTokenAddress returns the fee token contract address
func (c *Client) GetTokenAddress(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getUSDCAddress"); err != nil {
		return common.Address{}, fmt.Errorf("getUSDCAddress call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// TotalFeesCollected returns the cumulative fees held by the contract
func (c *Client) TotalFeesCollected(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "totalFeesCollected"); err != nil {
		return nil, fmt.Errorf("totalFeesCollected call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Owner returns the contract owner authorized to withdraw fees
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "owner"); err != nil {
		return common.Address{}, fmt.Errorf("owner call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// SignGuestbook appends a message on-chain and returns the transaction
// hash. The append is not final until WaitConfirmed succeeds.
func (c *Client) SignGuestbook(ctx context.Context, content, username, tag string) (string, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := c.contract.Transact(opts, "signGuestbook", content, username, tag)
	if err != nil {
		return "", fmt.Errorf("signGuestbook transaction failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// WithdrawFees transfers collected fees to the owner. Reverts on-chain
// for any caller other than the owner.
func (c *Client) WithdrawFees(ctx context.Context) (string, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return "", err
	}

	tx, err := c.contract.Transact(opts, "withdrawFees")
	if err != nil {
		return "", fmt.Errorf("withdrawFees transaction failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// WaitConfirmed blocks until the transaction is mined, returning an
// error if it reverted or ctx expired first
func (c *Client) WaitConfirmed(ctx context.Context, txHash string) error {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", txHash)
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("failed to fetch receipt for %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// transactOpts builds keyed transact options for the configured sender
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.key == nil {
		return nil, fmt.Errorf("client is read-only: no signing key configured")
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}
