package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// USDCDecimals is the decimal count of the fee token
const USDCDecimals = 6

// ERC20Client is the typed client for the fee token contract
type ERC20Client struct {
	address  common.Address
	contract *bind.BoundContract
	eth      *ethclient.Client
	chainID  *big.Int
	key      *ecdsa.PrivateKey
}

// NewERC20Client creates a typed ERC-20 client sharing an existing
// ethclient connection
func NewERC20Client(eth *ethclient.Client, tokenAddress string, chainID int64, privateKeyHex string) (*ERC20Client, error) {
	if !ValidAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token address: %s", tokenAddress)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	address := common.HexToAddress(tokenAddress)
	client := &ERC20Client{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, eth, eth, eth),
		eth:      eth,
		chainID:  big.NewInt(chainID),
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		client.key = key
	}

	return client, nil
}

// Address returns the token contract address
func (c *ERC20Client) Address() common.Address {
	return c.address
}

// Allowance returns the amount spender may transfer from owner
func (c *ERC20Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// BalanceOf returns owner's token balance
func (c *ERC20Client) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Decimals returns the token's decimal count
func (c *ERC20Client) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("decimals call failed: %w", err)
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Approve authorizes spender to transfer amount from the signer and
// returns the transaction hash
func (c *ERC20Client) Approve(ctx context.Context, spender common.Address, amount *big.Int) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("client is read-only: no signing key configured")
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return "", fmt.Errorf("approve transaction failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// FormatUnits renders an amount in the token's display units, e.g.
// 1500000 with 6 decimals renders "1.5"
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, div, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := fmt.Sprintf("%0*s", decimals, frac.String())
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}
