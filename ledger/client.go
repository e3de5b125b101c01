// Package ledger provides a thin synchronous facade over a blockchain node.
// Every operation applies a bounded per-call timeout; node or network
// failures surface as x402.ErrLedgerUnavailable, which callers must treat as
// retryable rather than as proof that a payment is invalid.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// ErrNotFound indicates the requested transaction or receipt does not exist
// on chain. Distinct from node unavailability: not-found is a definitive
// answer from a reachable node.
var ErrNotFound = errors.New("not found on chain")

// Client is the read/submit surface the payment components need from a
// blockchain node.
type Client interface {
	// Balance returns the current balance of the address in wei.
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)

	// Nonce returns the next usable account nonce, including pending
	// transactions.
	Nonce(ctx context.Context, addr common.Address) (uint64, error)

	// GasPrice returns the node's suggested gas price in wei.
	GasPrice(ctx context.Context) (*big.Int, error)

	// ChainID returns the chain identifier of the connected node.
	ChainID(ctx context.Context) (*big.Int, error)

	// HeadBlock returns the number of the most recent block.
	HeadBlock(ctx context.Context) (uint64, error)

	// Transaction looks up a transaction by hash. pending is true when the
	// transaction is known but not yet mined. Returns ErrNotFound when the
	// node does not know the hash.
	Transaction(ctx context.Context, hash common.Hash) (tx *types.Transaction, pending bool, err error)

	// Receipt returns the receipt of a mined transaction, or ErrNotFound
	// while the transaction is unmined.
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	// Submit broadcasts a signed transaction. Never retried blindly by
	// callers: a retry must re-fetch a fresh nonce first.
	Submit(ctx context.Context, tx *types.Transaction) error

	// Wallet reads a balance and nonce snapshot for the address.
	Wallet(ctx context.Context, addr common.Address) (x402.WalletState, error)

	// Close releases the underlying connection.
	Close()
}

// EVMClient implements Client against an EVM JSON-RPC node.
type EVMClient struct {
	eth      *ethclient.Client
	timeouts x402.TimeoutConfig
}

// Dial connects to an EVM node and returns a ledger client using the given
// per-call timeouts.
func Dial(rpcURL string, timeouts x402.TimeoutConfig) (*EVMClient, error) {
	if err := timeouts.Validate(); err != nil {
		return nil, err
	}
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", x402.ErrLedgerUnavailable, rpcURL, err)
	}
	return &EVMClient{eth: eth, timeouts: timeouts}, nil
}

// NewEVMClient wraps an existing ethclient connection.
func NewEVMClient(eth *ethclient.Client, timeouts x402.TimeoutConfig) *EVMClient {
	return &EVMClient{eth: eth, timeouts: timeouts}
}

func (c *EVMClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeouts.LedgerTimeout)
}

// Balance implements Client.
func (c *EVMClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, classify("balance", err)
	}
	return balance, nil
}

// Nonce implements Client.
func (c *EVMClient) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, classify("nonce", err)
	}
	return nonce, nil
}

// GasPrice implements Client.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify("gas price", err)
	}
	return price, nil
}

// ChainID implements Client.
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, classify("chain id", err)
	}
	return id, nil
}

// HeadBlock implements Client.
func (c *EVMClient) HeadBlock(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, classify("head block", err)
	}
	return head, nil
}

// Transaction implements Client.
func (c *EVMClient) Transaction(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	tx, pending, err := c.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, false, classify("transaction", err)
	}
	return tx, pending, nil
}

// Receipt implements Client.
func (c *EVMClient) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	receipt, err := c.eth.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, classify("receipt", err)
	}
	return receipt, nil
}

// Submit implements Client.
func (c *EVMClient) Submit(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return classify("submit", err)
	}
	return nil
}

// Wallet implements Client. The snapshot is read fresh on every call; it is
// never cached across a signing operation.
func (c *EVMClient) Wallet(ctx context.Context, addr common.Address) (x402.WalletState, error) {
	balance, err := c.Balance(ctx, addr)
	if err != nil {
		return x402.WalletState{}, err
	}
	nonce, err := c.Nonce(ctx, addr)
	if err != nil {
		return x402.WalletState{}, err
	}
	return x402.WalletState{
		Address:   addr.Hex(),
		Balance:   balance,
		NextNonce: nonce,
	}, nil
}

// Close implements Client.
func (c *EVMClient) Close() {
	c.eth.Close()
}

// classify maps node errors into the gate's taxonomy. A definitive not-found
// answer stays distinguishable from an unreachable node.
func classify(op string, err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %v", x402.ErrLedgerUnavailable, op, err)
}
