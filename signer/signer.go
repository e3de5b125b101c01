// Package signer constructs and signs native-currency transfer transactions.
// The Signer exclusively owns its private key for the process lifetime; it is
// the only component permitted to produce a signature, and the key is never
// logged or exposed.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/ledger"
)

// transferGasLimit is the fixed gas cost of a plain native transfer.
const transferGasLimit = 21000

// minGasPrice is the floor applied to the node's suggested price.
var minGasPrice = new(big.Int).SetUint64(params.GWei)

// Signer builds and signs native transfer transactions for a single chain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	ledger     ledger.Client
	chainID    *big.Int
	gasLimit   uint64
}

// Option configures a Signer.
type Option func(*Signer) error

// New creates a signer with the given options. A private key, a ledger
// client, and a chain id are required.
func New(opts ...Option) (*Signer, error) {
	s := &Signer{gasLimit: transferGasLimit}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, fmt.Errorf("%w: no private key configured", x402.ErrSigningFailed)
	}
	if s.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger client configured", x402.ErrSigningFailed)
	}
	if s.chainID == nil || s.chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: no chain id configured", x402.ErrSigningFailed)
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	return s, nil
}

// WithPrivateKey sets the signing key from a hex string.
func WithPrivateKey(hexKey string) Option {
	return func(s *Signer) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")
		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return fmt.Errorf("%w: malformed private key", x402.ErrSigningFailed)
		}
		s.privateKey = privateKey
		return nil
	}
}

// WithLedger sets the ledger client used for nonce, gas, and balance reads.
func WithLedger(client ledger.Client) Option {
	return func(s *Signer) error {
		s.ledger = client
		return nil
	}
}

// WithChainID sets the chain the signer produces transactions for.
func WithChainID(id int64) Option {
	return func(s *Signer) error {
		s.chainID = big.NewInt(id)
		return nil
	}
}

// Address returns the signer's account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer is bound to.
func (s *Signer) ChainID() int64 {
	return s.chainID.Int64()
}

// BuildAndSign constructs a signed native transfer of amount wei to the
// recipient. The balance is checked against amount plus the estimated fee
// before signing, so a doomed transaction never burns a nonce. Signing is
// deterministic per key for identical (recipient, amount, chain, nonce)
// parameters; the caller is responsible for submitting at most once per
// nonce.
func (s *Signer) BuildAndSign(ctx context.Context, recipient string, amount *big.Int) (*types.Transaction, error) {
	if !common.IsHexAddress(recipient) {
		return nil, fmt.Errorf("%w: malformed recipient address %q", x402.ErrInvalidInput, recipient)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", x402.ErrInvalidInput)
	}
	to := common.HexToAddress(recipient)

	gasPrice, err := s.gasPrice(ctx)
	if err != nil {
		return nil, err
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(s.gasLimit))
	total := new(big.Int).Add(amount, fee)

	balance, err := s.ledger.Balance(ctx, s.address)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(total) < 0 {
		return nil, fmt.Errorf("%w: need %s wei, have %s wei",
			x402.ErrInsufficientFunds, total, balance)
	}

	nonce, err := s.ledger.Nonce(ctx, s.address)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      s.gasLimit,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrSigningFailed, err)
	}
	return signed, nil
}

// Pay builds, signs, and submits a transfer, returning the transaction hash.
// Submission happens exactly once per signed transaction; on failure the
// caller must call Pay again so a fresh nonce is fetched.
func (s *Signer) Pay(ctx context.Context, recipient string, amount *big.Int) (string, error) {
	signed, err := s.BuildAndSign(ctx, recipient, amount)
	if err != nil {
		return "", err
	}
	if err := s.ledger.Submit(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// CheckSigning verifies the held key can produce a valid signature by signing
// a zero-value transfer to the signer's own address. The transaction is
// never submitted.
func (s *Signer) CheckSigning(ctx context.Context) error {
	nonce, err := s.ledger.Nonce(ctx, s.address)
	if err != nil {
		return err
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.address,
		Value:    big.NewInt(0),
		Gas:      s.gasLimit,
		GasPrice: minGasPrice,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return fmt.Errorf("%w: %v", x402.ErrSigningFailed, err)
	}

	sender, err := types.Sender(types.NewEIP155Signer(s.chainID), signed)
	if err != nil || sender != s.address {
		return fmt.Errorf("%w: signature does not recover to signer address", x402.ErrSigningFailed)
	}
	return nil
}

// gasPrice halves the node suggestion and applies the 1 gwei floor. Halving
// keeps micro-payments cheap on quiet testnets while the floor keeps the
// transaction minable.
func (s *Signer) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := s.ledger.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Rsh(suggested, 1)
	if price.Cmp(minGasPrice) < 0 {
		price = new(big.Int).Set(minGasPrice)
	}
	return price, nil
}
