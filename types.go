package x402

import (
	"context"
	"encoding/json"
	"math/big"
	"time"
)

// PaymentChallenge describes the payment a server requires before it will
// release a resource. A challenge is immutable once issued and expires after
// a fixed window.
type PaymentChallenge struct {
	// ResourceID identifies the protected resource the challenge was issued for.
	ResourceID string `json:"resource_id"`

	// Recipient is the address the payment must be sent to.
	Recipient string `json:"recipient"`

	// Amount is the required payment in atomic units (wei), encoded as a
	// decimal string. Never a floating point value.
	Amount string `json:"amount"`

	// ChainID is the chain the payment must settle on.
	ChainID int64 `json:"chain_id"`

	// Reference is a unique identifier binding a later proof to this exact
	// challenge. Distinct from the on-chain account nonce.
	Reference string `json:"reference"`

	// IssuedAt is when the challenge was created.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is when the challenge stops being redeemable.
	ExpiresAt time.Time `json:"expires_at"`
}

// AmountWei returns the challenge amount as a big integer.
// Returns nil if the amount string is malformed.
func (c *PaymentChallenge) AmountWei() *big.Int {
	amount, ok := new(big.Int).SetString(c.Amount, 10)
	if !ok {
		return nil
	}
	return amount
}

// Expired reports whether the challenge has expired as of now.
func (c *PaymentChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// PaymentProof is a client's claim that an on-chain transaction settles a
// challenge for a resource. It is never trusted until verified.
type PaymentProof struct {
	// TxHash is the hash of the settlement transaction.
	TxHash string `json:"transaction_hash"`

	// ResourceID is the resource the client wants the payment credited to.
	ResourceID string `json:"resource_id"`
}

// VerifiedPayment records an on-chain payment that passed every verification
// check. It is produced only by the payment verifier. A given transaction
// hash maps to at most one VerifiedPayment, and once consumed for a resource
// it can never be credited toward a different one.
type VerifiedPayment struct {
	TxHash      string   `json:"transaction_hash"`
	Payer       string   `json:"payer"`
	Recipient   string   `json:"recipient"`
	Amount      *big.Int `json:"-"`
	ChainID     int64    `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	ResourceID  string   `json:"resource_id"`
}

// WalletState is a point-in-time snapshot of an account read from the ledger.
// It must never be cached across a signing operation; a stale nonce makes the
// next signature unusable.
type WalletState struct {
	Address   string   `json:"address"`
	Balance   *big.Int `json:"balance"`
	NextNonce uint64   `json:"next_nonce"`
}

// FetchFunc produces the downstream resource payload once payment has been
// verified. A fetch failure is independent of payment state; an accepted
// payment is not undone by it.
type FetchFunc func(ctx context.Context, resourceID string) (json.RawMessage, error)

// Response status values used on the wire.
const (
	StatusPaymentRequired = "payment_required"
	StatusPending         = "pending"
	StatusPaid            = "paid"
	StatusError           = "error"
)

// ChallengeResponse is the 402 response body sent when payment is absent or
// has been rejected.
type ChallengeResponse struct {
	Status    string    `json:"status"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	ChainID   int64     `json:"chain_id"`
	Reference string    `json:"reference"`
	ExpiresAt time.Time `json:"expires_at"`

	// Reason is set when a submitted proof was rejected and the client must
	// pay again against this fresh challenge.
	Reason string `json:"reason,omitempty"`
}

// NewChallengeResponse builds the wire form of a challenge.
func NewChallengeResponse(c PaymentChallenge) ChallengeResponse {
	return ChallengeResponse{
		Status:    StatusPaymentRequired,
		Recipient: c.Recipient,
		Amount:    c.Amount,
		ChainID:   c.ChainID,
		Reference: c.Reference,
		ExpiresAt: c.ExpiresAt,
	}
}

// PendingResponse tells the client its payment was observed but is not yet
// confirmed. The client should poll again without re-paying.
type PendingResponse struct {
	Status string `json:"status"`
}

// PaidResponse wraps the resource payload with proof-of-access metadata.
type PaidResponse struct {
	Status      string          `json:"status"`
	TxHash      string          `json:"transaction_hash"`
	BlockNumber uint64          `json:"block_number"`
	Data        json.RawMessage `json:"data"`
}

// ErrorResponse carries a machine-readable reason code. Raw node error text
// is never leaked to the client.
type ErrorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}
