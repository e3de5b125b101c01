// Package verify confirms claimed payments against the chain. A proof is
// accepted only when its transaction exists, is deep enough under the chain
// head, pays the expected recipient the exact expected amount on the
// expected chain, and has not been consumed for a different resource.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/ledger"
	"github.com/devcode8/fetch.ai-X-x402-integration/metrics"
)

// Status is a state of a proof-verification attempt.
type Status string

const (
	// Progress states.
	StatusReceived  Status = "received"
	StatusLocated   Status = "located"
	StatusConfirmed Status = "confirmed"
	StatusMatched   Status = "matched"

	// Terminal states.
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"

	// StatusPending means the transaction is known but lacks confirmations.
	// Terminal for now; the client should retry without re-paying.
	StatusPending Status = "pending"

	// StatusIndeterminate means the node could not be consulted. The caller
	// must retry later rather than reject.
	StatusIndeterminate Status = "indeterminate"
)

// Result is the outcome of one verification attempt. Payment is set only
// when Status is StatusAccepted; Reason only when Status is StatusRejected.
// Rejected and Indeterminate outcomes leave no persistent state behind.
type Result struct {
	Status  Status
	Reason  x402.RejectReason
	Payment *x402.VerifiedPayment
}

// DefaultConfirmationDepth is the confirmation threshold applied when none
// is configured.
const DefaultConfirmationDepth = 1

// Config configures a Verifier.
type Config struct {
	// Ledger reads chain state. Required.
	Ledger ledger.Client

	// Store is the replay-prevention set. Defaults to a fresh MemoryStore.
	Store ReplayStore

	// ConfirmationDepth is the minimum number of blocks between a
	// transaction's block and the chain head before the transaction is
	// treated as final. Defaults to DefaultConfirmationDepth.
	ConfirmationDepth uint64

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to the no-op recorder.
	Metrics metrics.Recorder
}

// Verifier drives the proof-verification state machine.
type Verifier struct {
	ledger  ledger.Client
	store   ReplayStore
	depth   uint64
	logger  *slog.Logger
	metrics metrics.Recorder

	// now is injectable for expiry tests.
	now func() time.Time
}

// New creates a verifier.
func New(cfg Config) (*Verifier, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: verifier requires a ledger client", x402.ErrInvalidInput)
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.ConfirmationDepth == 0 {
		cfg.ConfirmationDepth = DefaultConfirmationDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	return &Verifier{
		ledger:  cfg.Ledger,
		store:   cfg.Store,
		depth:   cfg.ConfirmationDepth,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     time.Now,
	}, nil
}

// Redeemed returns the recorded payment for a hash, if any. Used by the gate
// for read-only queries; only Verify may write to the set.
func (v *Verifier) Redeemed(txHash string) (*x402.VerifiedPayment, bool) {
	return v.store.Lookup(txHash)
}

// Verify runs one verification attempt for a proof against the challenge it
// answers. ch may be nil when no outstanding challenge exists for the
// resource; unless the hash was already consumed for this same resource, that
// is rejected as challenge_expired. An error return means the proof itself
// was malformed, not that the payment failed.
func (v *Verifier) Verify(ctx context.Context, proof x402.PaymentProof, ch *x402.PaymentChallenge) (Result, error) {
	start := v.now()
	result, err := v.run(ctx, proof, ch)
	if err != nil {
		return Result{}, err
	}

	outcome := string(result.Status)
	v.metrics.IncCounter(metrics.CounterVerifications, metrics.OutcomeLabels(outcome))
	v.metrics.ObserveLatency(metrics.OpVerify, v.now().Sub(start), metrics.OutcomeLabels(outcome))

	switch result.Status {
	case StatusAccepted:
		v.logger.Info("payment accepted",
			"tx", proof.TxHash, "resource", proof.ResourceID, "block", result.Payment.BlockNumber)
	case StatusRejected:
		v.logger.Warn("payment rejected",
			"tx", proof.TxHash, "resource", proof.ResourceID, "reason", result.Reason)
	default:
		v.logger.Info("payment not yet verifiable",
			"tx", proof.TxHash, "resource", proof.ResourceID, "status", result.Status)
	}
	return result, nil
}

func (v *Verifier) run(ctx context.Context, proof x402.PaymentProof, ch *x402.PaymentChallenge) (Result, error) {
	if proof.ResourceID == "" {
		return Result{}, fmt.Errorf("%w: empty resource id", x402.ErrInvalidInput)
	}
	if !isTxHash(proof.TxHash) {
		return Result{}, fmt.Errorf("%w: malformed transaction hash %q", x402.ErrInvalidInput, proof.TxHash)
	}
	hash := common.HexToHash(proof.TxHash)
	v.logger.Debug("verification state", "tx", proof.TxHash, "state", StatusReceived)

	// Replay set first: a payment already consumed for this resource is
	// accepted idempotently, one consumed for another resource can never be
	// re-credited. This also makes idempotent re-fetches immune to
	// challenge expiry.
	if existing, ok := v.store.Lookup(proof.TxHash); ok {
		if existing.ResourceID == proof.ResourceID {
			return Result{Status: StatusAccepted, Payment: existing}, nil
		}
		return rejected(x402.ReasonAlreadyConsumed), nil
	}

	if ch == nil || ch.Expired(v.now()) {
		return rejected(x402.ReasonChallengeExpired), nil
	}
	expected := ch.AmountWei()
	if expected == nil {
		return Result{}, fmt.Errorf("%w: challenge carries malformed amount %q", x402.ErrInvalidInput, ch.Amount)
	}

	// Received -> Located
	tx, pending, err := v.ledger.Transaction(ctx, hash)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return rejected(x402.ReasonUnknownTransaction), nil
		}
		return Result{Status: StatusIndeterminate}, nil
	}
	if pending {
		return Result{Status: StatusPending}, nil
	}
	v.logger.Debug("verification state", "tx", proof.TxHash, "state", StatusLocated)

	// Located -> Confirmed
	receipt, err := v.ledger.Receipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Result{Status: StatusPending}, nil
		}
		return Result{Status: StatusIndeterminate}, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return rejected(x402.ReasonTransactionFailed), nil
	}
	head, err := v.ledger.HeadBlock(ctx)
	if err != nil {
		return Result{Status: StatusIndeterminate}, nil
	}
	block := receipt.BlockNumber.Uint64()
	if head < block || head-block < v.depth {
		return Result{Status: StatusPending}, nil
	}
	v.logger.Debug("verification state", "tx", proof.TxHash, "state", StatusConfirmed)

	// Confirmed -> Matched
	if tx.ChainId().Cmp(big.NewInt(ch.ChainID)) != 0 {
		return rejected(x402.ReasonChainMismatch), nil
	}
	if tx.To() == nil || *tx.To() != common.HexToAddress(ch.Recipient) {
		return rejected(x402.ReasonRecipientMismatch), nil
	}
	if tx.Value().Cmp(expected) != 0 {
		return rejected(x402.ReasonAmountMismatch), nil
	}
	v.logger.Debug("verification state", "tx", proof.TxHash, "state", StatusMatched)

	payer, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		// A mined transaction should always recover; treat failure as a
		// transient condition rather than inventing a rejection.
		return Result{Status: StatusIndeterminate}, nil
	}

	// Matched -> Accepted: atomic check-and-record on the replay set.
	payment := &x402.VerifiedPayment{
		TxHash:      hash.Hex(),
		Payer:       payer.Hex(),
		Recipient:   ch.Recipient,
		Amount:      tx.Value(),
		ChainID:     ch.ChainID,
		BlockNumber: block,
		ResourceID:  proof.ResourceID,
	}
	recorded, won := v.store.Consume(payment)
	if !won {
		if recorded.ResourceID == proof.ResourceID {
			return Result{Status: StatusAccepted, Payment: recorded}, nil
		}
		return rejected(x402.ReasonAlreadyConsumed), nil
	}

	v.metrics.IncCounter(metrics.CounterPaymentsAccepted, metrics.OutcomeLabels(string(StatusAccepted)))
	return Result{Status: StatusAccepted, Payment: payment}, nil
}

func rejected(reason x402.RejectReason) Result {
	return Result{Status: StatusRejected, Reason: reason}
}

// isTxHash reports whether s looks like a 32-byte hex transaction hash.
func isTxHash(s string) bool {
	if len(s) != 66 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
