// Package gatehttp serves payment-gated resources over HTTP. Requests
// without a payment proof receive a 402 challenge; requests with a verified
// proof receive the downstream resource. Framework adapters live in the gin
// and chi subpackages.
package gatehttp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/challenge"
	"github.com/devcode8/fetch.ai-X-x402-integration/metrics"
	"github.com/devcode8/fetch.ai-X-x402-integration/verify"
)

// ProofHeader is the request header carrying the payment transaction hash.
const ProofHeader = "payment-tx-hash"

// Config holds the collaborators the gate orchestrates.
type Config struct {
	// Issuer creates and correlates payment challenges. Required.
	Issuer *challenge.Issuer

	// Verifier confirms claimed payments on chain. Required.
	Verifier *verify.Verifier

	// Fetch produces the resource payload after payment is accepted.
	// Required by NewHandler; the middleware form leaves fetching to the
	// wrapped handler.
	Fetch x402.FetchFunc

	// Timeouts bound the downstream fetch. Defaults to x402.DefaultTimeouts.
	Timeouts x402.TimeoutConfig

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to the no-op recorder.
	Metrics metrics.Recorder
}

// DecisionStatus classifies what the gate should do with a request.
type DecisionStatus int

const (
	// DecisionChallenge means payment is absent or rejected: answer 402
	// with the challenge.
	DecisionChallenge DecisionStatus = iota

	// DecisionPending means the payment is observed but unconfirmed, or the
	// ledger was unreachable: tell the client to poll without re-paying.
	DecisionPending

	// DecisionAccepted means payment verified: release the resource.
	DecisionAccepted
)

// Decision is the gate's verdict on one request.
type Decision struct {
	Status    DecisionStatus
	Challenge x402.PaymentChallenge

	// Reason is set when a submitted proof was rejected.
	Reason x402.RejectReason

	// Payment is set when Status is DecisionAccepted.
	Payment *x402.VerifiedPayment
}

// Gate orchestrates challenge issuance and payment verification for
// resource requests.
type Gate struct {
	issuer   *challenge.Issuer
	verifier *verify.Verifier
	fetch    x402.FetchFunc
	timeouts x402.TimeoutConfig
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewGate wires a gate from its collaborators.
func NewGate(cfg *Config) (*Gate, error) {
	if cfg == nil || cfg.Issuer == nil || cfg.Verifier == nil {
		return nil, fmt.Errorf("%w: gate requires an issuer and a verifier", x402.ErrInvalidInput)
	}
	timeouts := cfg.Timeouts
	if timeouts == (x402.TimeoutConfig{}) {
		timeouts = x402.DefaultTimeouts
	}
	if err := timeouts.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Gate{
		issuer:   cfg.Issuer,
		verifier: cfg.Verifier,
		fetch:    cfg.Fetch,
		timeouts: timeouts,
		logger:   logger,
		metrics:  recorder,
	}, nil
}

// Decide runs the gate for one request. proofHash is empty when the client
// has not paid yet. An error return means the input was malformed, never
// that a payment failed.
func (g *Gate) Decide(ctx context.Context, resourceID, proofHash string) (Decision, error) {
	if resourceID == "" {
		return Decision{}, fmt.Errorf("%w: empty resource id", x402.ErrInvalidInput)
	}

	if proofHash == "" {
		ch, err := g.issuer.Issue(resourceID)
		if err != nil {
			return Decision{}, err
		}
		g.metrics.IncCounter(metrics.CounterChallengesIssued, nil)
		g.logger.Info("payment required", "resource", resourceID, "reference", ch.Reference)
		return Decision{Status: DecisionChallenge, Challenge: ch}, nil
	}

	var outstanding *x402.PaymentChallenge
	if ch, ok := g.issuer.Lookup(resourceID); ok {
		outstanding = &ch
	}

	proof := x402.PaymentProof{TxHash: proofHash, ResourceID: resourceID}
	result, err := g.verifier.Verify(ctx, proof, outstanding)
	if err != nil {
		return Decision{}, err
	}

	switch result.Status {
	case verify.StatusAccepted:
		g.issuer.Settle(resourceID)
		return Decision{Status: DecisionAccepted, Payment: result.Payment}, nil

	case verify.StatusPending, verify.StatusIndeterminate:
		// Distinct from a fresh challenge: the client must not be pushed
		// into paying twice while the original payment is merely
		// unconfirmed or the node unreachable.
		return Decision{Status: DecisionPending}, nil

	default:
		ch, err := g.issuer.Issue(resourceID)
		if err != nil {
			return Decision{}, err
		}
		g.metrics.IncCounter(metrics.CounterChallengesIssued, nil)
		return Decision{Status: DecisionChallenge, Challenge: ch, Reason: result.Reason}, nil
	}
}

// Fetch invokes the downstream resource callback under the configured
// timeout. Payment state is untouched by a fetch failure.
func (g *Gate) Fetch(ctx context.Context, resourceID string) ([]byte, error) {
	if g.fetch == nil {
		return nil, fmt.Errorf("%w: no fetch callback configured", x402.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeouts.FetchTimeout)
	defer cancel()

	start := time.Now()
	data, err := g.fetch(ctx, resourceID)
	if err != nil {
		g.metrics.ObserveLatency(metrics.OpFetch, time.Since(start), metrics.OutcomeLabels("error"))
		return nil, err
	}
	g.metrics.ObserveLatency(metrics.OpFetch, time.Since(start), metrics.OutcomeLabels("ok"))
	g.metrics.IncCounter(metrics.CounterResourcesReleased, nil)
	return data, nil
}

// Logger exposes the gate's logger to adapters.
func (g *Gate) Logger() *slog.Logger {
	return g.logger
}
