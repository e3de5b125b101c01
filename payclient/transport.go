// Package payclient is an HTTP client that settles payment challenges
// automatically. When a request comes back 402 it pays the challenge on
// chain, waits for confirmations, and retries the request with the
// transaction hash attached.
package payclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/gatehttp"
	"github.com/devcode8/fetch.ai-X-x402-integration/ledger"
	"github.com/devcode8/fetch.ai-X-x402-integration/retry"
	"github.com/devcode8/fetch.ai-X-x402-integration/signer"
)

// ErrAmountExceedsLimit indicates a challenge demanded more than the
// configured spending limit. Nothing is paid when this is returned.
var ErrAmountExceedsLimit = errors.New("payclient: challenge amount exceeds spending limit")

// ErrChainMismatch indicates a challenge named a chain the signer is not
// configured for.
var ErrChainMismatch = errors.New("payclient: challenge chain does not match signer")

// ErrConfirmationTimeout indicates the payment was submitted but did not
// confirm within the polling budget. The transaction hash is included in the
// error text so the payment can be redeemed manually.
var ErrConfirmationTimeout = errors.New("payclient: payment confirmation timed out")

// Transport is an http.RoundTripper that pays 402 challenges. It wraps a
// base transport and is transparent for any response other than 402.
type Transport struct {
	// Base performs the actual requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Signer pays challenges. Required.
	Signer *signer.Signer

	// Ledger is polled for payment confirmations. Required.
	Ledger ledger.Client

	// MaxAmount is the per-request spending limit in wei. Challenges above
	// it fail with ErrAmountExceedsLimit. Required, must be positive.
	MaxAmount *big.Int

	// ConfirmationDepth payments must reach before the retry. Defaults to 1.
	ConfirmationDepth uint64

	// PollInterval between confirmation checks. Defaults to 2s.
	PollInterval time.Duration

	// MaxPolls bounds the confirmation wait. Defaults to 30.
	MaxPolls int
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) pollInterval() time.Duration {
	if t.PollInterval > 0 {
		return t.PollInterval
	}
	return 2 * time.Second
}

func (t *Transport) maxPolls() int {
	if t.MaxPolls > 0 {
		return t.MaxPolls
	}
	return 30
}

func (t *Transport) depth() uint64 {
	if t.ConfirmationDepth > 0 {
		return t.ConfirmationDepth
	}
	return 1
}

// RoundTrip implements http.RoundTripper. Only bodyless requests can be
// retried after payment; requests with a body pass through untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired || req.Body != nil {
		return resp, nil
	}
	if t.Signer == nil || t.Ledger == nil || t.MaxAmount == nil {
		return resp, nil
	}

	challenge, err := decodeChallenge(resp)
	if err != nil {
		return nil, err
	}

	txHash, err := t.pay(req, challenge)
	if err != nil {
		return nil, err
	}

	if err := t.awaitConfirmation(req, txHash); err != nil {
		return nil, err
	}

	return t.redeem(req, txHash)
}

// decodeChallenge parses and drains the 402 response.
func decodeChallenge(resp *http.Response) (x402.ChallengeResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return x402.ChallengeResponse{}, fmt.Errorf("payclient: read challenge: %w", err)
	}
	var challenge x402.ChallengeResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return x402.ChallengeResponse{}, fmt.Errorf("payclient: decode challenge: %w", err)
	}
	if challenge.Recipient == "" || challenge.Amount == "" {
		return x402.ChallengeResponse{}, fmt.Errorf("%w: challenge missing recipient or amount", x402.ErrInvalidInput)
	}
	return challenge, nil
}

// pay checks the spending guard and settles the challenge on chain.
func (t *Transport) pay(req *http.Request, challenge x402.ChallengeResponse) (string, error) {
	amount, ok := new(big.Int).SetString(challenge.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: challenge amount %q", x402.ErrInvalidInput, challenge.Amount)
	}
	if amount.Cmp(t.MaxAmount) > 0 {
		return "", fmt.Errorf("%w: %s wei > limit %s wei", ErrAmountExceedsLimit, amount, t.MaxAmount)
	}
	if challenge.ChainID != t.Signer.ChainID() {
		return "", fmt.Errorf("%w: challenge chain %d, signer chain %d",
			ErrChainMismatch, challenge.ChainID, t.Signer.ChainID())
	}

	return t.Signer.Pay(req.Context(), challenge.Recipient, amount)
}

// awaitConfirmation polls until the payment is buried ConfirmationDepth
// blocks deep. Ledger reads go through the retry helper so a transient node
// outage does not abort a payment that is already on chain.
func (t *Transport) awaitConfirmation(req *http.Request, txHash string) error {
	ctx := req.Context()
	hash := common.HexToHash(txHash)

	for poll := 0; poll < t.maxPolls(); poll++ {
		receipt, err := retry.WithLedgerRetry(ctx, func() (*types.Receipt, error) {
			return t.Ledger.Receipt(ctx, hash)
		})
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			// Not mined yet.
		case err != nil:
			return err
		default:
			head, err := retry.WithLedgerRetry(ctx, func() (uint64, error) {
				return t.Ledger.HeadBlock(ctx)
			})
			if err != nil {
				return err
			}
			block := receipt.BlockNumber.Uint64()
			if head >= block && head-block >= t.depth() {
				return nil
			}
		}

		select {
		case <-time.After(t.pollInterval()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: tx %s", ErrConfirmationTimeout, txHash)
}

// redeem replays the request with the payment proof attached. A 202 means
// the server has not seen enough confirmations yet, so redemption polls
// rather than failing or paying again.
func (t *Transport) redeem(req *http.Request, txHash string) (*http.Response, error) {
	for poll := 0; ; poll++ {
		retry := req.Clone(req.Context())
		retry.Header.Set(gatehttp.ProofHeader, txHash)

		resp, err := t.base().RoundTrip(retry)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusAccepted || poll >= t.maxPolls() {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-time.After(t.pollInterval()):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
}

// decodePaid is a convenience for callers that want the typed paid response.
func decodePaid(resp *http.Response) (x402.PaidResponse, error) {
	defer resp.Body.Close()
	var paid x402.PaidResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&paid); err != nil {
		return x402.PaidResponse{}, fmt.Errorf("payclient: decode response: %w", err)
	}
	return paid, nil
}

// Get fetches a gated resource with a one-shot client. It is the programmatic
// equivalent of curl plus a wallet: issue the request, pay if challenged, and
// return the paid payload.
func Get(client *http.Client, url string) (x402.PaidResponse, error) {
	resp, err := client.Get(url)
	if err != nil {
		return x402.PaidResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return x402.PaidResponse{}, fmt.Errorf("payclient: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return decodePaid(resp)
}
