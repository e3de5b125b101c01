package payclient

import (
	"errors"
	"math/big"
	"net/http"
	"time"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/ledger"
	"github.com/devcode8/fetch.ai-X-x402-integration/signer"
)

// Client is an HTTP client that transparently settles payment challenges.
// It wraps a standard http.Client whose transport is a payclient.Transport.
type Client struct {
	*http.Client
}

// Option configures a Client.
type Option func(*Client) error

// NewClient creates a payment-settling HTTP client. A signer, a ledger, and
// a spending limit are required.
func NewClient(opts ...Option) (*Client, error) {
	client := &Client{Client: &http.Client{}}
	client.Transport = &Transport{Base: http.DefaultTransport}

	for _, opt := range opts {
		if err := opt(client); err != nil {
			return nil, err
		}
	}

	transport := client.transport()
	if transport.Signer == nil {
		return nil, errors.New("payclient: a signer is required")
	}
	if transport.Ledger == nil {
		return nil, errors.New("payclient: a ledger client is required")
	}
	if transport.MaxAmount == nil || transport.MaxAmount.Sign() <= 0 {
		return nil, errors.New("payclient: a positive spending limit is required")
	}
	return client, nil
}

func (c *Client) transport() *Transport {
	return c.Transport.(*Transport)
}

// WithHTTPClient sets a custom underlying HTTP client. Its transport becomes
// the base the paying transport wraps.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		transport := c.transport()
		transport.Base = httpClient.Transport
		if transport.Base == nil {
			transport.Base = http.DefaultTransport
		}
		c.Client = httpClient
		c.Transport = transport
		return nil
	}
}

// WithSigner sets the payment signer.
func WithSigner(s *signer.Signer) Option {
	return func(c *Client) error {
		c.transport().Signer = s
		return nil
	}
}

// WithLedger sets the ledger client used for confirmation polling.
func WithLedger(l ledger.Client) Option {
	return func(c *Client) error {
		c.transport().Ledger = l
		return nil
	}
}

// WithMaxAmount sets the per-request spending limit from a decimal ether
// string, e.g. "0.0001".
func WithMaxAmount(ether string) Option {
	return func(c *Client) error {
		wei, err := x402.EtherToWei(ether)
		if err != nil {
			return err
		}
		c.transport().MaxAmount = wei
		return nil
	}
}

// WithMaxAmountWei sets the per-request spending limit in wei.
func WithMaxAmountWei(wei *big.Int) Option {
	return func(c *Client) error {
		c.transport().MaxAmount = wei
		return nil
	}
}

// WithConfirmationDepth sets how deep a payment must be buried before the
// request is retried.
func WithConfirmationDepth(depth uint64) Option {
	return func(c *Client) error {
		c.transport().ConfirmationDepth = depth
		return nil
	}
}

// WithPollInterval sets the confirmation polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) error {
		c.transport().PollInterval = interval
		return nil
	}
}

// GetPaid fetches a gated resource and returns the typed paid response.
func (c *Client) GetPaid(url string) (x402.PaidResponse, error) {
	return Get(c.Client, url)
}
