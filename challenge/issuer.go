// Package challenge issues payment challenges and tracks the outstanding
// ones so a later proof can be correlated back to the exact amount and
// recipient the server expects. Issuance touches no network: it is pure
// bookkeeping over the configured payment constants.
package challenge

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// DefaultTTL is the challenge validity window applied when none is
// configured.
const DefaultTTL = 5 * time.Minute

var validate = validator.New()

// Config holds the payment constants every challenge is issued with.
type Config struct {
	// Recipient is the address payments must be sent to.
	Recipient string `validate:"required,eth_addr"`

	// Amount is the required payment in human-readable ETH (e.g.
	// "0.00000001"). Converted exactly to wei at construction.
	Amount string `validate:"required"`

	// ChainID is the chain payments must settle on.
	ChainID int64 `validate:"required,gt=0"`

	// TTL is how long an issued challenge stays redeemable.
	// Defaults to DefaultTTL.
	TTL time.Duration
}

// Issuer creates challenges and keeps the outstanding-challenges table.
// Expired entries are dropped lazily when looked up, not by background
// eviction.
type Issuer struct {
	cfg       Config
	amountWei *big.Int

	mu   sync.Mutex
	open map[string]x402.PaymentChallenge

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewIssuer validates the configuration and creates an issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrInvalidInput, err)
	}
	amountWei, err := x402.EtherToWei(cfg.Amount)
	if err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Issuer{
		cfg:       cfg,
		amountWei: amountWei,
		open:      make(map[string]x402.PaymentChallenge),
		now:       time.Now,
	}, nil
}

// AmountWei returns the configured payment amount in wei.
func (i *Issuer) AmountWei() *big.Int {
	return new(big.Int).Set(i.amountWei)
}

// Issue returns the payment challenge for a resource. An outstanding
// unexpired challenge is reused so the client is never asked to pay twice
// for the same pending request; otherwise a fresh challenge with a unique
// reference is recorded and returned.
func (i *Issuer) Issue(resourceID string) (x402.PaymentChallenge, error) {
	if resourceID == "" {
		return x402.PaymentChallenge{}, fmt.Errorf("%w: empty resource id", x402.ErrInvalidInput)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if existing, ok := i.open[resourceID]; ok && !existing.Expired(now) {
		return existing, nil
	}

	ch := x402.PaymentChallenge{
		ResourceID: resourceID,
		Recipient:  i.cfg.Recipient,
		Amount:     i.amountWei.String(),
		ChainID:    i.cfg.ChainID,
		Reference:  uuid.NewString(),
		IssuedAt:   now,
		ExpiresAt:  now.Add(i.cfg.TTL),
	}
	i.open[resourceID] = ch
	return ch, nil
}

// Lookup returns the outstanding challenge for a resource. An expired entry
// is dropped and reported as absent; the caller should treat a proof against
// it as requiring a fresh challenge.
func (i *Issuer) Lookup(resourceID string) (x402.PaymentChallenge, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	ch, ok := i.open[resourceID]
	if !ok {
		return x402.PaymentChallenge{}, false
	}
	if ch.Expired(i.now()) {
		delete(i.open, resourceID)
		return x402.PaymentChallenge{}, false
	}
	return ch, true
}

// Settle removes the outstanding challenge for a resource once its payment
// has been accepted.
func (i *Issuer) Settle(resourceID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.open, resourceID)
}

// Outstanding reports how many challenges are currently recorded, including
// expired entries not yet dropped.
func (i *Issuer) Outstanding() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.open)
}
