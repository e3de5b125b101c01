package x402

import (
	"fmt"
	"time"
)

// TimeoutConfig bounds the blocking calls the gate makes on behalf of a
// request. Every ledger operation talks to an external node and must carry
// its own deadline; a timeout surfaces as ErrLedgerUnavailable, never as a
// rejection.
type TimeoutConfig struct {
	// LedgerTimeout is the per-call deadline for blockchain node operations.
	LedgerTimeout time.Duration

	// FetchTimeout is the deadline for the downstream resource fetch that
	// runs after payment is accepted.
	FetchTimeout time.Duration
}

// DefaultTimeouts provides sensible defaults for gate operations.
var DefaultTimeouts = TimeoutConfig{
	LedgerTimeout: 10 * time.Second,
	FetchTimeout:  30 * time.Second,
}

// Validate checks that the timeout configuration is usable.
func (c TimeoutConfig) Validate() error {
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("ledger timeout must be positive, got %v", c.LedgerTimeout)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %v", c.FetchTimeout)
	}
	return nil
}
