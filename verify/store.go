package verify

import (
	"strings"
	"sync"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// ReplayStore is the replay-prevention set: the durable mapping from
// transaction hash to the single resource the payment was consumed for.
// The verifier owns this set; the gate only queries it through the verifier.
type ReplayStore interface {
	// Lookup returns the recorded payment for a transaction hash.
	Lookup(txHash string) (*x402.VerifiedPayment, bool)

	// Consume records the payment unless the hash is already bound. It
	// returns the binding that holds after the call and whether this call
	// created it. The check-and-record is atomic: of two concurrent
	// consumers with different resource ids, exactly one wins.
	Consume(payment *x402.VerifiedPayment) (*x402.VerifiedPayment, bool)
}

// MemoryStore is an in-process ReplayStore.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]*x402.VerifiedPayment
}

// NewMemoryStore creates an empty replay-prevention store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]*x402.VerifiedPayment)}
}

// Lookup implements ReplayStore.
func (s *MemoryStore) Lookup(txHash string) (*x402.VerifiedPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.byHash[normalizeHash(txHash)]
	return payment, ok
}

// Consume implements ReplayStore.
func (s *MemoryStore) Consume(payment *x402.VerifiedPayment) (*x402.VerifiedPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeHash(payment.TxHash)
	if existing, ok := s.byHash[key]; ok {
		return existing, false
	}
	s.byHash[key] = payment
	return payment, true
}

// normalizeHash canonicalizes hex case so a re-submitted hash always hits
// the same entry.
func normalizeHash(h string) string {
	return strings.ToLower(h)
}

var _ ReplayStore = (*MemoryStore)(nil)
