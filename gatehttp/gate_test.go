package gatehttp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devcode8/fetch.ai-X-x402-integration/challenge"
	"github.com/devcode8/fetch.ai-X-x402-integration/metrics"
	"github.com/devcode8/fetch.ai-X-x402-integration/verify"
)

// spyRecorder captures every recorded event for assertions.
type spyRecorder struct {
	mu        sync.Mutex
	counters  map[string]int
	latencies map[string][]map[string]string
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{
		counters:  make(map[string]int),
		latencies: make(map[string][]map[string]string),
	}
}

func (s *spyRecorder) IncCounter(name string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
}

func (s *spyRecorder) ObserveLatency(name string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[name] = append(s.latencies[name], labels)
}

var _ metrics.Recorder = (*spyRecorder)(nil)

func newSpiedGate(t *testing.T, spy *spyRecorder, fetchErr error) *Gate {
	t.Helper()
	issuer, err := challenge.NewIssuer(challenge.Config{
		Recipient: testRecipient,
		Amount:    testAmount,
		ChainID:   testChainID,
	})
	if err != nil {
		t.Fatal(err)
	}
	verifier, err := verify.New(verify.Config{Ledger: newFakeChain(t)})
	if err != nil {
		t.Fatal(err)
	}
	gate, err := NewGate(&Config{
		Issuer:   issuer,
		Verifier: verifier,
		Fetch: func(ctx context.Context, resourceID string) (json.RawMessage, error) {
			if fetchErr != nil {
				return nil, fetchErr
			}
			return json.RawMessage(`{}`), nil
		},
		Metrics: spy,
	})
	if err != nil {
		t.Fatal(err)
	}
	return gate
}

func TestFetchRecordsLatencyAndRelease(t *testing.T) {
	spy := newSpyRecorder()
	gate := newSpiedGate(t, spy, nil)

	if _, err := gate.Fetch(context.Background(), "/weather/Tokyo"); err != nil {
		t.Fatal(err)
	}

	observed := spy.latencies[metrics.OpFetch]
	if len(observed) != 1 {
		t.Fatalf("fetch latency observed %d times, want 1", len(observed))
	}
	if observed[0]["outcome"] != "ok" {
		t.Errorf("fetch latency outcome = %q, want ok", observed[0]["outcome"])
	}
	if spy.counters[metrics.CounterResourcesReleased] != 1 {
		t.Errorf("released counter = %d, want 1", spy.counters[metrics.CounterResourcesReleased])
	}
}

func TestFetchFailureRecordsLatencyWithoutRelease(t *testing.T) {
	spy := newSpyRecorder()
	gate := newSpiedGate(t, spy, errors.New("upstream down"))

	if _, err := gate.Fetch(context.Background(), "/weather/Tokyo"); err == nil {
		t.Fatal("expected fetch error")
	}

	observed := spy.latencies[metrics.OpFetch]
	if len(observed) != 1 {
		t.Fatalf("fetch latency observed %d times, want 1", len(observed))
	}
	if observed[0]["outcome"] != "error" {
		t.Errorf("fetch latency outcome = %q, want error", observed[0]["outcome"])
	}
	if spy.counters[metrics.CounterResourcesReleased] != 0 {
		t.Errorf("released counter = %d, want 0 on failure", spy.counters[metrics.CounterResourcesReleased])
	}
}
