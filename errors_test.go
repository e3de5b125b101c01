package x402

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejectionReason(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason RejectReason
		wantOK     bool
	}{
		{
			name:       "direct rejection",
			err:        Reject(ReasonAmountMismatch),
			wantReason: ReasonAmountMismatch,
			wantOK:     true,
		},
		{
			name:       "wrapped rejection",
			err:        fmt.Errorf("verify: %w", Reject(ReasonAlreadyConsumed)),
			wantReason: ReasonAlreadyConsumed,
			wantOK:     true,
		},
		{
			name:   "sentinel error is not a rejection",
			err:    ErrLedgerUnavailable,
			wantOK: false,
		},
		{
			name:   "nil error",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := RejectionReason(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("RejectionReason() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && reason != tt.wantReason {
				t.Errorf("RejectionReason() = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestRejectionErrorMessage(t *testing.T) {
	err := Reject(ReasonRecipientMismatch)
	want := "payment rejected: recipient_mismatch"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("balance lookup: %w", ErrLedgerUnavailable)
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Error("wrapped ErrLedgerUnavailable not detected by errors.Is")
	}
}
