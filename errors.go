package x402

import (
	"errors"
	"fmt"
)

// Standard error definitions for the payment gate protocol.

var (
	// ErrInvalidInput indicates a malformed resource id or proof.
	// User-visible and non-retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLedgerUnavailable indicates the blockchain node could not be
	// reached or timed out. Retryable; callers must never treat it as
	// "payment invalid".
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrInsufficientFunds indicates the payer's balance cannot cover the
	// payment amount plus the estimated fee. Raised before signing so no
	// nonce is burned on a doomed transaction.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSigningFailed indicates the signing key is absent or malformed, or
	// signing itself failed. Fatal for the payment attempt.
	ErrSigningFailed = errors.New("signing failed")

	// ErrPaymentPending indicates the payment transaction exists but does
	// not yet have enough confirmations. Retryable without re-payment.
	ErrPaymentPending = errors.New("payment pending")
)

// RejectReason is a machine-readable code explaining why a payment proof was
// rejected. Rejections are final: the client must obtain a fresh challenge
// and pay again.
type RejectReason string

const (
	// ReasonUnknownTransaction means the transaction hash was not found on chain.
	ReasonUnknownTransaction RejectReason = "unknown_transaction"

	// ReasonTransactionFailed means the transaction reverted on chain.
	ReasonTransactionFailed RejectReason = "transaction_failed"

	// ReasonAmountMismatch means the transaction value does not exactly
	// match the challenge amount.
	ReasonAmountMismatch RejectReason = "amount_mismatch"

	// ReasonRecipientMismatch means the transaction pays a different
	// address than the challenge recipient.
	ReasonRecipientMismatch RejectReason = "recipient_mismatch"

	// ReasonChainMismatch means the transaction settled on a different
	// chain than the challenge requires.
	ReasonChainMismatch RejectReason = "chain_mismatch"

	// ReasonAlreadyConsumed means the transaction was already credited
	// toward a different resource.
	ReasonAlreadyConsumed RejectReason = "already_consumed"

	// ReasonChallengeExpired means no outstanding challenge exists for the
	// resource, or the one the proof answers has expired.
	ReasonChallengeExpired RejectReason = "challenge_expired"
)

// RejectionError is a terminal verification failure carrying its reason code.
type RejectionError struct {
	Reason RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("payment rejected: %s", e.Reason)
}

// Reject builds a RejectionError for the given reason.
func Reject(reason RejectReason) error {
	return &RejectionError{Reason: reason}
}

// RejectionReason extracts the reason code from an error chain.
// The second return is false if the error is not a rejection.
func RejectionReason(err error) (RejectReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
