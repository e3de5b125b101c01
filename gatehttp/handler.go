package gatehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key under which the middleware stores the
// request's VerifiedPayment.
const PaymentContextKey = contextKey("x402_payment")

// PaymentFromContext returns the verified payment stored by the middleware.
func PaymentFromContext(ctx context.Context) (*x402.VerifiedPayment, bool) {
	payment, ok := ctx.Value(PaymentContextKey).(*x402.VerifiedPayment)
	return payment, ok
}

// ResourceIDFunc derives the resource identifier from a request.
type ResourceIDFunc func(*http.Request) string

// PathResourceID identifies resources by URL path.
func PathResourceID(r *http.Request) string {
	return r.URL.Path
}

// QueryResourceID identifies resources by path plus one query parameter,
// e.g. a weather endpoint keyed by location.
func QueryResourceID(param string) ResourceIDFunc {
	return func(r *http.Request) string {
		value := r.URL.Query().Get(param)
		if value == "" {
			return ""
		}
		return r.URL.Path + "/" + value
	}
}

// NewHandler returns an http.Handler that gates the configured Fetch
// callback behind payment. resourceID defaults to PathResourceID.
func NewHandler(cfg *Config, resourceID ResourceIDFunc) (http.Handler, error) {
	gate, err := NewGate(cfg)
	if err != nil {
		return nil, err
	}
	if gate.fetch == nil {
		return nil, errors.New("gatehttp: NewHandler requires a fetch callback")
	}
	if resourceID == nil {
		resourceID = PathResourceID
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, ok := decide(gate, resourceID, w, r)
		if !ok {
			return
		}

		data, err := gate.Fetch(r.Context(), decision.Payment.ResourceID)
		if err != nil {
			// The payment stays consumed; a downstream failure is not a
			// payment failure.
			gate.logger.Error("resource fetch failed", "resource", decision.Payment.ResourceID, "error", err)
			writeJSON(w, http.StatusBadGateway, x402.ErrorResponse{
				Status: x402.StatusError,
				Reason: "fetch_failed",
			})
			return
		}

		writeJSON(w, http.StatusOK, x402.PaidResponse{
			Status:      x402.StatusPaid,
			TxHash:      decision.Payment.TxHash,
			BlockNumber: decision.Payment.BlockNumber,
			Data:        data,
		})
	}), nil
}

// NewMiddleware returns middleware that runs the payment gate and, on
// acceptance, invokes the next handler with the VerifiedPayment stored in
// the request context. The wrapped handler is responsible for producing the
// resource payload.
func NewMiddleware(cfg *Config, resourceID ResourceIDFunc) (func(http.Handler) http.Handler, error) {
	gate, err := NewGate(cfg)
	if err != nil {
		return nil, err
	}
	if resourceID == nil {
		resourceID = PathResourceID
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, ok := decide(gate, resourceID, w, r)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), PaymentContextKey, decision.Payment)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// decide runs the gate for the request and writes every non-accepted
// outcome. Returns the decision and true only when the handler should
// proceed to release the resource.
func decide(gate *Gate, resourceID ResourceIDFunc, w http.ResponseWriter, r *http.Request) (Decision, bool) {
	decision, err := gate.Decide(r.Context(), resourceID(r), r.Header.Get(ProofHeader))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, x402.ErrorResponse{
			Status: x402.StatusError,
			Reason: "invalid_input",
		})
		return Decision{}, false
	}

	switch decision.Status {
	case DecisionAccepted:
		return decision, true

	case DecisionPending:
		writeJSON(w, http.StatusAccepted, x402.PendingResponse{Status: x402.StatusPending})
		return Decision{}, false

	default:
		resp := x402.NewChallengeResponse(decision.Challenge)
		resp.Reason = string(decision.Reason)
		writeJSON(w, http.StatusPaymentRequired, resp)
		return Decision{}, false
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
