// Package gin provides a Gin-compatible adapter for the payment gate. It is
// a thin translation layer: all challenge and verification logic lives in
// the gatehttp package.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
	"github.com/devcode8/fetch.ai-X-x402-integration/gatehttp"
)

// PaymentKey is the Gin context key under which the verified payment is
// stored.
const PaymentKey = "x402_payment"

// NewMiddleware creates a Gin middleware that gates handlers behind
// payment. On success the VerifiedPayment is available via
// c.Get(PaymentKey); on failure the handler chain is aborted with the
// appropriate gate response.
func NewMiddleware(cfg *gatehttp.Config, resourceID gatehttp.ResourceIDFunc) (gin.HandlerFunc, error) {
	gate, err := gatehttp.NewGate(cfg)
	if err != nil {
		return nil, err
	}
	if resourceID == nil {
		resourceID = gatehttp.PathResourceID
	}

	return func(c *gin.Context) {
		decision, err := gate.Decide(c.Request.Context(), resourceID(c.Request), c.GetHeader(gatehttp.ProofHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, x402.ErrorResponse{
				Status: x402.StatusError,
				Reason: "invalid_input",
			})
			return
		}

		switch decision.Status {
		case gatehttp.DecisionAccepted:
			c.Set(PaymentKey, decision.Payment)
			c.Next()

		case gatehttp.DecisionPending:
			c.AbortWithStatusJSON(http.StatusAccepted, x402.PendingResponse{Status: x402.StatusPending})

		default:
			resp := x402.NewChallengeResponse(decision.Challenge)
			resp.Reason = string(decision.Reason)
			c.AbortWithStatusJSON(http.StatusPaymentRequired, resp)
		}
	}, nil
}
