// Package chi provides a Chi-compatible adapter for the payment gate. Chi
// middleware uses the stdlib http.Handler shape, so this package only adds
// the CORS preflight bypass Chi routers conventionally expect.
package chi

import (
	"net/http"

	"github.com/devcode8/fetch.ai-X-x402-integration/gatehttp"
)

// NewMiddleware creates a Chi-compatible payment gate middleware. OPTIONS
// requests bypass the gate for CORS preflight support; everything else is
// gated exactly like gatehttp.NewMiddleware.
func NewMiddleware(cfg *gatehttp.Config, resourceID gatehttp.ResourceIDFunc) (func(http.Handler) http.Handler, error) {
	gated, err := gatehttp.NewMiddleware(cfg, resourceID)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		wrapped := gated(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}, nil
}
