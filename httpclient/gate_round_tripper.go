/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"

	"github.com/orangeslice/orangeslice-go/gate"
)

// GateRoundTripper implements http.RoundTripper interface and sends each request through gate.Gate,
// so no more than the gate's concurrency requests are in flight and their starts are spaced by the gate's delay.
// The slot is held until the response headers are received; reading the body is not covered.
// Use gate.Call around the whole call when the body must be read under the slot as well.
type GateRoundTripper struct {
	Delegate http.RoundTripper
	Gate     *gate.Gate
}

// NewGateRoundTripper creates a new GateRoundTripper.
func NewGateRoundTripper(delegate http.RoundTripper, g *gate.Gate) *GateRoundTripper {
	return &GateRoundTripper{Delegate: delegate, Gate: g}
}

// RoundTrip waits for the gate and executes the request.
func (rt *GateRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	return gate.Call(r.Context(), rt.Gate, func(ctx context.Context) (*http.Response, error) {
		return rt.Delegate.RoundTrip(r)
	})
}
