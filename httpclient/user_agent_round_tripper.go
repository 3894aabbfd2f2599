/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"

	"github.com/orangeslice/orangeslice-go/internal/libinfo"
)

// UserAgentRoundTripper implements http.RoundTripper interface
// and sets User-Agent HTTP header in all outgoing requests that do not have it.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// DefaultUserAgent returns the User-Agent used when none is configured (e.g. "orangeslice-go/v1.2.0").
func DefaultUserAgent() string {
	return libinfo.UserAgent()
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
// Empty userAgent means DefaultUserAgent().
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	if userAgent == "" {
		userAgent = DefaultUserAgent()
	}
	return &UserAgentRoundTripper{Delegate: delegate, UserAgent: userAgent}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(req)
}
