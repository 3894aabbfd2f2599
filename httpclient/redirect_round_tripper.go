/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/orangeslice/orangeslice-go/log"
)

// ErrTooManyRedirects is returned when the number of redirects exceeds the configured maximum.
var ErrTooManyRedirects = errors.New("too many redirects")

// RedirectRoundTripper implements http.RoundTripper interface and follows redirects (3xx responses with
// the Location header) re-issuing the request with the same method, headers and body to the new location.
// Unlike the redirect policy of http.Client, it never turns POST into GET and never drops the body.
// The http.Client using it should not follow redirects itself (see NewWithOpts).
type RedirectRoundTripper struct {
	// Delegate is the next RoundTripper in the chain.
	Delegate http.RoundTripper

	// MaxRedirects is the maximum number of redirects followed for a single request.
	MaxRedirects int

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger
}

// RedirectRoundTripperOpts represents an options for RedirectRoundTripper.
type RedirectRoundTripperOpts struct {
	MaxRedirects   int
	LoggerProvider func(ctx context.Context) log.FieldLogger
}

// NewRedirectRoundTripper creates a new RedirectRoundTripper.
func NewRedirectRoundTripper(delegate http.RoundTripper) *RedirectRoundTripper {
	return NewRedirectRoundTripperWithOpts(delegate, RedirectRoundTripperOpts{})
}

// NewRedirectRoundTripperWithOpts creates a new RedirectRoundTripper with specified options.
func NewRedirectRoundTripperWithOpts(delegate http.RoundTripper, opts RedirectRoundTripperOpts) *RedirectRoundTripper {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	return &RedirectRoundTripper{
		Delegate:       delegate,
		MaxRedirects:   opts.MaxRedirects,
		LoggerProvider: opts.LoggerProvider,
	}
}

func isRedirectStatus(code int) bool {
	return code >= http.StatusMultipleChoices && code < http.StatusBadRequest && code != http.StatusNotModified
}

// RoundTrip executes the request and follows redirects.
func (rt *RedirectRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := getLoggerOrDisabled(req.Context(), rt.LoggerProvider)

	req = req.Clone(req.Context()) // Per RoundTripper contract.
	rewindBody, err := makeRequestBodyRewindable(req)
	if err != nil {
		return nil, err
	}

	for redirects := 0; ; redirects++ {
		resp, err := rt.Delegate.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		location := resp.Header.Get("Location")
		if !isRedirectStatus(resp.StatusCode) || location == "" {
			return resp, nil
		}
		if redirects >= rt.MaxRedirects {
			drainResponseBody(resp, logger)
			return nil, fmt.Errorf("%s %s: %w (%d)", req.Method, req.URL.Redacted(), ErrTooManyRedirects, rt.MaxRedirects)
		}

		nextURL, err := req.URL.Parse(location)
		if err != nil {
			drainResponseBody(resp, logger)
			return nil, fmt.Errorf("parse redirect location %q: %w", location, err)
		}
		logger.Debug("following redirect",
			log.String("method", req.Method),
			log.String("from", req.URL.Redacted()),
			log.String("to", nextURL.Redacted()),
			log.Int("status", resp.StatusCode),
		)
		drainResponseBody(resp, logger)

		req = req.Clone(req.Context())
		req.URL = nextURL
		req.Host = ""
		if err = rewindBody(req); err != nil {
			return nil, err
		}
	}
}
