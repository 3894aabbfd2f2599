/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient builds http.Client instances for calling remote functions.
// The transport is a chain of round trippers: redirect following (the same method and body are re-sent),
// logging, metrics, User-Agent, request ID and, optionally, a gate.
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/log"
)

// DefaultRequestType is used in logs and metrics when no request type is specified.
const DefaultRequestType = "unknown"

// Opts provides options for NewWithOpts and MustWithOpts functions.
type Opts struct {
	// UserAgent is a user agent string. It takes precedence over Config.UserAgent.
	UserAgent string

	// RequestType is a type of request (e.g. "b2b", "ai") used in logs and metrics.
	RequestType string

	// Delegate is the next RoundTripper in the chain. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	// LoggerProvider is a function that provides a context-specific logger.
	// By default, logger from the context (see NewContextWithLogger) is used.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// RequestIDProvider is a function that provides a request ID.
	RequestIDProvider func(ctx context.Context) string

	// Collector is a metrics collector. Used only if Config.Metrics.Enabled is true.
	Collector MetricsCollector

	// Gate, if set, sends each HTTP request (every redirect hop separately) through the gate.
	Gate *gate.Gate
}

// New creates a new http.Client with the round trippers chain configured by cfg.
func New(cfg *Config) (*http.Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// Must creates a new http.Client and panics if any error occurs.
func Must(cfg *Config) *http.Client {
	client, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// NewWithOpts creates a new http.Client with the round trippers chain configured by cfg and options.
// The chain (from outermost): redirect, logging, metrics, user agent, request id, gate, delegate.
func NewWithOpts(cfg *Config, opts Opts) (*http.Client, error) {
	if cfg.Log.Enabled && cfg.Log.Mode != "" && !cfg.Log.Mode.IsValid() {
		return nil, fmt.Errorf("unknown logging mode %q", cfg.Log.Mode)
	}

	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if opts.Gate != nil {
		delegate = NewGateRoundTripper(delegate, opts.Gate)
	}

	delegate = NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{
		RequestIDProvider: opts.RequestIDProvider,
	})

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = cfg.UserAgent
	}
	delegate = NewUserAgentRoundTripper(delegate, userAgent)

	if cfg.Metrics.Enabled && opts.Collector != nil {
		delegate = NewMetricsRoundTripperWithOpts(delegate, MetricsRoundTripperOpts{
			RequestType: opts.RequestType,
			Collector:   opts.Collector,
		})
	}

	if cfg.Log.Enabled {
		logOpts := cfg.Log.TransportOpts()
		logOpts.LoggerProvider = opts.LoggerProvider
		reqType := opts.RequestType
		if reqType == "" {
			reqType = DefaultRequestType
		}
		delegate = NewLoggingRoundTripperWithOpts(delegate, reqType, logOpts)
	}

	if cfg.Redirects.Enabled {
		delegate = NewRedirectRoundTripperWithOpts(delegate, RedirectRoundTripperOpts{
			MaxRedirects:   cfg.Redirects.MaxRedirects,
			LoggerProvider: opts.LoggerProvider,
		})
	}

	return &http.Client{
		Transport: delegate,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Redirects are either followed by RedirectRoundTripper or returned to the caller as is.
			return http.ErrUseLastResponse
		},
	}, nil
}

// MustWithOpts creates a new http.Client with options and panics if any error occurs.
func MustWithOpts(cfg *Config, opts Opts) *http.Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}
