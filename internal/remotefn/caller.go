/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package remotefn calls remote functions ("POST <url>" with a JSON payload and a JSON response)
// through a gate, so the whole call (sending the request, following redirects and reading the response)
// holds one admission slot and starts no earlier than the rate limiter allows.
package remotefn

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/httpclient"
	"github.com/orangeslice/orangeslice-go/log"
	"github.com/orangeslice/orangeslice-go/restapi"
)

var validate = validator.New()

// Opts represents options for Caller.
type Opts struct {
	// Name of the caller. It is used as the gate name and as the HTTP request type.
	Name string

	// Logger is used when the context has no logger (see httpclient.NewContextWithLogger).
	Logger log.FieldLogger

	// GateMetricsCollector collects metrics of the gate.
	GateMetricsCollector gate.MetricsCollector

	// HTTPMetricsCollector collects metrics of HTTP requests. Used only if metrics are enabled in HTTP client config.
	HTTPMetricsCollector httpclient.MetricsCollector

	// Transport is the innermost http.RoundTripper. A clone of http.DefaultTransport is used by default.
	Transport http.RoundTripper
}

// Caller sends calls of a single remote function.
type Caller struct {
	url        string
	gate       *gate.Gate
	httpClient *http.Client
	logger     log.FieldLogger
	opts       Opts
}

// New creates a new Caller.
func New(url string, gateCfg *gate.Config, httpCfg *httpclient.Config, opts Opts) (*Caller, error) {
	if err := ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%s url: %w", opts.Name, err)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	g, err := gate.NewFromConfig(gateCfg, gate.Opts{
		Name:             opts.Name,
		Logger:           opts.Logger,
		MetricsCollector: opts.GateMetricsCollector,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s gate: %w", opts.Name, err)
	}
	logger := opts.Logger
	httpClient, err := httpclient.NewWithOpts(httpCfg, httpclient.Opts{
		RequestType: opts.Name,
		Delegate:    opts.Transport,
		LoggerProvider: func(ctx context.Context) log.FieldLogger {
			if l := httpclient.GetLoggerFromContext(ctx); l != nil {
				return l
			}
			return logger
		},
		Collector: opts.HTTPMetricsCollector,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s http client: %w", opts.Name, err)
	}
	return &Caller{url: url, gate: g, httpClient: httpClient, logger: logger, opts: opts}, nil
}

// ValidateURL checks that url is a non-empty absolute URL.
func ValidateURL(url string) error {
	if err := validate.Var(url, "required,url"); err != nil {
		return fmt.Errorf("should be a valid URL, got %q", url)
	}
	return nil
}

// URL returns the URL of the remote function.
func (c *Caller) URL() string {
	return c.url
}

// Gate returns the gate all calls go through.
func (c *Caller) Gate() *gate.Gate {
	return c.gate
}

// Reconfigure returns a new Caller that shares the HTTP client with c.
// An empty url keeps the current one. Gate options are applied by gate.Gate.Configure,
// so calls already submitted to c keep honoring c's limits.
func (c *Caller) Reconfigure(url string, gateOpts ...gate.Option) (*Caller, error) {
	if url == "" {
		url = c.url
	} else if err := ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%s url: %w", c.opts.Name, err)
	}
	g := c.gate
	if len(gateOpts) != 0 {
		var err error
		if g, err = c.gate.Configure(gateOpts...); err != nil {
			return nil, err
		}
	}
	return &Caller{url: url, gate: g, httpClient: c.httpClient, logger: c.logger, opts: c.opts}, nil
}

// Call validates payload (by its "validate" struct tags), sends it to the remote function through the gate
// and decodes the JSON response into a value of type T.
// Non-2xx responses are returned as *restapi.ClientError.
func Call[T any](ctx context.Context, c *Caller, payload interface{}) (T, error) {
	var result T
	if err := validate.Struct(payload); err != nil {
		return result, fmt.Errorf("invalid %s request: %w", c.opts.Name, err)
	}
	return gate.Call(ctx, c.gate, func(ctx context.Context) (T, error) {
		var resp T
		req, err := restapi.NewJSONRequest(ctx, http.MethodPost, c.url, payload)
		if err != nil {
			return resp, err
		}
		logger := httpclient.GetLoggerFromContext(ctx)
		if logger == nil {
			logger = c.logger
		}
		err = restapi.DoRequestAndUnmarshalJSON(c.httpClient, req, &resp, logger)
		return resp, err
	})
}

// UnexpectedStatus returns the *restapi.ClientError from err's chain if the call failed because of a non-2xx response.
func UnexpectedStatus(err error) (*restapi.ClientError, bool) {
	var clientErr *restapi.ClientError
	if !errors.As(err, &clientErr) || clientErr.Err != nil {
		return nil, false
	}
	if clientErr.StatusCode >= 200 && clientErr.StatusCode < 300 {
		return nil, false
	}
	return clientErr, true
}

// IsInvalidRequest reports whether err is caused by payload validation in Call.
func IsInvalidRequest(err error) bool {
	var validationErrs validator.ValidationErrors
	return errors.As(err, &validationErrs)
}
