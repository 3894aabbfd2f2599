/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package b2b provides a client for the B2B database-query function.
// All queries of a Client go through its own gate (2 concurrent queries, 100ms between query starts by default),
// so callers may run any number of queries in parallel without overloading the service.
package b2b

import (
	"context"
	"net/http"
	"time"

	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/httpclient"
	"github.com/orangeslice/orangeslice-go/internal/remotefn"
	"github.com/orangeslice/orangeslice-go/log"
)

// Name is used as the gate name and the HTTP request type of the client.
const Name = "b2b"

// Row is a single row of a query result with column names as keys.
type Row = map[string]interface{}

// QueryResult is a query result with metadata.
type QueryResult[T any] struct {
	Rows       []T     `json:"rows" yaml:"rows"`
	RowCount   int     `json:"rowCount" yaml:"rowCount"`
	DurationMS float64 `json:"duration_ms" yaml:"duration_ms"`
}

type sqlRequest struct {
	SQL string `json:"sql" validate:"required"`
}

type sqlResponse[T any] struct {
	Rows       []T     `json:"rows"`
	RowCount   int     `json:"rowCount"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error"`
}

// Opts represents options for NewClientWithOpts.
type Opts struct {
	Logger               log.FieldLogger
	GateMetricsCollector gate.MetricsCollector
	HTTPMetricsCollector httpclient.MetricsCollector
	Transport            http.RoundTripper
}

// Client runs SQL queries against the B2B database. It is safe for concurrent use.
type Client struct {
	caller *remotefn.Caller
}

// NewClient creates a new Client.
func NewClient(cfg *Config) (*Client, error) {
	return NewClientWithOpts(cfg, Opts{})
}

// NewClientWithOpts creates a new Client with options.
func NewClientWithOpts(cfg *Config, opts Opts) (*Client, error) {
	caller, err := remotefn.New(cfg.URL, cfg.Gate, cfg.HTTPClient, remotefn.Opts{
		Name:                 Name,
		Logger:               opts.Logger,
		GateMetricsCollector: opts.GateMetricsCollector,
		HTTPMetricsCollector: opts.HTTPMetricsCollector,
		Transport:            opts.Transport,
	})
	if err != nil {
		return nil, err
	}
	return &Client{caller: caller}, nil
}

// URL returns the URL of the query function.
func (c *Client) URL() string {
	return c.caller.URL()
}

// Gate returns the gate the queries go through.
func (c *Client) Gate() *gate.Gate {
	return c.caller.Gate()
}

// SQL runs the query and returns its rows.
// The query is sent as is; only an empty query is rejected locally with ErrEmptyQuery,
// any other validation is left to the server.
func (c *Client) SQL(ctx context.Context, query string) ([]Row, error) {
	return SQLAs[Row](ctx, c, query)
}

// Query runs the query and returns its rows with metadata.
// Like SQL, it fails with ErrEmptyQuery for an empty query without calling the server.
func (c *Client) Query(ctx context.Context, query string) (*QueryResult[Row], error) {
	return QueryAs[Row](ctx, c, query)
}

// SQLAs runs the query and decodes its rows into values of type T.
func SQLAs[T any](ctx context.Context, c *Client, query string) ([]T, error) {
	res, err := QueryAs[T](ctx, c, query)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// QueryAs runs the query and decodes its rows into values of type T.
func QueryAs[T any](ctx context.Context, c *Client, query string) (*QueryResult[T], error) {
	resp, err := remotefn.Call[sqlResponse[T]](ctx, c.caller, sqlRequest{SQL: query})
	if err != nil {
		return nil, mapCallError(err)
	}
	if resp.Error != "" {
		return nil, &QueryError{Message: resp.Error}
	}
	if resp.Rows == nil {
		resp.Rows = []T{}
	}
	return &QueryResult[T]{Rows: resp.Rows, RowCount: resp.RowCount, DurationMS: resp.DurationMS}, nil
}

// Option changes a setting in Configure.
type Option func(*configureOptions)

type configureOptions struct {
	url      string
	gateOpts []gate.Option
}

// WithURL sets a new URL of the query function. An empty URL is ignored.
func WithURL(url string) Option {
	return func(o *configureOptions) {
		o.url = url
	}
}

// WithConcurrency sets a new maximum number of concurrent queries.
func WithConcurrency(n int) Option {
	return func(o *configureOptions) {
		o.gateOpts = append(o.gateOpts, gate.WithConcurrency(n))
	}
}

// WithMinDelay sets a new minimum delay between query starts.
func WithMinDelay(d time.Duration) Option {
	return func(o *configureOptions) {
		o.gateOpts = append(o.gateOpts, gate.WithMinDelay(d))
	}
}

// Configure returns a new Client with the given settings changed.
// Queries already submitted to c keep honoring c's limits.
func (c *Client) Configure(opts ...Option) (*Client, error) {
	var co configureOptions
	for _, opt := range opts {
		opt(&co)
	}
	caller, err := c.caller.Reconfigure(co.url, co.gateOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{caller: caller}, nil
}
