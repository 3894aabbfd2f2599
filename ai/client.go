/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ai provides a client for the function that generates structured objects from prompts.
// All calls of a Client go through its own gate (10 concurrent calls, 10ms between call starts by default).
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/httpclient"
	"github.com/orangeslice/orangeslice-go/internal/remotefn"
	"github.com/orangeslice/orangeslice-go/log"
)

// Name is used as the gate name and the HTTP request type of the client.
const Name = "ai"

const defaultExtractPrompt = "Extract structured data from the following text:\n\n"

var validate = validator.New()

// GenerateObjectOptions represents parameters of object generation.
type GenerateObjectOptions struct {
	Prompt string      `json:"prompt" validate:"required"`
	Schema *JSONSchema `json:"schema" validate:"required"`
	System string      `json:"system,omitempty"`
}

type generateObjectResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Opts represents options for NewClientWithOpts.
type Opts struct {
	Logger               log.FieldLogger
	GateMetricsCollector gate.MetricsCollector
	HTTPMetricsCollector httpclient.MetricsCollector
	Transport            http.RoundTripper
}

// Client generates structured objects. It is safe for concurrent use.
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

// URL returns the URL of the generation function.
func (c *Client) URL() string {
	return c.caller.URL()
}

// Gate returns the gate the calls go through.
func (c *Client) Gate() *gate.Gate {
	return c.caller.Gate()
}

// GenerateObject generates an object matching opts.Schema and returns it as raw JSON.
// A response without a result gives JSON null.
func (c *Client) GenerateObject(ctx context.Context, opts GenerateObjectOptions) (json.RawMessage, error) {
	if opts.Schema != nil {
		if err := opts.Schema.Validate(); err != nil {
			return nil, err
		}
	}
	resp, err := remotefn.Call[generateObjectResponse](ctx, c.caller, opts)
	if err != nil {
		return nil, mapCallError(err)
	}
	if resp.Error != "" {
		return nil, &GenerationError{Message: resp.Error}
	}
	if len(resp.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Result, nil
}

// GenerateObjectAs generates an object and decodes it into a value of type T.
func GenerateObjectAs[T any](ctx context.Context, c *Client, opts GenerateObjectOptions) (T, error) {
	var result T
	raw, err := c.GenerateObject(ctx, opts)
	if err != nil {
		return result, err
	}
	if err = json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("decode generated object: %w", err)
	}
	return result, nil
}

// Extract extracts structured data matching schema from text.
// Instructions, if not empty, replace the default extraction prompt.
func (c *Client) Extract(ctx context.Context, text string, schema *JSONSchema, instructions string) (json.RawMessage, error) {
	return c.GenerateObject(ctx, GenerateObjectOptions{Prompt: makeExtractPrompt(text, instructions), Schema: schema})
}

// ExtractAs extracts structured data from text and decodes it into a value of type T.
func ExtractAs[T any](ctx context.Context, c *Client, text string, schema *JSONSchema, instructions string) (T, error) {
	return GenerateObjectAs[T](ctx, c, GenerateObjectOptions{Prompt: makeExtractPrompt(text, instructions), Schema: schema})
}

func makeExtractPrompt(text, instructions string) string {
	if instructions != "" {
		return instructions + "\n\nText:\n" + text
	}
	return defaultExtractPrompt + text
}

// Option changes a setting in Configure.
type Option func(*configureOptions)

type configureOptions struct {
	url      string
	gateOpts []gate.Option
}

// WithURL sets a new URL of the generation function. An empty URL is ignored.
func WithURL(url string) Option {
	return func(o *configureOptions) {
		o.url = url
	}
}

// WithConcurrency sets a new maximum number of concurrent calls.
func WithConcurrency(n int) Option {
	return func(o *configureOptions) {
		o.gateOpts = append(o.gateOpts, gate.WithConcurrency(n))
	}
}

// WithMinDelay sets a new minimum delay between call starts.
func WithMinDelay(d time.Duration) Option {
	return func(o *configureOptions) {
		o.gateOpts = append(o.gateOpts, gate.WithMinDelay(d))
	}
}

// Configure returns a new Client with the given settings changed.
// Calls already submitted to c keep honoring c's limits.
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
