/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/orangeslice/orangeslice-go/log"
)

// Opts represents options for Gate.
type Opts struct {
	// Name is used in logs and as the "gate" metrics label.
	Name string

	// Logger is used for debug logging of queueing and admission. Disabled by default.
	Logger log.FieldLogger

	// MetricsCollector collects gate metrics. Disabled by default.
	MetricsCollector MetricsCollector
}

// Gate admits tasks through an AdmissionQueue and then a RateLimiter, so at most Concurrency tasks
// run simultaneously and consecutive task starts are spaced by at least MinDelay.
// Gate is safe for concurrent use.
type Gate struct {
	queue   *AdmissionQueue
	limiter *RateLimiter
	opts    Opts
}

// New creates a new Gate.
func New(concurrency int, minDelay time.Duration) (*Gate, error) {
	return NewWithOpts(concurrency, minDelay, Opts{})
}

// NewWithOpts creates a new Gate with options.
func NewWithOpts(concurrency int, minDelay time.Duration, opts Opts) (*Gate, error) {
	queue, err := NewAdmissionQueue(concurrency)
	if err != nil {
		return nil, err
	}
	limiter, err := NewRateLimiter(minDelay)
	if err != nil {
		return nil, err
	}
	return newGate(queue, limiter, opts), nil
}

// NewFromConfig creates a new Gate from the Config.
func NewFromConfig(cfg *Config, opts Opts) (*Gate, error) {
	return NewWithOpts(cfg.Concurrency, cfg.MinDelay, opts)
}

func newGate(queue *AdmissionQueue, limiter *RateLimiter, opts Opts) *Gate {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	return &Gate{queue: queue, limiter: limiter, opts: opts}
}

// Name returns the gate name.
func (g *Gate) Name() string {
	return g.opts.Name
}

// Queue returns the admission queue of the gate.
func (g *Gate) Queue() *AdmissionQueue {
	return g.queue
}

// Limiter returns the rate limiter of the gate.
func (g *Gate) Limiter() *RateLimiter {
	return g.limiter
}

// Do runs the task once it is admitted by the queue and allowed to start by the limiter.
// The task error is returned unchanged. If ctx is done before the task starts,
// the task is not invoked and *WaitError is returned.
func (g *Gate) Do(ctx context.Context, task Task) error {
	logger := g.opts.Logger
	metrics := g.opts.MetricsCollector

	submittedAt := time.Now()
	metrics.TaskQueued(g.opts.Name)
	release, err := g.queue.acquire(ctx, func(waiting int) {
		logger.Debug("task queued, all slots are busy", log.String("gate", g.opts.Name), log.Int("waiting", waiting))
	})
	if err != nil {
		metrics.TaskFinished(g.opts.Name, false, TaskResultCanceled)
		logger.Debug("task abandoned while waiting for admission", log.String("gate", g.opts.Name), log.Error(err))
		return err
	}
	defer release()

	admittedAt := time.Now()
	metrics.TaskAdmitted(g.opts.Name, admittedAt.Sub(submittedAt))
	logger.Debug("task admitted", log.String("gate", g.opts.Name),
		log.Int("active", g.queue.Active()), log.DurationIn(admittedAt.Sub(submittedAt), time.Millisecond))

	result := TaskResultError
	defer func() {
		metrics.TaskFinished(g.opts.Name, true, result)
	}()

	if err = g.limiter.Wait(ctx); err != nil {
		result = TaskResultCanceled
		logger.Debug("task abandoned while waiting for start spacing", log.String("gate", g.opts.Name), log.Error(err))
		return err
	}
	metrics.TaskStarted(g.opts.Name, time.Since(admittedAt))

	if err = task(ctx); err == nil {
		result = TaskResultOK
	}
	return err
}

// Call runs fn through the gate and returns its value.
func Call[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	var res T
	err := g.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		res, fnErr = fn(ctx)
		return fnErr
	})
	return res, err
}

// Option changes a setting in Configure.
type Option func(*configureOptions)

type configureOptions struct {
	concurrency *int
	minDelay    *time.Duration
}

// WithConcurrency sets a new concurrency limit.
func WithConcurrency(n int) Option {
	return func(o *configureOptions) {
		o.concurrency = &n
	}
}

// WithMinDelay sets a new minimum delay between task starts.
func WithMinDelay(d time.Duration) Option {
	return func(o *configureOptions) {
		o.minDelay = &d
	}
}

// Configure returns a new Gate with the given settings changed.
// A changed setting gets a fresh instance (AdmissionQueue for concurrency, RateLimiter for min delay)
// with empty state; an unchanged one is shared with g together with its state.
// Tasks already submitted to g keep honoring g's limits.
func (g *Gate) Configure(opts ...Option) (*Gate, error) {
	var co configureOptions
	for _, opt := range opts {
		opt(&co)
	}
	queue, limiter := g.queue, g.limiter
	var err error
	if co.concurrency != nil {
		if queue, err = NewAdmissionQueue(*co.concurrency); err != nil {
			return nil, fmt.Errorf("configure gate %q: %w", g.opts.Name, err)
		}
	}
	if co.minDelay != nil {
		if limiter, err = NewRateLimiter(*co.minDelay); err != nil {
			return nil, fmt.Errorf("configure gate %q: %w", g.opts.Name, err)
		}
	}
	return newGate(queue, limiter, g.opts), nil
}
