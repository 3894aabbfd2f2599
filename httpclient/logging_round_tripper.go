/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/orangeslice/orangeslice-go/log"
)

// LoggingMode represents a mode of logging.
type LoggingMode string

// Logging modes.
const (
	LoggingModeNone   LoggingMode = "none"
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
)

// IsValid checks if the logger mode is valid.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripper implements http.RoundTripper for logging requests.
type LoggingRoundTripper struct {
	// Delegate is the next RoundTripper in the chain.
	Delegate http.RoundTripper

	// ReqType is a type of request (e.g. "b2b", "ai").
	ReqType string

	// Opts are the options for the logging round tripper.
	Opts LoggingRoundTripperOpts
}

// LoggingRoundTripperOpts represents an options for LoggingRoundTripper.
type LoggingRoundTripperOpts struct {
	// LoggerProvider is a function that provides a context-specific logger.
	// GetLoggerFromContext is used by default.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// Mode of logging: none, all, failed.
	// In "failed" mode only transport errors and responses with status >= 400 are logged.
	Mode LoggingMode

	// SlowRequestThreshold is a threshold for slow requests.
	// Requests that take longer are logged at warn level regardless of the mode.
	SlowRequestThreshold time.Duration
}

// NewLoggingRoundTripper creates an HTTP transport that log requests.
func NewLoggingRoundTripper(delegate http.RoundTripper, reqType string) http.RoundTripper {
	return NewLoggingRoundTripperWithOpts(delegate, reqType, LoggingRoundTripperOpts{})
}

// NewLoggingRoundTripperWithOpts creates an HTTP transport that log requests with options.
func NewLoggingRoundTripperWithOpts(
	delegate http.RoundTripper, reqType string, opts LoggingRoundTripperOpts,
) http.RoundTripper {
	if opts.Mode == "" {
		opts.Mode = LoggingModeAll
	}
	return &LoggingRoundTripper{
		Delegate: delegate,
		ReqType:  reqType,
		Opts:     opts,
	}
}

func getLoggerOrDisabled(ctx context.Context, provider func(ctx context.Context) log.FieldLogger) log.FieldLogger {
	var logger log.FieldLogger
	if provider != nil {
		logger = provider(ctx)
	} else {
		logger = GetLoggerFromContext(ctx)
	}
	if logger == nil {
		return log.NewDisabledLogger()
	}
	return logger
}

// RoundTrip adds logging capabilities to the HTTP transport.
func (rt *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Opts.Mode == LoggingModeNone {
		return rt.Delegate.RoundTrip(r)
	}

	ctx := r.Context()
	logger := getLoggerOrDisabled(ctx, rt.Opts.LoggerProvider)
	start := time.Now()

	resp, err := rt.Delegate.RoundTrip(r)
	elapsed := time.Since(start)

	slow := rt.Opts.SlowRequestThreshold > 0 && elapsed >= rt.Opts.SlowRequestThreshold
	failed := err != nil || (resp != nil && resp.StatusCode >= http.StatusBadRequest)
	if rt.Opts.Mode == LoggingModeFailed && !failed && !slow {
		return resp, err
	}

	reqType := GetRequestTypeFromContext(ctx)
	if reqType == "" {
		reqType = rt.ReqType
	}
	fields := []log.Field{
		log.String("method", r.Method),
		log.String("url", r.URL.Redacted()),
		log.String("type", reqType),
		log.DurationIn(elapsed, time.Millisecond),
	}
	if requestID := GetRequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, log.String("request_id", requestID))
	}

	switch {
	case err != nil:
		logger.Error("client http request failed", append(fields, log.Error(err))...)
	case failed:
		logger.Warn("client http request done", append(fields, log.Int("status", resp.StatusCode))...)
	case slow:
		logger.Warn("client http request is slow", append(fields, log.Int("status", resp.StatusCode))...)
	default:
		logger.Info("client http request done", append(fields, log.Int("status", resp.StatusCode))...)
	}

	return resp, err
}
