/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/log"
	"github.com/orangeslice/orangeslice-go/log/logtest"
	"github.com/orangeslice/orangeslice-go/testutil"
)

type roundTripperFunc func(r *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newStatusServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(status)
	}))
}

func doGet(t *testing.T, ctx context.Context, client *http.Client, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp
}

func TestNewWithOpts_InvalidLoggingMode(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Log.Mode = "verbose"
	_, err := New(cfg)
	require.EqualError(t, err, `unknown logging mode "verbose"`)
	require.Panics(t, func() { Must(cfg) })
}

func TestLoggingRoundTripper(t *testing.T) {
	okSrv := newStatusServer(http.StatusOK)
	defer okSrv.Close()
	failSrv := newStatusServer(http.StatusInternalServerError)
	defer failSrv.Close()

	t.Run("all", func(t *testing.T) {
		logger := logtest.NewRecorder()
		client := &http.Client{Transport: NewLoggingRoundTripperWithOpts(http.DefaultTransport, "b2b",
			LoggingRoundTripperOpts{Mode: LoggingModeAll})}
		ctx := NewContextWithLogger(NewContextWithRequestID(context.Background(), "req-1"), logger)
		doGet(t, ctx, client, okSrv.URL)

		entry, found := logger.FindEntry("client http request done")
		require.True(t, found)
		require.Equal(t, log.LevelInfo, entry.Level)
		typeField, found := entry.FindField("type")
		require.True(t, found)
		require.Equal(t, "b2b", string(typeField.Bytes))
		statusField, found := entry.FindField("status")
		require.True(t, found)
		require.Equal(t, http.StatusOK, int(statusField.Int))
		reqIDField, found := entry.FindField("request_id")
		require.True(t, found)
		require.Equal(t, "req-1", string(reqIDField.Bytes))
	})

	t.Run("failed", func(t *testing.T) {
		logger := logtest.NewRecorder()
		client := &http.Client{Transport: NewLoggingRoundTripperWithOpts(http.DefaultTransport, "ai",
			LoggingRoundTripperOpts{Mode: LoggingModeFailed, LoggerProvider: func(ctx context.Context) log.FieldLogger {
				return logger
			}})}
		doGet(t, context.Background(), client, okSrv.URL)
		require.Empty(t, logger.Entries())

		doGet(t, context.Background(), client, failSrv.URL)
		require.Len(t, logger.Entries(), 1)
		require.Equal(t, log.LevelWarn, logger.Entries()[0].Level)
	})

	t.Run("transport error", func(t *testing.T) {
		logger := logtest.NewRecorder()
		failingRT := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})
		client := &http.Client{Transport: NewLoggingRoundTripperWithOpts(failingRT, "ai",
			LoggingRoundTripperOpts{Mode: LoggingModeFailed})}
		req, err := http.NewRequestWithContext(NewContextWithLogger(context.Background(), logger),
			http.MethodGet, okSrv.URL, nil)
		require.NoError(t, err)
		_, err = client.Do(req) // nolint: bodyclose
		require.Error(t, err)

		entry, found := logger.FindEntry("client http request failed")
		require.True(t, found)
		require.Equal(t, log.LevelError, entry.Level)
	})

	t.Run("none", func(t *testing.T) {
		logger := logtest.NewRecorder()
		client := &http.Client{Transport: NewLoggingRoundTripperWithOpts(http.DefaultTransport, "ai",
			LoggingRoundTripperOpts{Mode: LoggingModeNone})}
		doGet(t, NewContextWithLogger(context.Background(), logger), client, failSrv.URL)
		require.Empty(t, logger.Entries())
	})
}

func TestMetricsRoundTripper(t *testing.T) {
	srv := newStatusServer(http.StatusOK)
	defer srv.Close()

	collector := NewPrometheusMetricsCollector("test")
	cfg := NewDefaultConfig()
	cfg.Metrics.Enabled = true
	client, err := NewWithOpts(cfg, Opts{RequestType: "b2b", Collector: collector})
	require.NoError(t, err)

	doGet(t, context.Background(), client, srv.URL)
	doGet(t, NewContextWithRequestType(context.Background(), "b2b.query"), client, srv.URL)

	host := strings.TrimPrefix(srv.URL, "http://")
	testutil.RequireSamplesCountInHistogram(t, collector.Durations.WithLabelValues("b2b", host, "GET b2b", "200"), 1)
	testutil.RequireSamplesCountInHistogram(t,
		collector.Durations.WithLabelValues("b2b.query", host, "GET b2b.query", "200"), 1)
}

func TestUserAgentAndRequestID(t *testing.T) {
	var mu sync.Mutex
	var gotHeaders []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotHeaders = append(gotHeaders, r.Header.Clone())
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := NewDefaultConfig()
	cfg.UserAgent = "orangeslice-cli/1.0"
	client, err := New(cfg)
	require.NoError(t, err)

	doGet(t, context.Background(), client, srv.URL)
	doGet(t, NewContextWithRequestID(context.Background(), "my-request"), client, srv.URL)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	req.Header.Set(RequestIDHeader, "explicit")
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Len(t, gotHeaders, 3)
	require.Equal(t, "orangeslice-cli/1.0", gotHeaders[0].Get("User-Agent"))
	require.Len(t, gotHeaders[0].Get(RequestIDHeader), 20) // xid
	require.Equal(t, "my-request", gotHeaders[1].Get(RequestIDHeader))
	require.Equal(t, "custom", gotHeaders[2].Get("User-Agent"))
	require.Equal(t, "explicit", gotHeaders[2].Get(RequestIDHeader))

	client, err = New(NewDefaultConfig())
	require.NoError(t, err)
	doGet(t, context.Background(), client, srv.URL)
	require.Equal(t, DefaultUserAgent(), gotHeaders[3].Get("User-Agent"))
}

func TestGateRoundTripper(t *testing.T) {
	srv := testutil.NewFunctionServer()
	defer srv.Close()
	srv.SetDelay(50 * time.Millisecond)
	srv.Handle("ai", func(payload json.RawMessage) (int, interface{}) {
		return http.StatusOK, map[string]string{}
	})

	g, err := gate.New(1, 0)
	require.NoError(t, err)
	client, err := NewWithOpts(NewDefaultConfig(), Opts{Gate: g})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, postErr := client.Post(srv.FunctionURL("ai"), "application/json", strings.NewReader("{}")) // nolint: noctx
			if assert.NoError(t, postErr) {
				_ = resp.Body.Close()
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	require.Len(t, srv.Calls(), 4)
	require.Equal(t, 1, srv.MaxInFlight())
}

func TestGateRoundTripper_ContextCanceled(t *testing.T) {
	g, err := gate.New(1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, g.Do(context.Background(), func(ctx context.Context) error { return nil }))

	var called bool
	rt := NewGateRoundTripper(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return nil, nil
	}), g)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req) // nolint: bodyclose
	var waitErr *gate.WaitError
	require.ErrorAs(t, err, &waitErr)
	require.False(t, called)
}
