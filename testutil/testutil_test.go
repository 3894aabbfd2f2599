/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type MockT struct {
	Failed bool
	Format string
	Args   []interface{}
}

func (t *MockT) FailNow() {
	t.Failed = true
}

func (t *MockT) Errorf(format string, args ...interface{}) {
	t.Format, t.Args = format, args
}

func TestAssertSamplesCountInHistogram(t *testing.T) {
	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist"}, []string{"gate"})
	hist.WithLabelValues("b2b").Observe(0.1)
	hist.WithLabelValues("b2b").Observe(0.2)

	require.True(t, AssertSamplesCountInHistogram(t, hist.WithLabelValues("b2b"), 2))

	mockT := &MockT{}
	require.False(t, AssertSamplesCountInHistogram(mockT, hist.WithLabelValues("b2b"), 3))
	require.NotEmpty(t, mockT.Format)

	mockT = &MockT{}
	RequireSamplesCountInHistogram(mockT, hist.WithLabelValues("ai"), 1)
	require.True(t, mockT.Failed)
}

func TestAssertMetricValue(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge"})
	gauge.Add(3)
	require.True(t, AssertMetricValue(t, gauge, 3))

	mockT := &MockT{}
	RequireMetricValue(mockT, gauge, 1)
	require.True(t, mockT.Failed)
}

func TestFunctionServer(t *testing.T) {
	srv := NewFunctionServer()
	defer srv.Close()

	srv.Handle("echo", func(payload json.RawMessage) (int, interface{}) {
		return http.StatusOK, map[string]json.RawMessage{"result": payload}
	})

	doPost := func(url string) (int, string) {
		resp, err := http.Post(url, "application/json", bytes.NewBufferString(`{"a":1}`)) // nolint: gosec,noctx
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := doPost(srv.FunctionURL("echo"))
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"result":{"a":1}}`, body)

	status, _ = doPost(srv.FunctionURL("missing"))
	require.Equal(t, http.StatusNotFound, status)

	// Go's http.Client follows 308 with the same method and body.
	status, body = doPost(srv.MovedFunctionURL("echo"))
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"result":{"a":1}}`, body)

	calls := srv.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, "echo", calls[0].FunctionID)
	require.Equal(t, http.MethodPost, calls[0].Method)
	require.JSONEq(t, `{"a":1}`, string(calls[0].Payload))
	require.Equal(t, "missing", calls[1].FunctionID)
	require.Equal(t, 1, srv.MaxInFlight())
}
