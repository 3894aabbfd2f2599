/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains helpers for testing gates and endpoint clients:
// Prometheus metrics assertions and a fake remote function server.
package testutil

import (
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

// AssertSamplesCountInHistogram asserts that the histogram (usually got via HistogramVec.WithLabelValues)
// contains the specified number of samples.
func AssertSamplesCountInHistogram(t assert.TestingT, observer prometheus.Observer, wantSamplesCount int) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	hist, ok := observer.(prometheus.Histogram)
	if !assert.True(t, ok, "observer should be a histogram") {
		return false
	}
	reg := prometheus.NewPedanticRegistry()
	if !assert.NoError(t, reg.Register(hist)) {
		return false
	}
	gotMetrics, err := reg.Gather()
	if !assert.NoError(t, err) {
		return false
	}
	if !assert.Equal(t, 1, len(gotMetrics)) {
		return false
	}
	return assert.Equal(t, wantSamplesCount, int(gotMetrics[0].GetMetric()[0].GetHistogram().GetSampleCount()))
}

// RequireSamplesCountInHistogram calls AssertSamplesCountInHistogram and fails test immediately in case of error.
func RequireSamplesCountInHistogram(t require.TestingT, observer prometheus.Observer, wantSamplesCount int) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertSamplesCountInHistogram(t, observer, wantSamplesCount) {
		return
	}
	t.FailNow()
}

// AssertMetricValue asserts that the single-metric collector (counter or gauge) has the given value.
func AssertMetricValue(t assert.TestingT, c prometheus.Collector, wantValue float64) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	return assert.Equal(t, wantValue, promtestutil.ToFloat64(c))
}

// RequireMetricValue calls AssertMetricValue and fails test immediately in case of error.
func RequireMetricValue(t require.TestingT, c prometheus.Collector, wantValue float64) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if AssertMetricValue(t, c, wantValue) {
		return
	}
	t.FailNow()
}
