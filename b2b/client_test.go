/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package b2b

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orangeslice/orangeslice-go/gate"
	"github.com/orangeslice/orangeslice-go/restapi"
	"github.com/orangeslice/orangeslice-go/testutil"
)

type company struct {
	CompanyName   string `json:"company_name"`
	EmployeeCount int    `json:"employee_count"`
}

func newTestServer(t *testing.T) *testutil.FunctionServer {
	t.Helper()
	srv := testutil.NewFunctionServer()
	t.Cleanup(srv.Close)
	srv.Handle("b2b", func(payload json.RawMessage) (int, interface{}) {
		var req struct {
			SQL string `json:"sql"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return http.StatusBadRequest, map[string]string{"error": err.Error()}
		}
		if req.SQL == "SELECT broken" {
			return http.StatusOK, map[string]string{"error": `syntax error at or near "broken"`}
		}
		return http.StatusOK, map[string]interface{}{
			"rows":        []company{{CompanyName: "Stripe", EmployeeCount: 8000}},
			"rowCount":    1,
			"duration_ms": 12.5,
		}
	})
	return srv
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.URL = url
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	client := newTestClient(t, DefaultURL)
	require.Equal(t, DefaultURL, client.URL())
	require.Equal(t, DefaultConcurrency, client.Gate().Queue().Limit())
	require.Equal(t, DefaultMinDelay, client.Gate().Limiter().MinDelay())

	cfg := NewDefaultConfig()
	cfg.URL = "not a url"
	_, err := NewClient(cfg)
	require.EqualError(t, err, `b2b url: should be a valid URL, got "not a url"`)

	cfg = NewDefaultConfig()
	cfg.Gate.Concurrency = 0
	_, err = NewClient(cfg)
	require.EqualError(t, err, "create b2b gate: concurrency limit should be positive, got 0")
}

func TestClient_SQL(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.FunctionURL("b2b"))

	const query = "SELECT company_name, employee_count FROM linkedin_company WHERE universal_name = 'stripe' LIMIT 1"
	rows, err := client.SQL(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, []Row{{"company_name": "Stripe", "employee_count": float64(8000)}}, rows)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, http.MethodPost, calls[0].Method)
	require.Equal(t, restapi.ContentTypeAppJSON, calls[0].Header.Get("Content-Type"))
	require.NotEmpty(t, calls[0].Header.Get("X-Request-ID"))
	require.JSONEq(t, `{"sql":"`+query+`"}`, string(calls[0].Payload))
}

func TestClient_Query(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.FunctionURL("b2b"))

	res, err := QueryAs[company](context.Background(), client, "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, &QueryResult[company]{
		Rows:       []company{{CompanyName: "Stripe", EmployeeCount: 8000}},
		RowCount:   1,
		DurationMS: 12.5,
	}, res)

	companies, err := SQLAs[company](context.Background(), client, "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, []company{{CompanyName: "Stripe", EmployeeCount: 8000}}, companies)

	untyped, err := client.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, 1, untyped.RowCount)
	require.Len(t, untyped.Rows, 1)
}

func TestClient_Query_MissingFields(t *testing.T) {
	srv := testutil.NewFunctionServer()
	defer srv.Close()
	srv.Handle("b2b", func(payload json.RawMessage) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{}
	})
	client := newTestClient(t, srv.FunctionURL("b2b"))

	res, err := client.Query(context.Background(), "SELECT 1 WHERE false")
	require.NoError(t, err)
	require.NotNil(t, res.Rows)
	require.Empty(t, res.Rows)
	require.Zero(t, res.RowCount)
	require.Zero(t, res.DurationMS)
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	srv.Handle("b2b-down", func(payload json.RawMessage) (int, interface{}) {
		return http.StatusBadGateway, map[string]string{"message": "upstream is down"}
	})

	t.Run("query error", func(t *testing.T) {
		client := newTestClient(t, srv.FunctionURL("b2b"))
		_, err := client.SQL(context.Background(), "SELECT broken")
		require.EqualError(t, err, `B2B SQL error: syntax error at or near "broken"`)
		var queryErr *QueryError
		require.True(t, errors.As(err, &queryErr))
	})

	t.Run("request error", func(t *testing.T) {
		client := newTestClient(t, srv.FunctionURL("b2b-down"))
		_, err := client.Query(context.Background(), "SELECT 1")
		require.EqualError(t, err, "B2B SQL request failed: 502 Bad Gateway")
		var reqErr *RequestError
		require.True(t, errors.As(err, &reqErr))
		require.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
		var clientErr *restapi.ClientError
		require.True(t, errors.As(err, &clientErr))
		require.Contains(t, clientErr.Body, "upstream is down")
	})

	t.Run("empty query", func(t *testing.T) {
		callsBefore := len(srv.Calls())
		client := newTestClient(t, srv.FunctionURL("b2b"))
		_, err := client.SQL(context.Background(), "")
		require.ErrorIs(t, err, ErrEmptyQuery)
		_, err = client.Query(context.Background(), "")
		require.ErrorIs(t, err, ErrEmptyQuery)
		require.Len(t, srv.Calls(), callsBefore)

		// Anything else goes to the server unchanged.
		_, _ = client.SQL(context.Background(), "  ")
		calls := srv.Calls()
		require.Len(t, calls, callsBefore+1)
		require.JSONEq(t, `{"sql":"  "}`, string(calls[len(calls)-1].Payload))
	})
}

func TestClient_FollowsRedirectWithSameBody(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.MovedFunctionURL("b2b"))

	const query = "SELECT company_name FROM linkedin_company WHERE universal_name = 'zürich-café'"
	rows, err := client.SQL(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, http.MethodPost, calls[0].Method)
	require.JSONEq(t, `{"sql":"`+query+`"}`, string(calls[0].Payload))
}

func TestClient_ParallelQueries(t *testing.T) {
	srv := newTestServer(t)
	srv.SetDelay(300 * time.Millisecond)
	client := newTestClient(t, srv.FunctionURL("b2b"))

	const queries = 6
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < queries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := client.SQL(context.Background(), "SELECT 1")
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	require.Equal(t, DefaultConcurrency, srv.MaxInFlight())
	require.GreaterOrEqual(t, elapsed, 900*time.Millisecond)

	calls := srv.Calls()
	require.Len(t, calls, queries)
	for i := 1; i < len(calls); i++ {
		// Allow some scheduling jitter between the start of a call on the client and its arrival on the server.
		require.GreaterOrEqual(t, calls[i].StartedAt.Sub(calls[i-1].StartedAt), DefaultMinDelay-20*time.Millisecond)
	}
}

func TestClient_ContextCanceledWhileQueued(t *testing.T) {
	srv := newTestServer(t)
	srv.SetDelay(200 * time.Millisecond)
	client := newTestClient(t, srv.FunctionURL("b2b"))
	client, err := client.Configure(WithConcurrency(1), WithMinDelay(0))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, queryErr := client.SQL(context.Background(), "SELECT 1")
		assert.NoError(t, queryErr)
	}()
	require.Eventually(t, func() bool { return client.Gate().Queue().Active() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.SQL(ctx, "SELECT 2")
	var waitErr *gate.WaitError
	require.True(t, errors.As(err, &waitErr))
	require.Equal(t, gate.WaitStageAdmission, waitErr.Stage)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	<-done
	require.Len(t, srv.Calls(), 1)
}

func TestClient_Configure(t *testing.T) {
	srv := newTestServer(t)
	client := newTestClient(t, srv.FunctionURL("b2b"))

	t.Run("concurrency and delay", func(t *testing.T) {
		newClient, err := client.Configure(WithConcurrency(5), WithMinDelay(time.Second))
		require.NoError(t, err)
		require.Equal(t, 5, newClient.Gate().Queue().Limit())
		require.Equal(t, time.Second, newClient.Gate().Limiter().MinDelay())
		require.Equal(t, client.URL(), newClient.URL())

		require.Equal(t, DefaultConcurrency, client.Gate().Queue().Limit())
		require.Equal(t, DefaultMinDelay, client.Gate().Limiter().MinDelay())
	})

	t.Run("delay only keeps the admission queue", func(t *testing.T) {
		newClient, err := client.Configure(WithMinDelay(0))
		require.NoError(t, err)
		require.Same(t, client.Gate().Queue(), newClient.Gate().Queue())
		require.NotSame(t, client.Gate().Limiter(), newClient.Gate().Limiter())
	})

	t.Run("url", func(t *testing.T) {
		newClient, err := client.Configure(WithURL(srv.MovedFunctionURL("b2b")))
		require.NoError(t, err)
		require.Equal(t, srv.MovedFunctionURL("b2b"), newClient.URL())
		require.Same(t, client.Gate(), newClient.Gate())

		rows, err := newClient.SQL(context.Background(), "SELECT 1")
		require.NoError(t, err)
		require.Len(t, rows, 1)

		newClient, err = client.Configure(WithURL(""))
		require.NoError(t, err)
		require.Equal(t, client.URL(), newClient.URL())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := client.Configure(WithConcurrency(0))
		require.EqualError(t, err, `configure gate "b2b": concurrency limit should be positive, got 0`)

		_, err = client.Configure(WithMinDelay(-time.Millisecond))
		require.EqualError(t, err, `configure gate "b2b": min delay should not be negative, got -1ms`)

		_, err = client.Configure(WithURL("ftp//nowhere"))
		require.EqualError(t, err, `b2b url: should be a valid URL, got "ftp//nowhere"`)
	})
}
