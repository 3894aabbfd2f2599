/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orangeslice/orangeslice-go/testutil"
)

type readerOnly struct {
	io.Reader
}

type seekableBody struct {
	*strings.Reader
}

func (seekableBody) Close() error { return nil }

func TestRedirectRoundTripper_RepeatsMethodAndBody(t *testing.T) {
	srv := testutil.NewFunctionServer()
	defer srv.Close()
	srv.Handle("b2b", func(payload json.RawMessage) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"echo": payload}
	})

	const body = `{"sql":"SELECT 'Zürich' AS city"}`
	tests := []struct {
		name    string
		makeReq func() *http.Request
	}{
		{
			name: "body with GetBody",
			makeReq: func() *http.Request {
				req, err := http.NewRequest(http.MethodPost, srv.MovedFunctionURL("b2b"), bytes.NewBufferString(body))
				require.NoError(t, err)
				return req
			},
		},
		{
			name: "seekable body",
			makeReq: func() *http.Request {
				req, err := http.NewRequest(http.MethodPost, srv.MovedFunctionURL("b2b"), nil)
				require.NoError(t, err)
				req.Body = seekableBody{strings.NewReader(body)}
				req.ContentLength = int64(len(body))
				return req
			},
		},
		{
			name: "non-seekable body",
			makeReq: func() *http.Request {
				req, err := http.NewRequest(http.MethodPost, srv.MovedFunctionURL("b2b"), nil)
				require.NoError(t, err)
				req.Body = io.NopCloser(readerOnly{strings.NewReader(body)})
				req.ContentLength = int64(len(body))
				return req
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callsBefore := len(srv.Calls())
			client := &http.Client{
				Transport: NewRedirectRoundTripper(http.DefaultTransport),
				CheckRedirect: func(req *http.Request, via []*http.Request) error {
					return http.ErrUseLastResponse
				},
			}
			resp, err := client.Do(tt.makeReq())
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			calls := srv.Calls()[callsBefore:]
			require.Len(t, calls, 1)
			require.Equal(t, http.MethodPost, calls[0].Method)
			require.JSONEq(t, body, string(calls[0].Payload))
		})
	}
}

func TestRedirectRoundTripper_FoundKeepsPost(t *testing.T) {
	var gotMethod, gotBody string
	target := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotBody = r.Method, string(b)
		rw.WriteHeader(http.StatusOK)
	}))
	defer target.Close()
	origin := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Redirect(rw, r, target.URL+"/api", http.StatusFound)
	}))
	defer origin.Close()

	client, err := New(NewDefaultConfig())
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, origin.URL, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, `{"a":1}`, gotBody)
}

func TestRedirectRoundTripper_TooManyRedirects(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		hits++
		http.Redirect(rw, r, "/loop", http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewRedirectRoundTripperWithOpts(http.DefaultTransport, RedirectRoundTripperOpts{MaxRedirects: 2})}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)
	_, err = client.Do(req) // nolint: bodyclose
	require.ErrorIs(t, err, ErrTooManyRedirects)
	require.Equal(t, 3, hits)
}

func TestRedirectRoundTripper_Disabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Redirect(rw, r, "/elsewhere", http.StatusPermanentRedirect)
	}))
	defer srv.Close()

	cfg := NewDefaultConfig()
	cfg.Redirects.Enabled = false
	client, err := New(cfg)
	require.NoError(t, err)
	resp, err := client.Post(srv.URL, "application/json", strings.NewReader("{}")) // nolint: noctx
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	require.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}
