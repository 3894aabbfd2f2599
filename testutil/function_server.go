/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"
)

const (
	functionPath      = "/api/function"
	movedFunctionPath = "/moved/api/function"
)

// FunctionHandler handles a call of the remote function with the given raw JSON payload.
// It returns the HTTP status code and the value that will be encoded as the JSON response body.
type FunctionHandler func(payload json.RawMessage) (status int, resp interface{})

// FunctionCall describes a call received by FunctionServer.
type FunctionCall struct {
	FunctionID string
	Method     string
	Header     http.Header
	Payload    json.RawMessage
	StartedAt  time.Time
}

// FunctionServer is a fake of the remote function endpoint ("POST /api/function?functionId=ID").
// It records all calls and tracks the maximum number of simultaneously handled calls.
type FunctionServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]FunctionHandler
	calls    []FunctionCall
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// NewFunctionServer creates and starts a new FunctionServer. It should be closed by the caller.
func NewFunctionServer() *FunctionServer {
	s := &FunctionServer{handlers: make(map[string]FunctionHandler)}

	router := chi.NewRouter()
	router.Post(functionPath, s.serveFunction)
	router.HandleFunc(movedFunctionPath, func(rw http.ResponseWriter, r *http.Request) {
		// Permanent redirect of the old location, the client must repeat the POST with the same body.
		http.Redirect(rw, r, functionPath+"?"+r.URL.RawQuery, http.StatusPermanentRedirect)
	})
	s.Server = httptest.NewServer(router)
	return s
}

// Handle registers handler for the function.
func (s *FunctionServer) Handle(functionID string, handler FunctionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[functionID] = handler
}

// SetDelay makes the server sleep the given time before handling each call.
func (s *FunctionServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FunctionURL returns URL of the function.
func (s *FunctionServer) FunctionURL(functionID string) string {
	return s.URL + functionPath + "?functionId=" + url.QueryEscape(functionID)
}

// MovedFunctionURL returns URL that redirects (308) to the function URL.
func (s *FunctionServer) MovedFunctionURL(functionID string) string {
	return s.URL + movedFunctionPath + "?functionId=" + url.QueryEscape(functionID)
}

// Calls returns all received calls in order of arrival.
func (s *FunctionServer) Calls() []FunctionCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FunctionCall(nil), s.calls...)
}

// MaxInFlight returns the maximum number of calls that were handled simultaneously.
func (s *FunctionServer) MaxInFlight() int {
	return int(s.maxInFlight.Load())
}

func (s *FunctionServer) serveFunction(rw http.ResponseWriter, r *http.Request) {
	cur := s.inFlight.Inc()
	defer s.inFlight.Dec()
	for {
		prev := s.maxInFlight.Load()
		if cur <= prev || s.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	call := FunctionCall{
		FunctionID: r.URL.Query().Get("functionId"),
		Method:     r.Method,
		Header:     r.Header.Clone(),
		StartedAt:  time.Now(),
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	call.Payload = payload

	s.mu.Lock()
	s.calls = append(s.calls, call)
	handler, ok := s.handlers[call.FunctionID]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		http.Error(rw, "unknown function", http.StatusNotFound)
		return
	}

	status, resp := handler(payload)
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(resp)
}
