/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi contains helpers for calling JSON HTTP APIs.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/orangeslice/orangeslice-go/log"
)

// ContentTypeAppJSON is the Content-Type of JSON requests and responses.
const ContentTypeAppJSON = "application/json"

const maxErrorBodySize = 255

const (
	logKeyMethod = "method"
	logKeyURI    = "uri"
	logKeyStatus = "status"
)

// DoRequest allows to do HTTP requests and log some its details.
func DoRequest(client *http.Client, req *http.Request, logger log.FieldLogger) (*http.Response, error) {
	logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("sent request",
			log.String(logKeyMethod, req.Method),
			log.String(logKeyURI, req.URL.Redacted()),
		)
	})

	resp, err := client.Do(req)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to do http request %s %s", req.Method, req.URL.Redacted()),
			log.String(logKeyMethod, req.Method),
			log.String(logKeyURI, req.URL.Redacted()),
			log.Error(err),
		)
		return nil, fmt.Errorf("do request: %w", err)
	}

	logger.AtLevel(log.LevelDebug, func(logFn log.LogFunc) {
		logFn("got response",
			log.String(logKeyMethod, req.Method),
			log.String(logKeyURI, req.URL.Redacted()),
			log.Int(logKeyStatus, resp.StatusCode),
		)
	})
	return resp, nil
}

// DoRequestAndUnmarshalJSON does HTTP request and unmarshals JSON response body of 2xx response into result.
// Other responses cause *ClientError with the status and the beginning of the body.
func DoRequestAndUnmarshalJSON(client *http.Client, req *http.Request, result interface{}, logger log.FieldLogger) error {
	resp, err := DoRequest(client, req, logger)
	if err != nil {
		return err // already logged in DoRequest
	}

	logger = logger.With(
		log.String(logKeyMethod, req.Method),
		log.String(logKeyURI, req.URL.Redacted()),
		log.Int(logKeyStatus, resp.StatusCode),
	)
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close response body after doing http request", log.Error(closeErr))
		}
	}()

	e := &ClientError{
		Method:     req.Method,
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil {
			logger.Error("error reading response body", log.Error(readErr))
		}
		e.Body = string(buf)
		e.Message = "unexpected status code"
		return e
	}

	if result == nil {
		return nil
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("error reading response body", log.Error(err))
		return e.wrap("reading response body", err)
	}
	if len(buf) == 0 {
		logger.Error("empty response")
		e.Message = "empty response"
		return e
	}
	if err = json.Unmarshal(buf, result); err != nil {
		logger.Error("error unmarshaling response", log.Error(err))
		return e.wrap("unmarshaling response", err)
	}
	return nil
}

// NewJSONRequest performs JSON marshaling of the passed data and creates a new http.Request.
// The Content-Length of the request is the size of the encoded body in bytes (not in characters).
func NewJSONRequest(ctx context.Context, method, url string, data interface{}) (*http.Request, error) {
	if data == nil {
		return nil, fmt.Errorf("data cannot be nil")
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, fmt.Errorf("method %s is not allowed for json request", method)
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ContentTypeAppJSON)
	req.Header.Set("Accept", ContentTypeAppJSON)
	return req, nil
}
