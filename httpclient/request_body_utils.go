/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/orangeslice/orangeslice-go/log"
)

// makeRequestBodyRewindable prepares a request body for re-sending it to a redirect location.
// It returns a function that sets a fresh copy of the initial body to the given request.
//
// http.Request.GetBody is preferred since it does not buffer anything (http.NewRequest sets it
// for in-memory readers). A seekable body is rewound. Other bodies are read into memory.
func makeRequestBodyRewindable(req *http.Request) (func(*http.Request) error, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return func(r *http.Request) error {
			r.Body = http.NoBody
			return nil
		}, nil
	}

	if req.GetBody != nil {
		getBody := req.GetBody
		return func(r *http.Request) error {
			newBody, err := getBody()
			if err != nil {
				return fmt.Errorf("get body for redirect: %w", err)
			}
			r.Body = newBody
			r.GetBody = getBody
			return nil
		}, nil
	}

	if bodySeeker, ok := req.Body.(io.ReadSeeker); ok {
		offset, err := bodySeeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("seek request body before doing first request: %w", err)
		}
		req.Body = io.NopCloser(bodySeeker)
		return func(r *http.Request) error {
			if _, seekErr := bodySeeker.Seek(offset, io.SeekStart); seekErr != nil {
				return fmt.Errorf("seek request body (offset=%d) for redirect: %w", offset, seekErr)
			}
			r.Body = io.NopCloser(bodySeeker)
			return nil
		}, nil
	}

	buffered, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read all request body before doing first request: %w", err)
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(buffered))
	return func(r *http.Request) error {
		r.Body = io.NopCloser(bytes.NewReader(buffered))
		return nil
	}, nil
}

// drainResponseBody reads and discards the entire response body to allow connection reuse.
func drainResponseBody(resp *http.Response, logger log.FieldLogger) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Error("failed to close redirect response body", log.Error(closeErr))
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		logger.Error("failed to discard redirect response body", log.Error(err))
	}
}
