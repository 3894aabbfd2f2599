/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ai

import (
	"fmt"

	"github.com/orangeslice/orangeslice-go/internal/remotefn"
)

// RequestError is returned when the generation endpoint responds with a non-2xx status.
type RequestError struct {
	StatusCode int
	// Status is the status line text, e.g. "429 Too Many Requests".
	Status string
	Err    error
}

func (e *RequestError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return "AI generateObject request failed: " + status
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// GenerationError is returned when the generation endpoint reports an error in the response body.
type GenerationError struct {
	Message string
}

func (e *GenerationError) Error() string {
	return "AI generateObject error: " + e.Message
}

func mapCallError(err error) error {
	if clientErr, ok := remotefn.UnexpectedStatus(err); ok {
		return &RequestError{StatusCode: clientErr.StatusCode, Status: clientErr.Status, Err: clientErr}
	}
	return err
}
