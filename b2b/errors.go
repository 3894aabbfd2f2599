/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package b2b

import (
	"errors"
	"fmt"

	"github.com/orangeslice/orangeslice-go/internal/remotefn"
)

// ErrEmptyQuery is returned when an empty SQL query is passed.
var ErrEmptyQuery = errors.New("B2B SQL query should not be empty")

// RequestError is returned when the query endpoint responds with a non-2xx status.
type RequestError struct {
	StatusCode int
	// Status is the status line text, e.g. "502 Bad Gateway".
	Status string
	Err    error
}

func (e *RequestError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return "B2B SQL request failed: " + status
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// QueryError is returned when the query endpoint reports an error in the response body
// (e.g. a syntax error in the query).
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "B2B SQL error: " + e.Message
}

func mapCallError(err error) error {
	if remotefn.IsInvalidRequest(err) {
		return ErrEmptyQuery
	}
	if clientErr, ok := remotefn.UnexpectedStatus(err); ok {
		return &RequestError{StatusCode: clientErr.StatusCode, Status: clientErr.Status, Err: clientErr}
	}
	return err
}
