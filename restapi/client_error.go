/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"errors"
	"fmt"
	"net/url"
)

// ClientError is returned by DoRequestAndUnmarshalJSON when the response cannot be used.
type ClientError struct {
	Message    string
	Method     string
	URL        *url.URL
	StatusCode int
	// Status is the status line text, e.g. "502 Bad Gateway".
	Status string
	// Body holds the beginning of the body of a non-2xx response.
	Body string
	Err  error
}

func (e *ClientError) wrap(message string, err error) *ClientError {
	e.Message = message
	e.Err = err
	return e
}

// Error implements error interface.
func (e *ClientError) Error() string {
	str := fmt.Sprintf("method: [%s] url: [%s] status: [%d] message: %s", e.Method, e.URL.Redacted(), e.StatusCode, e.Message)
	if e.Err != nil {
		str += fmt.Sprintf(" error: %s", e.Err.Error())
	}
	return str
}

// Is allows to check it with errors.Is.
func (e *ClientError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Unwrap allows to check it with errors.As.
func (e *ClientError) Unwrap() error {
	return e.Err
}
