/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import "fmt"

// WaitStage tells where a task was waiting when its context was done.
type WaitStage string

// Wait stages.
const (
	WaitStageAdmission WaitStage = "admission"
	WaitStageRateLimit WaitStage = "rate limit"
)

// WaitError is returned when the context is done before the task could start.
// The task is not invoked in this case.
type WaitError struct {
	Stage WaitStage
	Inner error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for %s: %s", e.Stage, e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *WaitError) Unwrap() error {
	return e.Inner
}
