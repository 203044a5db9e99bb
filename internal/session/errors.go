package session

import "fmt"

// ValidationError reports a step precondition failure. The session is
// unchanged when one is returned.
type ValidationError struct {
	Step Step
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %s: %s", e.Step, e.Msg)
}

func newValidationError(step Step, format string, args ...any) *ValidationError {
	return &ValidationError{Step: step, Msg: fmt.Sprintf(format, args...)}
}
