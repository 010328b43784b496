package assistant

import "fmt"

// ValidationError reports a request that is missing required fields.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MalformedResponseError reports model output that is not the expected JSON.
// Raw holds the unmodified model text.
type MalformedResponseError struct {
	Agent string
	Raw   string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v", e.Agent, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
