package invoker

import (
	"fmt"
)

// ClientConfigError reports an invalid static configuration.
type ClientConfigError struct {
	Field string
	Err   error
}

func (e *ClientConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invoker: invalid client config: %v", e.Err)
	}
	return fmt.Sprintf("invoker: invalid client config: %s: %v", e.Field, e.Err)
}

func (e *ClientConfigError) Unwrap() error { return e.Err }

// InvocationError reports a terminal invocation failure: auth, quota,
// network, or timeout after retries were exhausted.
type InvocationError struct {
	Backend  Kind
	Model    string
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoker: %s/%s failed after %d attempt(s): %v", e.Backend, e.Model, e.Attempts, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
