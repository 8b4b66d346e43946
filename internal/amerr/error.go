// Package amerr defines the error types that decide how a failure affects the
// outcome of an automerger run.
package amerr

import (
	"errors"
	"fmt"
)

// ConfigError is returned when the run can not be executed because required
// configuration, inputs or the event payload are missing or invalid.
// It always terminates the run with a failure.
type ConfigError struct {
	Err error
}

func NewConfigError(err error) *ConfigError {
	return &ConfigError{Err: err}
}

// NewConfigErrorf formats according to the format specifier and returns it as
// ConfigError.
func NewConfigErrorf(format string, a ...any) *ConfigError {
	return &ConfigError{Err: fmt.Errorf(format, a...)}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Err)
}

// ContextError is returned when an event lacks context that is required to
// process it, e.g. a pull_request event without a pull request number.
type ContextError struct {
	Err error
}

func NewContextError(err error) *ContextError {
	return &ContextError{Err: err}
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("missing event context: %s", e.Err)
}

// ErrMissingPullRequest is wrapped in a ContextError when an event that is
// expected to reference a pull request does not.
var ErrMissingPullRequest = errors.New("event is not associated with a pull request")

// IsConfigError returns true if err wraps a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// IsContextError returns true if err wraps a ContextError.
func IsContextError(err error) bool {
	var ctxErr *ContextError
	return errors.As(err, &ctxErr)
}
