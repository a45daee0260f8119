package structs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ConfigError is an invalid option or option combination. It is always
// returned before any external process runs.
type ConfigError struct {
	Option  string
	Message string
}

func ConfigErrorf(option, format string, args ...interface{}) error {
	return &ConfigError{Option: option, Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.Message
}

type IncompatibleVersionError struct {
	Tool     string
	Expected string
	Actual   string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("Expected %s version %s.x but got %s", e.Tool, e.Expected, e.Actual)
}

// ExecutionError is a command that exited non-zero. Output holds what the
// command wrote before failing.
type ExecutionError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("bundling failed: %s", e.Err)

	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}

	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

func IsIncompatibleVersion(err error) bool {
	var e *IncompatibleVersionError
	return errors.As(err, &e)
}

func IsExecutionError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}
