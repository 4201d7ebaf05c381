package cli

import (
	"errors"
	"fmt"
)

// Process exit codes returned by the conduit command.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfig      = 2
	ExitUnavailable = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// ExitCode implements the exit code contract used by ExitCodeFor.
func (e *ConfigError) ExitCode() int { return ExitConfig }

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
	Code    int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode returns Code, or ExitError when unset.
func (e *CommandError) ExitCode() int {
	if e.Code == 0 {
		return ExitError
	}
	return e.Code
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError exiting with ExitError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// NewUnavailableError creates a CommandError for a dependency that could not
// be reached, exiting with ExitUnavailable.
func NewUnavailableError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
		Code:    ExitUnavailable,
	}
}

// ExitCodeFor maps err to a process exit code. Errors anywhere in the chain
// that carry an ExitCode method decide the code; other errors map to
// ExitError and nil maps to ExitOK.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitError
}
