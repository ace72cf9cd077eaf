package build

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPhaseOrder is returned when a driver phase runs out of order or
	// after a failed phase.
	ErrPhaseOrder = errors.New("driver phase out of order")
	// ErrUnknownDriver is returned for a build.driver with no registered driver.
	ErrUnknownDriver = errors.New("unknown build driver")
	// ErrUnknownEngine is returned for a postbuild.engines entry with no registered engine.
	ErrUnknownEngine = errors.New("unknown post-build engine")
)

// A BuildError represents an error that occurred during the build process.
type BuildError struct {
	Phase   string
	Message string
	Err     error
}

// Error returns the error message.
func (e *BuildError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Phase == "" {
		return msg
	}
	return e.Phase + ": " + msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// ExternalCommandFailure reports a delegated process that did not succeed.
// ExitCode is -1 when the process could not be started.
type ExternalCommandFailure struct {
	Args     []string
	ExitCode int
	Err      error
}

func (e *ExternalCommandFailure) Error() string {
	command := strings.Join(e.Args, " ")
	if e.ExitCode < 0 {
		return fmt.Sprintf("command %q failed: %v", command, e.Err)
	}
	return fmt.Sprintf("command %q exited with status %d", command, e.ExitCode)
}

func (e *ExternalCommandFailure) Unwrap() error { return e.Err }

// DaemonError reports a failed docker daemon operation.
type DaemonError struct {
	Op  string
	Err error
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("docker %s: %v", e.Op, e.Err)
}

func (e *DaemonError) Unwrap() error { return e.Err }

// ContainerExitFailure reports a build container that exited non-zero.
type ContainerExitFailure struct {
	ID       string
	Name     string
	ExitCode int64
	Kept     bool
}

func (e *ContainerExitFailure) Error() string {
	msg := fmt.Sprintf("build container %s exited with status %d", e.Name, e.ExitCode)
	if e.Kept {
		msg += fmt.Sprintf(" (kept as %s)", e.ID)
	}
	return msg
}
