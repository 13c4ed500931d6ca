package session

import (
	"fmt"
	"time"

	"github.com/webvisor/webvisor/internal/pathutil"
)

// PathNotFoundError indicates a requested path does not exist; it is
// returned before any port, process, or forwarder exists.
type PathNotFoundError = pathutil.PathNotFoundError

// SpawnError indicates the file server executable could not be launched.
type SpawnError struct {
	Command string
	Err     error
}

// Error implements the error interface
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to launch server %s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying launch error
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// NotReadyError indicates the server did not accept a TCP connection on its
// port before the readiness timeout.
type NotReadyError struct {
	Port    int
	Timeout time.Duration
}

// Error implements the error interface
func (e *NotReadyError) Error() string {
	return fmt.Sprintf("server on port %d not ready after %v", e.Port, e.Timeout)
}
