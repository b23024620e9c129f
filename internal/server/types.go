// Package server defines shared errors, enumerations and utility helpers that
// are reused across the lifecycle, routing and session code.
package server

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyListening is returned by Start while the server is bound.
	ErrAlreadyListening = errors.New("server: already listening")
	// ErrLANUnavailable is returned when no LAN address could be resolved for a URL.
	ErrLANUnavailable = errors.New("server: lan address unavailable")
	// ErrSessionClosed is returned when writing to a session that has disconnected.
	ErrSessionClosed = errors.New("server: session closed")
	// ErrSendBufferFull is returned when a session's outbound queue is saturated.
	ErrSendBufferFull = errors.New("server: session send buffer full")
)

// BindError reports that the listening socket could not be opened.
type BindError struct {
	Port uint16
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of a Server.
type State int

const (
	// Stopped is the initial and terminal state.
	Stopped State = iota
	// Listening is entered only after a successful bind.
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "stopped"
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
