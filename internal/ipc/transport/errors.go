package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by calls on a channel after Close.
	ErrClosed = errors.New("ipc: channel closed")
	// ErrMessageTooLarge is returned for payloads above the channel limit.
	ErrMessageTooLarge = errors.New("ipc: message too large")
	// ErrListenerClosed is returned by Accept once the listener is closed.
	ErrListenerClosed = errors.New("ipc: listener closed")
	// ErrAddressInUse is returned by Bind when a live listener, or a file
	// that is not a socket, already occupies the address.
	ErrAddressInUse = errors.New("ipc: address already in use")
	// ErrInsecureDir is returned by Bind when the per-user socket directory
	// is not owned by the current user or is writable by others.
	ErrInsecureDir = errors.New("ipc: insecure socket directory")

	ErrNoTransport        = errors.New("no transport for kind")
	ErrDuplicateTransport = errors.New("duplicate transport kind")
	ErrUnsupported        = errors.New("transport not supported on this platform")
)

// ConnectReason tells apart the ways a connect can fail.
type ConnectReason int

const (
	ReasonDirMissing ConnectReason = iota + 1
	ReasonEndpointMissing
	ReasonRefused
)

func (r ConnectReason) String() string {
	switch r {
	case ReasonDirMissing:
		return "socket directory missing"
	case ReasonEndpointMissing:
		return "endpoint missing"
	case ReasonRefused:
		return "connection refused"
	default:
		return "connect failed"
	}
}

// ConnectError is returned when a configured endpoint cannot be reached.
type ConnectError struct {
	Reason ConnectReason
	Server string
	Addr   string
	Err    error
}

func (e *ConnectError) Error() string {
	msg := fmt.Sprintf("connect to %q at %s: %s", e.Server, e.Addr, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectError) Unwrap() error { return e.Err }
