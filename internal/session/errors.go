package session

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations that require a live connection.
var ErrNotConnected = errors.New("session not connected")

// AuthError indicates missing or rejected credentials. It is fatal for the
// connect attempt that produced it: the manager never retries past it.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// TransportError indicates the connection dropped or could not be
// established. Attempts records how many reconnect attempts were consumed
// before the error was surfaced (zero for an initial connect failure).
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("connection lost after %d reconnect attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
