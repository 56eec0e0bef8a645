package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is returned by an Outbox that can no longer write to
	// a connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrRateLimited is sent to clients that exceed their message budget.
	ErrRateLimited = errors.New("too many messages, slow down")
	// ErrAlreadyReplied is returned when a handler replies twice.
	ErrAlreadyReplied = errors.New("reply already sent")
)

// HandlerExecutionError wraps an unexpected failure inside handler logic.
type HandlerExecutionError struct {
	Command   string
	ContextID string
	ConnID    string
	Err       error
	// Panic holds the recovered value when the handler panicked.
	Panic any
	Stack []byte
}

func (e *HandlerExecutionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s panicked: %v", e.Command, e.Panic)
	}
	return fmt.Sprintf("handler %s failed: %v", e.Command, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Err }
