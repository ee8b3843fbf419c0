package domain

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when an operation needs an authenticated user with
// an active chat session and none exists.
var ErrNoSession = errors.New("no active chat session")

// ErrStoreUnavailable marks persistence-backend failures. Read paths degrade
// to empty results instead of returning it; destructive paths surface it.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrEmptyMessage rejects a blank outbound message before any network call.
var ErrEmptyMessage = errors.New("message is empty")

// SendError wraps a failed message send with a message suitable for showing
// to the user. The send is at-most-once; retry is the caller's decision.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// UserMessage returns the user-displayable description of the failure.
func (e *SendError) UserMessage() string {
	return "Failed to send message. Please check your connection and try again."
}
