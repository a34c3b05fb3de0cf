package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMethod is returned for non-POST calls to a forwarding endpoint.
	ErrInvalidMethod = errors.New("method not allowed")
	// ErrSessionAbsent means there is no session to poll or clear.
	ErrSessionAbsent = errors.New("no active session")
	// ErrSessionActive is returned when a mailbox is requested while one is active.
	ErrSessionActive = errors.New("a session is already active")
	// ErrMalformedResponse means the provider envelope lacked a required field.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderError wraps any transport or parse failure talking to the mailbox provider.
type ProviderError struct {
	Op  string
	Err error
}

func NewProviderError(op string, err error) *ProviderError {
	return &ProviderError{Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err carries a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
