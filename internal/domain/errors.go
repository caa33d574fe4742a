package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConnectivity  = errors.New("connectivity error")
	ErrResponse      = errors.New("response error")
	ErrDecode        = errors.New("decode error")
	ErrConfiguration = errors.New("configuration error")
	ErrStaleUpdate   = errors.New("stale update")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock held")
)

// QuoteError is returned by venue adapters. Kind is one of the sentinels
// above so callers can match with errors.Is.
type QuoteError struct {
	Venue  string
	Kind   error
	Reason string
	Err    error
}

func (e *QuoteError) Error() string {
	msg := fmt.Sprintf("venue %s: %v", e.Venue, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *QuoteError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewQuoteError builds a QuoteError of the given kind.
func NewQuoteError(venue string, kind error, reason string, err error) *QuoteError {
	return &QuoteError{Venue: venue, Kind: kind, Reason: reason, Err: err}
}
