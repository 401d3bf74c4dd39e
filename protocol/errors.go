package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is raised at the call site once a turn has used up its query quota.
	ErrQuotaExceeded = errors.New("query quota exceeded")
	// ErrCancelled is returned by queries issued after the runner gave up on the turn.
	ErrCancelled = errors.New("turn cancelled")
	// ErrMalformedResponse wraps every decode failure.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnknownQuery is returned for request lines whose verb is not recognised.
	ErrUnknownQuery = errors.New("unknown query")
	// ErrProtocolViolation is fatal: the session transcript can no longer be framed.
	ErrProtocolViolation = errors.New("session protocol violation")
)

// DecodeError describes a response line that could not be decoded for a query kind.
type DecodeError struct {
	Kind   Kind
	Line   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response %q: %s", e.Kind, e.Line, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformedResponse
}

func decodeErr(kind Kind, line, format string, args ...any) error {
	return &DecodeError{Kind: kind, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// IsRecoverable reports whether err belongs to the kinds the runner maps onto the fallback
// action without treating the turn as a host fault.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrCancelled) || errors.Is(err, ErrMalformedResponse)
}
