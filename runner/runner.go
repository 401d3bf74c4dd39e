// Package runner executes one decision per turn under a wall-clock budget and a query
// quota, and always produces exactly one action.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wargame/game"
	"wargame/program"
	"wargame/protocol"
	"wargame/sdk"
)

const (
	DefaultTimeout = time.Second
	DefaultGrace   = 200 * time.Millisecond
	DefaultQuota   = 5
)

var (
	ErrInvalidAction = errors.New("program returned an invalid action")
	ErrNoCommand     = errors.New("program exited without a command")
	ErrProgramOutput = errors.New("unexpected program output")
)

// Outcome is how a turn was resolved.
type Outcome int

const (
	Pending Outcome = iota
	Completed
	TimedOut
	Faulted
	QuotaExceeded
)

var outcomeNames = [...]string{"PENDING", "COMPLETED", "TIMED_OUT", "FAULTED", "QUOTA_EXCEEDED"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the resolution of one turn. Action is always a valid action.
type Result struct {
	Side     game.PlayerIdentity
	Action   game.Action
	Outcome  Outcome
	Err      error
	Calls    int
	QuotaHit bool
	Duration time.Duration
	// Desynced is set when a request was still unanswered after the grace period, so the
	// transcript can no longer be framed.
	Desynced bool
}

// Runner runs the program bound to side against transcript t.
type Runner interface {
	Run(ctx context.Context, side game.PlayerIdentity, t sdk.Transcript) Result
}

// PanicError carries a panic recovered from a program.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("program panicked: %v", e.Value)
}

// Invoke calls p and converts a panic into a *PanicError.
func Invoke(p program.Program, c sdk.Client) (a game.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = game.Fallback, &PanicError{Value: r}
		}
	}()
	return p.Decide(c)
}

// classify maps what a program returned onto an outcome and the action to emit.
func classify(a game.Action, err error, fallback game.Action) (game.Action, Outcome, error) {
	switch {
	case err == nil && a.Valid():
		return a, Completed, nil
	case err == nil:
		return fallback, Faulted, fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	case errors.Is(err, protocol.ErrQuotaExceeded):
		return fallback, QuotaExceeded, err
	default:
		return fallback, Faulted, err
	}
}

type settings struct {
	timeout  time.Duration
	grace    time.Duration
	quota    int
	fallback game.Action
	programs map[game.PlayerIdentity]string // Program references handed to Process children
}

type Option func(s *settings)

func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithGrace(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.grace = d
		}
	}
}

func WithQuota(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.quota = n
		}
	}
}

func WithFallback(a game.Action) Option {
	return func(s *settings) {
		if a.Valid() {
			s.fallback = a
		}
	}
}

// WithPrograms tells Process children which program reference to load for each side.
func WithPrograms(refs map[game.PlayerIdentity]string) Option {
	return func(s *settings) {
		s.programs = refs
	}
}

func newSettings(options []Option) settings {
	s := settings{ // Default values
		timeout:  DefaultTimeout,
		grace:    DefaultGrace,
		quota:    DefaultQuota,
		fallback: game.Fallback,
	}
	for _, option := range options {
		option(&s)
	}
	return s
}
