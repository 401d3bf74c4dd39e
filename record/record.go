// Package record keeps a durable trail of resolved turns.
package record

import (
	"errors"
	"time"

	"wargame/game"
)

// TurnRecord is one resolved turn as it is persisted.
type TurnRecord struct {
	Session    string              `json:"session"`
	Turn       int                 `json:"turn"`
	Side       game.PlayerIdentity `json:"side"`
	Outcome    string              `json:"outcome"`
	Action     game.Action         `json:"action"`
	Calls      int                 `json:"calls"`
	QuotaHit   bool                `json:"quota_hit"`
	DurationMS int64               `json:"duration_ms"`
	Desynced   bool                `json:"desynced,omitempty"`
	Error      string              `json:"error,omitempty"`
	At         time.Time           `json:"at"`
}

type Recorder interface {
	RecordTurn(r TurnRecord) error
	Close() error
}

type nop struct{}

// Nop discards every record.
var Nop Recorder = nop{}

func (nop) RecordTurn(TurnRecord) error { return nil }
func (nop) Close() error                { return nil }

type multi []Recorder

// Multi fans every record out to all recorders. Errors are joined.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) RecordTurn(r TurnRecord) error {
	var errs []error
	for _, rec := range m {
		errs = append(errs, rec.RecordTurn(r))
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, rec := range m {
		errs = append(errs, rec.Close())
	}
	return errors.Join(errs...)
}
