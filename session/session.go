// Package session serves the engine's turn selections: for each selected side it runs the
// bound program and answers with exactly one command.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"wargame/game"
	"wargame/metrics"
	"wargame/protocol"
	"wargame/record"
	"wargame/runner"
	"wargame/sdk"
)

// ErrDesynced ends a session whose transcript still had a request outstanding after a turn
// was resolved.
var ErrDesynced = errors.New("transcript desynchronized")

type Session struct {
	id         string
	transcript sdk.Transcript
	runner     runner.Runner
	collector  metrics.Collector
	recorder   record.Recorder
	turns      int
}

type Option func(s *Session)

func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func WithCollector(c metrics.Collector) Option {
	return func(s *Session) {
		if c != nil {
			s.collector = c
		}
	}
}

func WithRecorder(r record.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

func New(t sdk.Transcript, r runner.Runner, options ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		transcript: t,
		runner:     r,
		collector:  metrics.NewDummyCollector(),
		recorder:   record.Nop,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Turns is the number of turns served so far.
func (s *Session) Turns() int {
	return s.turns
}

// Serve handles selections until END. It returns nil on END and an error on anything that
// leaves the transcript unusable: a malformed selection, a transport failure, end of input
// before END or a desynchronized turn.
func (s *Session) Serve(ctx context.Context) error {
	s.collector.Start(s.id)
	log.Info().Str("session", s.id).Msg("session started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.transcript.ReadLine()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("session %s: input ended before %s: %w", s.id, protocol.End, io.ErrUnexpectedEOF)
		}
		if err != nil {
			return fmt.Errorf("session %s: read selection: %w", s.id, err)
		}

		sel, err := protocol.ParseSelection(line)
		if err != nil {
			log.Error().Err(err).Str("session", s.id).Msg("protocol violation")
			return err
		}
		if sel.End {
			log.Info().Str("session", s.id).Int("turns", s.turns).Msg("session ended")
			return nil
		}

		if err := s.turn(ctx, sel.Side); err != nil {
			return err
		}
	}
}

func (s *Session) turn(ctx context.Context, side game.PlayerIdentity) error {
	if err := s.transcript.WriteLine(protocol.Confirmed); err != nil {
		return fmt.Errorf("confirm %s: %w", side, err)
	}
	s.turns++
	res := s.runner.Run(ctx, side, s.transcript)
	s.observe(res)

	if res.Desynced {
		return fmt.Errorf("session %s turn %d: %w", s.id, s.turns, ErrDesynced)
	}
	if err := s.transcript.WriteLine(protocol.EncodeCommand(res.Action)); err != nil {
		return fmt.Errorf("command %s: %w", side, err)
	}
	log.Info().Msgf("turn %d: %s plays %s (%s)", s.turns, side, res.Action, res.Outcome)
	return nil
}

func (s *Session) observe(res runner.Result) {
	s.collector.Observe(metrics.TurnMetric{
		Turn:     s.turns,
		Side:     res.Side,
		Outcome:  res.Outcome.String(),
		Action:   res.Action,
		Calls:    res.Calls,
		QuotaHit: res.QuotaHit,
		Duration: res.Duration,
	})

	rec := record.TurnRecord{
		Session:    s.id,
		Turn:       s.turns,
		Side:       res.Side,
		Outcome:    res.Outcome.String(),
		Action:     res.Action,
		Calls:      res.Calls,
		QuotaHit:   res.QuotaHit,
		DurationMS: res.Duration.Milliseconds(),
		Desynced:   res.Desynced,
		At:         time.Now().UTC(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	// A lost record never costs the engine its command.
	if err := s.recorder.RecordTurn(rec); err != nil {
		log.Warn().Err(err).Str("session", s.id).Int("turn", s.turns).Msg("record turn")
	}
}
