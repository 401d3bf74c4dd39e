package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"wargame/game"
	"wargame/protocol"
	"wargame/sdk"
)

// Move is one command received from the host.
type Move struct {
	Turn     int
	Side     game.PlayerIdentity
	Action   game.Action
	Requests int
}

// Local drives a host session over a transcript.
type Local struct {
	Board *Board
}

func NewLocal(b *Board) *Local {
	return &Local{Board: b}
}

// Play selects each side in turn order, answers the queries its program makes and collects
// the command, then ends the session.
func (e *Local) Play(ctx context.Context, t sdk.Transcript, turns []game.PlayerIdentity) ([]Move, error) {
	if len(turns) > MaxTurns {
		return nil, fmt.Errorf("%d turns exceeds the limit of %d", len(turns), MaxTurns)
	}
	moves := make([]Move, 0, len(turns))
	for i, side := range turns {
		if err := ctx.Err(); err != nil {
			return moves, err
		}
		log.Info().Msgf("turn %d: %s to move", i+1, side)
		move, err := e.turn(t, i+1, side)
		if err != nil {
			return moves, fmt.Errorf("turn %d: %w", i+1, err)
		}
		moves = append(moves, move)
	}
	return moves, t.WriteLine(protocol.End)
}

func (e *Local) turn(t sdk.Transcript, n int, side game.PlayerIdentity) (Move, error) {
	if err := t.WriteLine(string(side)); err != nil {
		return Move{}, err
	}
	ack, err := t.ReadLine()
	if err != nil {
		return Move{}, err
	}
	if ack != protocol.Confirmed {
		return Move{}, fmt.Errorf("want %s, got %q", protocol.Confirmed, ack)
	}

	move := Move{Turn: n, Side: side}
	for {
		line, err := t.ReadLine()
		if err != nil {
			return move, err
		}
		if protocol.IsCommand(line) {
			move.Action, err = protocol.DecodeCommand(line)
			return move, err
		}
		reply, err := e.Board.Answer(side, line)
		if err != nil {
			return move, err
		}
		move.Requests++
		if err := t.WriteLine(reply); err != nil {
			return move, err
		}
	}
}

// Responder is an in-process transcript that answers requests from a board as if it were
// the engine, optionally after a delay. It is meant for driving a runner directly.
type Responder struct {
	Board *Board
	Side  game.PlayerIdentity
	Delay time.Duration

	mu       sync.Mutex
	pending  []string
	requests []string
}

func (r *Responder) WriteLine(line string) error {
	reply, err := r.Board.Answer(r.Side, line)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, line)
	r.pending = append(r.pending, reply)
	return nil
}

func (r *Responder) ReadLine() (string, error) {
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return "", fmt.Errorf("read with no outstanding request")
	}
	line := r.pending[0]
	r.pending = r.pending[1:]
	return line, nil
}

// Requests returns every request line received so far.
func (r *Responder) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}
