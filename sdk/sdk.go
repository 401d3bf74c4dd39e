// Package sdk is the capability surface handed to a program: three synchronous queries
// against the engine, each metered by the turn's quota guard.
package sdk

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"wargame/game"
	"wargame/protocol"
	"wargame/quota"
)

// Transcript is a line-oriented, bidirectional stream to the engine.
type Transcript interface {
	WriteLine(line string) error
	ReadLine() (string, error)
}

// Client is everything a program may ask of the engine.
type Client interface {
	MyPosition() (game.Position, error)
	// UnitAt returns nil without error when no unit occupies p.
	UnitAt(p game.Position) (*game.MilitaryUnit, error)
	TileAt(p game.Position) (game.Tile, error)
}

// Conn is the host side implementation of Client bound to one turn.
// At most one request is outstanding at any time; replies carry no identifiers.
type Conn struct {
	transcript Transcript
	guard      *quota.Guard
	slot       chan struct{}
	cancelled  atomic.Bool
	exchanges  atomic.Int64
}

var _ Client = (*Conn)(nil)

func New(t Transcript, guard *quota.Guard) *Conn {
	return &Conn{
		transcript: t,
		guard:      guard,
		slot:       make(chan struct{}, 1),
	}
}

func (c *Conn) MyPosition() (game.Position, error) {
	line, err := c.Exchange(protocol.Query{Kind: protocol.MyPos})
	if err != nil {
		return game.Position{}, err
	}
	return protocol.DecodePosition(line)
}

func (c *Conn) UnitAt(p game.Position) (*game.MilitaryUnit, error) {
	line, err := c.Exchange(protocol.Query{Kind: protocol.MilUnit, Pos: p})
	if err != nil {
		return nil, err
	}
	return protocol.DecodeUnit(line)
}

func (c *Conn) TileAt(p game.Position) (game.Tile, error) {
	line, err := c.Exchange(protocol.Query{Kind: protocol.TileQ, Pos: p})
	if err != nil {
		return game.Tile{}, err
	}
	return protocol.DecodeTile(line)
}

// Exchange performs one metered request/response round trip and returns the raw reply.
func (c *Conn) Exchange(q protocol.Query) (string, error) {
	if c.cancelled.Load() {
		return "", protocol.ErrCancelled
	}
	if err := c.guard.TryConsume(); err != nil {
		return "", err
	}
	request, err := protocol.EncodeQuery(q)
	if err != nil {
		return "", err
	}

	c.slot <- struct{}{}
	defer func() { <-c.slot }()
	// Cancel may have landed while waiting for the slot.
	if c.cancelled.Load() {
		return "", protocol.ErrCancelled
	}

	if err := c.transcript.WriteLine(request); err != nil {
		return "", fmt.Errorf("write %s: %w", q.Kind, err)
	}
	line, err := c.transcript.ReadLine()
	if err != nil {
		return "", fmt.Errorf("read %s reply: %w", q.Kind, err)
	}
	c.exchanges.Add(1)
	log.Debug().Str("request", request).Str("reply", line).Msg("sdk exchange")

	if c.cancelled.Load() {
		return "", protocol.ErrCancelled
	}
	return line, nil
}

// Cancel makes every later call fail with protocol.ErrCancelled without touching the transcript.
func (c *Conn) Cancel() {
	c.cancelled.Store(true)
}

func (c *Conn) Cancelled() bool {
	return c.cancelled.Load()
}

// Quiesce waits up to timeout for an in-flight exchange to finish. It reports false if the
// transcript is still mid-exchange, in which case its framing can no longer be trusted.
func (c *Conn) Quiesce(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.slot <- struct{}{}:
		<-c.slot
		return true
	case <-timer.C:
		return false
	}
}

// Exchanges counts completed round trips.
func (c *Conn) Exchanges() int {
	return int(c.exchanges.Load())
}

func (c *Conn) Guard() *quota.Guard {
	return c.guard
}
