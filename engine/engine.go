// Package engine is a local stand-in for the game engine: it owns a board, selects sides,
// answers program queries and collects the commands. It applies no game rules.
package engine

import (
	"fmt"
	"sync"

	"wargame/game"
	"wargame/protocol"
)

// MaxTurns bounds a local game.
const MaxTurns = 500

// Board is the queried state of the world.
type Board struct {
	mu        sync.RWMutex
	tiles     map[game.Position]game.Tile
	units     map[game.Position]game.MilitaryUnit
	positions map[game.PlayerIdentity]game.Position
}

// NewBoard returns a MaxWidth x MaxHeight board of empty tiles.
func NewBoard() *Board {
	return &Board{
		tiles:     make(map[game.Position]game.Tile),
		units:     make(map[game.Position]game.MilitaryUnit),
		positions: make(map[game.PlayerIdentity]game.Position),
	}
}

func (b *Board) SetTile(p game.Position, t game.Tile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tiles[p] = t
}

// Place puts u at p and makes p the position its side reports for MY_POS.
func (b *Board) Place(p game.Position, u game.MilitaryUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units[p] = u
	b.positions[u.Identity] = p
}

func (b *Board) Tile(p game.Position) game.Tile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.tiles[p]; ok {
		return t
	}
	return game.NewTile(game.Empty)
}

func (b *Board) Unit(p game.Position) *game.MilitaryUnit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if u, ok := b.units[p]; ok {
		return &u
	}
	return nil
}

// Answer produces the reply line to a request made by side.
func (b *Board) Answer(side game.PlayerIdentity, request string) (string, error) {
	q, err := protocol.ParseRequest(request)
	if err != nil {
		return "", err
	}
	switch q.Kind {
	case protocol.MyPos:
		b.mu.RLock()
		p, ok := b.positions[side]
		b.mu.RUnlock()
		if !ok {
			return "", fmt.Errorf("%s has no unit on the board", side)
		}
		return protocol.EncodePosition(p), nil
	case protocol.MilUnit:
		return protocol.EncodeUnit(b.Unit(q.Pos)), nil
	default:
		return protocol.EncodeTile(b.Tile(q.Pos)), nil
	}
}

// Skirmish is a small starting position with one unit per side facing each other.
func Skirmish() *Board {
	b := NewBoard()
	b.Place(game.Position{X: 2, Y: 5}, game.MilitaryUnit{Identity: game.Black, ID: 1, Direction: game.East, Soldiers: 100, Morale: 80, Leadership: 30})
	b.Place(game.Position{X: 7, Y: 5}, game.MilitaryUnit{Identity: game.White, ID: 2, Direction: game.West, Soldiers: 100, Morale: 80, Leadership: 30})
	b.SetTile(game.Position{X: 4, Y: 4}, game.NewTile(game.Mountain))
	b.SetTile(game.Position{X: 5, Y: 6}, game.NewTile(game.Fort))
	b.SetTile(game.Position{X: 0, Y: 0}, game.NewCity(2))
	b.SetTile(game.Position{X: 9, Y: 9}, game.NewCity(2))
	return b
}
