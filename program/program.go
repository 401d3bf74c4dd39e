// Package program defines the decision routine a side plays with and the routines that ship
// with the host.
package program

import (
	"wargame/game"
	"wargame/sdk"
)

// Program chooses one action per turn. It may query the engine through c any number of
// times; every query counts against the turn's quota.
type Program interface {
	Decide(c sdk.Client) (game.Action, error)
}

// Func adapts an ordinary function to Program.
type Func func(c sdk.Client) (game.Action, error)

func (f Func) Decide(c sdk.Client) (game.Action, error) {
	return f(c)
}

// Idle inspects its own square and stands still.
var Idle Program = Func(func(c sdk.Client) (game.Action, error) {
	me, err := c.MyPosition()
	if err != nil {
		return game.Fallback, err
	}
	if _, err := c.UnitAt(me); err != nil {
		return game.Fallback, err
	}
	if _, err := c.TileAt(me); err != nil {
		return game.Fallback, err
	}
	return game.DoNothing, nil
})

// Aggressor attacks whatever enemy stands in front of it, advances over open ground and turns
// away from obstacles. It spends at most four queries.
var Aggressor Program = Func(func(c sdk.Client) (game.Action, error) {
	me, err := c.MyPosition()
	if err != nil {
		return game.Fallback, err
	}
	self, err := c.UnitAt(me)
	if err != nil || self == nil {
		return game.DoNothing, err
	}
	ahead := me.Step(self.Direction)
	if !ahead.InBounds() {
		return game.TurnLeft, nil
	}
	other, err := c.UnitAt(ahead)
	if err != nil {
		return game.Fallback, err
	}
	if other != nil {
		if other.IsEnemyOf(self.Identity) {
			return game.Attack, nil
		}
		return game.TurnRight, nil
	}
	tile, err := c.TileAt(ahead)
	if err != nil {
		return game.Fallback, err
	}
	if tile.Type == game.Mountain {
		return game.TurnLeft, nil
	}
	return game.MoveForward, nil
})
