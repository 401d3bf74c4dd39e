package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"wargame/game"
	"wargame/protocol"
	"wargame/quota"
)

// board is an in-memory sdk.Client metered by a quota guard.
type board struct {
	me    game.Position
	units map[game.Position]game.MilitaryUnit
	tiles map[game.Position]game.Tile
	guard *quota.Guard
}

func newBoard(limit int) *board {
	return &board{
		me:    game.Position{X: 5, Y: 7},
		units: map[game.Position]game.MilitaryUnit{},
		tiles: map[game.Position]game.Tile{},
		guard: quota.New(limit),
	}
}

func (b *board) MyPosition() (game.Position, error) {
	if err := b.guard.TryConsume(); err != nil {
		return game.Position{}, err
	}
	return b.me, nil
}

func (b *board) UnitAt(p game.Position) (*game.MilitaryUnit, error) {
	if err := b.guard.TryConsume(); err != nil {
		return nil, err
	}
	u, ok := b.units[p]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (b *board) TileAt(p game.Position) (game.Tile, error) {
	if err := b.guard.TryConsume(); err != nil {
		return game.Tile{}, err
	}
	t, ok := b.tiles[p]
	if !ok {
		return game.NewTile(game.Empty), nil
	}
	return t, nil
}

func (b *board) placeSelf(dir game.Direction) {
	b.units[b.me] = game.MilitaryUnit{Identity: game.Black, ID: 1, Direction: dir, Soldiers: 40, Morale: 80, Leadership: 5}
}

func TestIdle(t *testing.T) {
	b := newBoard(5)
	a, err := Idle.Decide(b)
	require.NoError(t, err)
	require.Equal(t, game.DoNothing, a)
	require.Equal(t, 3, b.guard.Used(), "Idle issues exactly three queries")

	_, err = Idle.Decide(newBoard(2))
	require.ErrorIs(t, err, protocol.ErrQuotaExceeded)
}

func TestAggressor(t *testing.T) {
	t.Run("attacks an enemy ahead", func(t *testing.T) {
		b := newBoard(5)
		b.placeSelf(game.East)
		b.units[b.me.Step(game.East)] = game.MilitaryUnit{Identity: game.White, ID: 9}
		a, err := Aggressor.Decide(b)
		require.NoError(t, err)
		require.Equal(t, game.Attack, a)
	})

	t.Run("turns from a mountain", func(t *testing.T) {
		b := newBoard(5)
		b.placeSelf(game.North)
		b.tiles[b.me.Step(game.North)] = game.NewTile(game.Mountain)
		a, err := Aggressor.Decide(b)
		require.NoError(t, err)
		require.Equal(t, game.TurnLeft, a)
	})

	t.Run("advances over open ground", func(t *testing.T) {
		b := newBoard(5)
		b.placeSelf(game.West)
		a, err := Aggressor.Decide(b)
		require.NoError(t, err)
		require.Equal(t, game.MoveForward, a)
	})

	t.Run("turns at the board edge", func(t *testing.T) {
		b := newBoard(5)
		b.me = game.Position{X: 9, Y: 0}
		b.placeSelf(game.East)
		a, err := Aggressor.Decide(b)
		require.NoError(t, err)
		require.Equal(t, game.TurnLeft, a)
	})
}

func TestRandomIsDeterministicPerSeed(t *testing.T) {
	r1, r2 := NewRandom(7), NewRandom(7)
	for i := 0; i < 20; i++ {
		a1, err := r1.Decide(nil)
		require.NoError(t, err)
		a2, _ := r2.Decide(nil)
		require.Equal(t, a1, a2)
		require.True(t, a1.Valid())
	}
}

const attackScript = `
let me = MyPosition();
let self = UnitAt(me.X, me.Y);
self == nil ? DO_NOTHING : (
  let next = Ahead(me.X, me.Y, self.Direction);
  let enemy = UnitAt(next.X, next.Y);
  enemy != nil && enemy.Side != self.Side ? ATTACK :
  TileAt(next.X, next.Y).Type == "MOUNTAIN" ? TURN_RIGHT : MOVE_FORWARD
)`

func TestScript(t *testing.T) {
	s, err := CompileScript("attack", attackScript)
	require.NoError(t, err)

	t.Run("attacks", func(t *testing.T) {
		b := newBoard(5)
		b.placeSelf(game.South)
		b.units[b.me.Step(game.South)] = game.MilitaryUnit{Identity: game.White}
		a, err := s.Decide(b)
		require.NoError(t, err)
		require.Equal(t, game.Attack, a)
	})

	t.Run("reads tiles", func(t *testing.T) {
		b := newBoard(5)
		b.placeSelf(game.South)
		b.tiles[b.me.Step(game.South)] = game.NewTile(game.Mountain)
		a, err := s.Decide(b)
		require.NoError(t, err)
		require.Equal(t, game.TurnRight, a)
	})

	t.Run("quota errors reach the caller", func(t *testing.T) {
		b := newBoard(2)
		b.placeSelf(game.South)
		_, err := s.Decide(b)
		require.ErrorIs(t, err, protocol.ErrQuotaExceeded)
	})

	t.Run("unknown action name", func(t *testing.T) {
		bad, err := CompileScript("bad", `"FLY"`)
		require.NoError(t, err)
		_, err = bad.Decide(newBoard(1))
		require.Error(t, err)
	})
}

func TestCompileScriptRejects(t *testing.T) {
	for _, src := range []string{`1 + 1`, `Launch()`, `MyPosition(1)`} {
		_, err := CompileScript("bad", src)
		require.Error(t, err, "source %q", src)
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("builtin:idle")
	require.NoError(t, err)
	require.NotNil(t, p)

	_, err = Load("builtin:random:42")
	require.NoError(t, err)

	_, err = Load("builtin:random:x")
	require.Error(t, err)

	_, err = Load("builtin:chess")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "white.expr")
	require.NoError(t, os.WriteFile(path, []byte(`DO_NOTHING`), 0o644))
	reg, err := LoadRegistry(map[game.PlayerIdentity]string{game.Black: "builtin:aggressor", game.White: path})
	require.NoError(t, err)

	white, err := reg.Lookup(game.White)
	require.NoError(t, err)
	a, err := white.Decide(newBoard(0))
	require.NoError(t, err)
	require.Equal(t, game.DoNothing, a)

	_, err = NewRegistry().Lookup(game.Black)
	require.Error(t, err)
}
