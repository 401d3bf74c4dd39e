package program

import (
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"wargame/game"
	"wargame/sdk"
)

// Script size limit; expr has no loops, so node count bounds the work a script can describe.
const maxScriptNodes = 10000

// Pos, Unit and TileInfo are the values scripts see. They use plain field types so that
// scripts can compare them against string literals.
type Pos struct {
	X, Y int
}

type Unit struct {
	Side       string
	ID         int
	Direction  string
	Soldiers   int
	Morale     int
	Leadership int
}

type TileInfo struct {
	Type   string
	Level  int
	IsCity bool
}

// scriptEnv is the environment a script runs against. The function fields close over the
// turn's client.
type scriptEnv struct {
	MyPosition func() (Pos, error)
	UnitAt     func(x, y int) (*Unit, error)
	TileAt     func(x, y int) (TileInfo, error)
	Ahead      func(x, y int, direction string) Pos
	InBounds   func(x, y int) bool

	DO_NOTHING   string
	ATTACK       string
	MOVE_FORWARD string
	TURN_LEFT    string
	TURN_RIGHT   string
	RETREAT      string
}

// Script is a user-authored decision routine written in expr. It must evaluate to the name of
// an action, for example:
//
//	let me = MyPosition();
//	let self = UnitAt(me.X, me.Y);
//	self == nil ? DO_NOTHING : ATTACK
type Script struct {
	Name    string
	Source  string
	program *vm.Program
}

// CompileScript type-checks src against the script environment.
func CompileScript(name, src string) (*Script, error) {
	p, err := expr.Compile(src,
		expr.Env(scriptEnv{}),
		expr.AsKind(reflect.String),
		expr.MaxNodes(maxScriptNodes),
	)
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", name, err)
	}
	return &Script{Name: name, Source: src, program: p}, nil
}

// LoadScript compiles the script stored at path.
func LoadScript(path string) (*Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return CompileScript(path, string(raw))
}

func (s *Script) Decide(c sdk.Client) (game.Action, error) {
	// SDK failures are kept aside so the caller sees them unwrapped by the expr runtime.
	var (
		mu     sync.Mutex
		sdkErr error
	)
	keep := func(err error) error {
		if err != nil {
			mu.Lock()
			if sdkErr == nil {
				sdkErr = err
			}
			mu.Unlock()
		}
		return err
	}

	env := newEnv()
	env.MyPosition = func() (Pos, error) {
		p, err := c.MyPosition()
		return Pos{X: p.X, Y: p.Y}, keep(err)
	}
	env.UnitAt = func(x, y int) (*Unit, error) {
		u, err := c.UnitAt(game.Position{X: x, Y: y})
		if err != nil || u == nil {
			return nil, keep(err)
		}
		return &Unit{
			Side:       string(u.Identity),
			ID:         u.ID,
			Direction:  u.Direction.String(),
			Soldiers:   u.Soldiers,
			Morale:     u.Morale,
			Leadership: u.Leadership,
		}, nil
	}
	env.TileAt = func(x, y int) (TileInfo, error) {
		t, err := c.TileAt(game.Position{X: x, Y: y})
		if err != nil {
			return TileInfo{}, keep(err)
		}
		lvl, isCity := t.CityLevel()
		return TileInfo{Type: string(t.Type), Level: lvl, IsCity: isCity}, nil
	}

	out, err := vm.Run(s.program, env)
	mu.Lock()
	defer mu.Unlock()
	if sdkErr != nil {
		return game.Fallback, sdkErr
	}
	if err != nil {
		return game.Fallback, fmt.Errorf("script %s: %w", s.Name, err)
	}
	name, ok := out.(string)
	if !ok {
		return game.Fallback, fmt.Errorf("script %s returned %T, want an action name", s.Name, out)
	}
	return game.ParseAction(name)
}

func newEnv() scriptEnv {
	return scriptEnv{
		Ahead: func(x, y int, direction string) Pos {
			for i, n := range []string{"EAST", "NORTH", "WEST", "SOUTH"} {
				if n == direction {
					p := game.Position{X: x, Y: y}.Step(game.Direction(i))
					return Pos{X: p.X, Y: p.Y}
				}
			}
			return Pos{X: x, Y: y}
		},
		InBounds: func(x, y int) bool {
			return game.Position{X: x, Y: y}.InBounds()
		},
		DO_NOTHING:   game.DoNothing.String(),
		ATTACK:       game.Attack.String(),
		MOVE_FORWARD: game.MoveForward.String(),
		TURN_LEFT:    game.TurnLeft.String(),
		TURN_RIGHT:   game.TurnRight.String(),
		RETREAT:      game.Retreat.String(),
	}
}
