package game

import (
	"fmt"
	"strconv"
)

// Board dimensions used by the web client and the local engine.
const (
	MaxWidth  = 10
	MaxHeight = 10
)

// Position is a board coordinate. It is comparable and safe to use as a map key.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return strconv.Itoa(p.X) + " " + strconv.Itoa(p.Y)
}

func (p Position) InBounds() bool {
	return p.X >= 0 && p.X < MaxWidth && p.Y >= 0 && p.Y < MaxHeight
}

// Step returns the neighbouring position in direction d.
func (p Position) Step(d Direction) Position {
	switch d {
	case East:
		return Position{X: p.X + 1, Y: p.Y}
	case North:
		return Position{X: p.X, Y: p.Y - 1}
	case West:
		return Position{X: p.X - 1, Y: p.Y}
	case South:
		return Position{X: p.X, Y: p.Y + 1}
	}
	return p
}

// PlayerIdentity is the side a program plays for.
type PlayerIdentity string

const (
	Black PlayerIdentity = "BLACK"
	White PlayerIdentity = "WHITE"
)

func ParsePlayerIdentity(s string) (PlayerIdentity, error) {
	switch PlayerIdentity(s) {
	case Black, White:
		return PlayerIdentity(s), nil
	}
	return "", fmt.Errorf("unknown player identity %q", s)
}

func (id PlayerIdentity) Opponent() PlayerIdentity {
	if id == Black {
		return White
	}
	return Black
}

// Direction is the facing of a military unit. The numeric values are the wire codes.
type Direction int

const (
	East Direction = iota
	North
	West
	South
)

var directionNames = [...]string{"EAST", "NORTH", "WEST", "SOUTH"}

func DirectionFromCode(code int) (Direction, error) {
	if code < 0 || code >= len(directionNames) {
		return East, fmt.Errorf("direction code %d out of range 0-3", code)
	}
	return Direction(code), nil
}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Left and Right rotate counter-clockwise and clockwise.
func (d Direction) Left() Direction  { return (d + 1) % 4 }
func (d Direction) Right() Direction { return (d + 3) % 4 }
func (d Direction) Back() Direction  { return (d + 2) % 4 }
