package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"wargame/game"
)

// Kind identifies a query verb.
type Kind string

const (
	MyPos   Kind = "MY_POS"
	MilUnit Kind = "MIL_UNIT"
	TileQ   Kind = "TILE"
)

const (
	requestVerb = "REQUEST"
	noneToken   = "NONE"
	commandVerb = "COMMAND"

	// Confirmed acknowledges a side selection.
	Confirmed = "CONFIRMED!"
	// End terminates a session.
	End = "END"
)

// Query is a single request a program makes through the SDK.
type Query struct {
	Kind Kind
	Pos  game.Position
}

func (q Query) String() string {
	line, err := EncodeQuery(q)
	if err != nil {
		return string(q.Kind)
	}
	return line
}

// EncodeQuery renders q as a request line.
func EncodeQuery(q Query) (string, error) {
	switch q.Kind {
	case MyPos:
		return requestVerb + " " + string(MyPos), nil
	case MilUnit, TileQ:
		return fmt.Sprintf("%s %s %d %d", requestVerb, q.Kind, q.Pos.X, q.Pos.Y), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownQuery, q.Kind)
}

// ParseRequest is the inverse of EncodeQuery.
func ParseRequest(line string) (Query, error) {
	words := strings.Fields(line)
	if len(words) < 2 || words[0] != requestVerb {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownQuery, line)
	}
	kind := Kind(words[1])
	switch kind {
	case MyPos:
		if len(words) != 2 {
			return Query{}, fmt.Errorf("%w: %q takes no arguments", ErrUnknownQuery, line)
		}
		return Query{Kind: MyPos}, nil
	case MilUnit, TileQ:
		if len(words) != 4 {
			return Query{}, fmt.Errorf("%w: %q wants two coordinates", ErrUnknownQuery, line)
		}
		x, errX := strconv.Atoi(words[2])
		y, errY := strconv.Atoi(words[3])
		if errX != nil || errY != nil {
			return Query{}, fmt.Errorf("%w: %q has non-numeric coordinates", ErrUnknownQuery, line)
		}
		return Query{Kind: kind, Pos: game.Position{X: x, Y: y}}, nil
	}
	return Query{}, fmt.Errorf("%w: %q", ErrUnknownQuery, line)
}

// Decode decodes line as the response to a query of the given kind. The result is a
// game.Position, a *game.MilitaryUnit (nil when absent) or a game.Tile.
func Decode(kind Kind, line string) (any, error) {
	switch kind {
	case MyPos:
		return DecodePosition(line)
	case MilUnit:
		return DecodeUnit(line)
	case TileQ:
		return DecodeTile(line)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownQuery, kind)
}

func DecodePosition(line string) (game.Position, error) {
	words := strings.Fields(line)
	if len(words) != 2 {
		return game.Position{}, decodeErr(MyPos, line, "want 2 tokens, got %d", len(words))
	}
	nums, err := atois(words)
	if err != nil {
		return game.Position{}, decodeErr(MyPos, line, "%v", err)
	}
	return game.Position{X: nums[0], Y: nums[1]}, nil
}

// DecodeUnit returns nil without error for the NONE sentinel.
func DecodeUnit(line string) (*game.MilitaryUnit, error) {
	words := strings.Fields(line)
	if len(words) == 1 && words[0] == noneToken {
		return nil, nil
	}
	if len(words) != 7 {
		return nil, decodeErr(MilUnit, line, "want 7 tokens, got %d", len(words))
	}
	if words[0] != string(MilUnit) {
		return nil, decodeErr(MilUnit, line, "unexpected leading token %q", words[0])
	}
	side, err := game.ParsePlayerIdentity(words[1])
	if err != nil {
		return nil, decodeErr(MilUnit, line, "%v", err)
	}
	nums, err := atois(words[2:])
	if err != nil {
		return nil, decodeErr(MilUnit, line, "%v", err)
	}
	dir, err := game.DirectionFromCode(nums[1])
	if err != nil {
		return nil, decodeErr(MilUnit, line, "%v", err)
	}
	for _, n := range []int{nums[0], nums[2], nums[3], nums[4]} {
		if n < 0 {
			return nil, decodeErr(MilUnit, line, "negative field %d", n)
		}
	}
	return &game.MilitaryUnit{
		Identity:   side,
		ID:         nums[0],
		Direction:  dir,
		Soldiers:   nums[2],
		Morale:     nums[3],
		Leadership: nums[4],
	}, nil
}

func DecodeTile(line string) (game.Tile, error) {
	words := strings.Fields(line)
	if len(words) < 2 || words[0] != string(TileQ) {
		return game.Tile{}, decodeErr(TileQ, line, "want TILE <kind> [level]")
	}
	kind, err := game.ParseTileType(words[1])
	if err != nil {
		return game.Tile{}, decodeErr(TileQ, line, "%v", err)
	}
	if kind != game.City {
		if len(words) != 2 {
			return game.Tile{}, decodeErr(TileQ, line, "%s takes no level", kind)
		}
		return game.NewTile(kind), nil
	}
	if len(words) != 3 {
		return game.Tile{}, decodeErr(TileQ, line, "CITY needs a level")
	}
	level, err := strconv.Atoi(words[2])
	if err != nil {
		return game.Tile{}, decodeErr(TileQ, line, "bad city level %q", words[2])
	}
	return game.NewCity(level), nil
}

func EncodePosition(p game.Position) string {
	return p.String()
}

// EncodeUnit renders u, or NONE when u is nil.
func EncodeUnit(u *game.MilitaryUnit) string {
	if u == nil {
		return noneToken
	}
	return fmt.Sprintf("%s %s %d %d %d %d %d", MilUnit, u.Identity, u.ID, int(u.Direction), u.Soldiers, u.Morale, u.Leadership)
}

func EncodeTile(t game.Tile) string {
	if lvl, ok := t.CityLevel(); ok {
		return fmt.Sprintf("%s %s %d", TileQ, t.Type, lvl)
	}
	return fmt.Sprintf("%s %s", TileQ, t.Type)
}

func atois(words []string) ([]int, error) {
	out := make([]int, len(words))
	for i, w := range words {
		n, err := strconv.Atoi(w)
		if err != nil {
			return nil, fmt.Errorf("token %q is not a base-10 integer", w)
		}
		out[i] = n
	}
	return out, nil
}
