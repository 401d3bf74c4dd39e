package game

import "fmt"

type TileType string

const (
	Empty    TileType = "EMPTY"
	Mountain TileType = "MOUNTAIN"
	Fort     TileType = "FORT"
	City     TileType = "CITY"
)

func ParseTileType(s string) (TileType, error) {
	switch TileType(s) {
	case Empty, Mountain, Fort, City:
		return TileType(s), nil
	}
	return "", fmt.Errorf("unknown tile type %q", s)
}

// Tile carries a city level only when its type is City.
type Tile struct {
	Type  TileType
	level int
}

// NewTile builds a non-city tile. Use NewCity for cities.
func NewTile(t TileType) Tile {
	if t == City {
		panic("city tiles need a level, use NewCity")
	}
	return Tile{Type: t}
}

func NewCity(level int) Tile {
	return Tile{Type: City, level: level}
}

// CityLevel reports the level and whether the tile has one.
func (t Tile) CityLevel() (int, bool) {
	if t.Type != City {
		return 0, false
	}
	return t.level, true
}

func (t Tile) String() string {
	if lvl, ok := t.CityLevel(); ok {
		return fmt.Sprintf("%s(%d)", t.Type, lvl)
	}
	return string(t.Type)
}
