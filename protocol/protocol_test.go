package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"wargame/game"
)

func TestEncodeQuery(t *testing.T) {
	cases := []struct {
		q    Query
		want string
	}{
		{Query{Kind: MyPos}, "REQUEST MY_POS"},
		{Query{Kind: MilUnit, Pos: game.Position{X: 5, Y: 7}}, "REQUEST MIL_UNIT 5 7"},
		{Query{Kind: TileQ, Pos: game.Position{X: 0, Y: 9}}, "REQUEST TILE 0 9"},
	}
	for _, tc := range cases {
		got, err := EncodeQuery(tc.q)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)

		parsed, err := ParseRequest(got)
		require.NoError(t, err)
		require.Equal(t, tc.q, parsed, "ParseRequest should invert EncodeQuery")
	}

	_, err := EncodeQuery(Query{Kind: "WEATHER"})
	require.ErrorIs(t, err, ErrUnknownQuery)
}

func TestParseRequestRejects(t *testing.T) {
	for _, line := range []string{"", "REQUEST", "ASK MY_POS", "REQUEST MY_POS 1", "REQUEST TILE 1", "REQUEST TILE a b", "REQUEST FOG 1 2"} {
		_, err := ParseRequest(line)
		require.ErrorIs(t, err, ErrUnknownQuery, "line %q", line)
	}
}

func TestDecodeUnit(t *testing.T) {
	t.Run("NONE is absent, not an error", func(t *testing.T) {
		u, err := DecodeUnit("NONE")
		require.NoError(t, err)
		require.Nil(t, u)
	})

	t.Run("full unit", func(t *testing.T) {
		u, err := DecodeUnit("MIL_UNIT BLACK 12 1 40 80 5")
		require.NoError(t, err)
		require.Equal(t, &game.MilitaryUnit{
			Identity: game.Black, ID: 12, Direction: game.North, Soldiers: 40, Morale: 80, Leadership: 5,
		}, u)
	})

	t.Run("malformed lines", func(t *testing.T) {
		for _, line := range []string{
			"MIL_UNIT BLACK 12 1 40 80",
			"MIL_UNIT RED 12 1 40 80 5",
			"MIL_UNIT BLACK 12 4 40 80 5",
			"MIL_UNIT BLACK 12 1 4.0 80 5",
			"UNIT BLACK 12 1 40 80 5",
			"MIL_UNIT BLACK 12 1 -40 80 5",
			"none",
		} {
			u, err := DecodeUnit(line)
			require.Nil(t, u, "no partial unit for %q", line)
			require.ErrorIs(t, err, ErrMalformedResponse, "line %q", line)
			var de *DecodeError
			require.True(t, errors.As(err, &de))
			require.Equal(t, MilUnit, de.Kind)
		}
	})
}

func TestDecodeTile(t *testing.T) {
	tile, err := DecodeTile("TILE CITY 3")
	require.NoError(t, err)
	require.Equal(t, game.NewCity(3), tile)

	tile, err = DecodeTile("TILE EMPTY")
	require.NoError(t, err)
	require.Equal(t, game.NewTile(game.Empty), tile)
	_, ok := tile.CityLevel()
	require.False(t, ok)

	for _, line := range []string{"TILE", "TILE CITY", "TILE CITY x", "TILE FORT 2", "TILE LAVA", "NONE"} {
		_, err := DecodeTile(line)
		require.ErrorIs(t, err, ErrMalformedResponse, "line %q", line)
	}
}

func TestDecodePosition(t *testing.T) {
	p, err := DecodePosition("5 7")
	require.NoError(t, err)
	require.Equal(t, game.Position{X: 5, Y: 7}, p)

	for _, line := range []string{"5", "5 7 9", "0x5 7", "five seven"} {
		_, err := DecodePosition(line)
		require.ErrorIs(t, err, ErrMalformedResponse, "line %q", line)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	units := []*game.MilitaryUnit{
		nil,
		{Identity: game.White, ID: 3, Direction: game.South, Soldiers: 100, Morale: 10, Leadership: 30},
		{Identity: game.Black, ID: 0, Direction: game.East},
	}
	for _, u := range units {
		got, err := Decode(MilUnit, EncodeUnit(u))
		require.NoError(t, err)
		require.Equal(t, u, got)
	}

	tiles := []game.Tile{game.NewTile(game.Empty), game.NewTile(game.Mountain), game.NewTile(game.Fort), game.NewCity(0), game.NewCity(7)}
	for _, tile := range tiles {
		got, err := Decode(TileQ, EncodeTile(tile))
		require.NoError(t, err)
		require.Equal(t, tile, got)
	}

	for x := -2; x < game.MaxWidth; x++ {
		p := game.Position{X: x, Y: game.MaxHeight - x}
		got, err := Decode(MyPos, EncodePosition(p))
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
}

func TestSelection(t *testing.T) {
	sel, err := ParseSelection("BLACK")
	require.NoError(t, err)
	require.Equal(t, game.Black, sel.Side)

	sel, err = ParseSelection("END")
	require.NoError(t, err)
	require.True(t, sel.End)

	_, err = ParseSelection("GREEN")
	require.ErrorIs(t, err, ErrProtocolViolation)

	a, err := DecodeCommand(EncodeCommand(game.Attack))
	require.NoError(t, err)
	require.Equal(t, game.Attack, a)
	require.Equal(t, "COMMAND DO_NOTHING", EncodeCommand(game.DoNothing))

	_, err = DecodeCommand("COMMAND FLY")
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestIsRecoverable(t *testing.T) {
	require.True(t, IsRecoverable(ErrQuotaExceeded))
	require.True(t, IsRecoverable(decodeErr(TileQ, "x", "bad")))
	require.False(t, IsRecoverable(ErrProtocolViolation))
	require.False(t, IsRecoverable(errors.New("boom")))
}
