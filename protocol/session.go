package protocol

import (
	"fmt"
	"strings"

	"wargame/game"
)

// Selection is one inbound session token.
type Selection struct {
	Side game.PlayerIdentity
	End  bool
}

// ParseSelection reads BLACK, WHITE or END. Any other token is a protocol violation.
func ParseSelection(line string) (Selection, error) {
	token := strings.TrimSpace(line)
	if token == End {
		return Selection{End: true}, nil
	}
	side, err := game.ParsePlayerIdentity(token)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: selection %q", ErrProtocolViolation, line)
	}
	return Selection{Side: side}, nil
}

func EncodeCommand(a game.Action) string {
	return commandVerb + " " + a.String()
}

func DecodeCommand(line string) (game.Action, error) {
	words := strings.Fields(line)
	if len(words) != 2 || words[0] != commandVerb {
		return game.Fallback, fmt.Errorf("%w: command %q", ErrProtocolViolation, line)
	}
	a, err := game.ParseAction(words[1])
	if err != nil {
		return game.Fallback, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	return a, nil
}

// IsCommand reports whether line looks like a COMMAND line.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, commandVerb+" ")
}

// IsRequest reports whether line looks like a REQUEST line.
func IsRequest(line string) bool {
	return strings.HasPrefix(line, requestVerb+" ")
}
