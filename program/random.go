package program

import (
	"sync"

	"golang.org/x/exp/rand"

	"wargame/game"
	"wargame/sdk"
)

type random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a routine that ignores the board and picks uniformly among all actions.
func NewRandom(seed uint64) Program {
	return &random{rng: rand.New(rand.NewSource(seed))}
}

func (r *random) Decide(sdk.Client) (game.Action, error) {
	actions := game.Actions()
	r.mu.Lock()
	defer r.mu.Unlock()
	return actions[r.rng.Intn(len(actions))], nil
}
