// Package quota limits how many protocol queries a program may issue in one turn.
package quota

import (
	"fmt"
	"sync/atomic"

	"wargame/protocol"
)

// Guard is a per-turn call counter. Once a call is denied every later call is denied too.
type Guard struct {
	limit int64
	used  atomic.Int64
}

// New returns a guard allowing limit calls. Negative limits allow none.
func New(limit int) *Guard {
	if limit < 0 {
		limit = 0
	}
	return &Guard{limit: int64(limit)}
}

// TryConsume records an attempted call and fails with protocol.ErrQuotaExceeded past the limit.
// The counter keeps growing on denied attempts, so denial is sticky.
func (g *Guard) TryConsume() error {
	n := g.used.Add(1)
	if n > g.limit {
		return fmt.Errorf("%w: call %d of %d", protocol.ErrQuotaExceeded, n, g.limit)
	}
	return nil
}

// Used is the number of attempted calls, including denied ones.
func (g *Guard) Used() int { return int(g.used.Load()) }

func (g *Guard) Limit() int { return int(g.limit) }

// Allowed is the number of calls that were let through.
func (g *Guard) Allowed() int {
	return int(min(g.used.Load(), g.limit))
}

func (g *Guard) Exhausted() bool {
	return g.used.Load() > g.limit
}
