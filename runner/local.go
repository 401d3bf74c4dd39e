package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"wargame/game"
	"wargame/program"
	"wargame/quota"
	"wargame/sdk"
)

// Local runs programs on a goroutine in the host process. Cancellation is cooperative: once
// the budget expires every SDK call fails and the late result is discarded, but a program
// spinning without SDK calls keeps its goroutine until it returns on its own.
type Local struct {
	programs *program.Registry
	settings settings
}

func NewLocal(programs *program.Registry, options ...Option) *Local {
	return &Local{programs: programs, settings: newSettings(options)}
}

type decision struct {
	action game.Action
	err    error
}

func (l *Local) Run(ctx context.Context, side game.PlayerIdentity, t sdk.Transcript) Result {
	start := time.Now()
	res := Result{Side: side, Action: l.settings.fallback, Outcome: Pending}

	p, err := l.programs.Lookup(side)
	if err != nil {
		res.Outcome, res.Err = Faulted, err
		res.Duration = time.Since(start)
		return res
	}

	conn := sdk.New(t, quota.New(l.settings.quota))

	// Capacity 1: the program's goroutine never blocks on send, and a result that arrives
	// after the deadline sits in the buffer unread.
	done := make(chan decision, 1)
	go func() {
		a, err := Invoke(p, conn)
		done <- decision{action: a, err: err}
	}()

	timer := time.NewTimer(l.settings.timeout)
	defer timer.Stop()

	select {
	case d := <-done:
		res.Action, res.Outcome, res.Err = classify(d.action, d.err, l.settings.fallback)
	case <-timer.C:
		res.Outcome, res.Err = TimedOut, context.DeadlineExceeded
	case <-ctx.Done():
		res.Outcome, res.Err = TimedOut, ctx.Err()
	}

	return settle(res, conn, l.settings.grace, start)
}

// settle stops the turn's client and waits for its transcript to go idle.
func settle(res Result, conn *sdk.Conn, grace time.Duration, start time.Time) Result {
	conn.Cancel()
	if !conn.Quiesce(grace) {
		res.Desynced = true
	}
	res.Calls = conn.Guard().Allowed()
	res.QuotaHit = res.QuotaHit || conn.Guard().Exhausted()
	res.Duration = time.Since(start)

	event := log.Debug()
	if res.Outcome != Completed {
		event = log.Warn().Err(res.Err)
	}
	event.Str("side", string(res.Side)).
		Str("outcome", res.Outcome.String()).
		Str("action", res.Action.String()).
		Int("calls", res.Calls).
		Dur("took", res.Duration).
		Bool("desynced", res.Desynced).
		Msg("turn resolved")
	return res
}
