package runner

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wargame/game"
	"wargame/program"
	"wargame/sdk"
)

// TestHelperProcess is the program child started by the Process tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	limit := DefaultQuota
	args := os.Args
	for i, arg := range args {
		if arg == "-quota" && i+1 < len(args) {
			limit, _ = strconv.Atoi(args[i+1])
		}
	}

	var p program.Program
	switch os.Getenv("HELPER_MODE") {
	case "idle":
		p = program.Idle
	case "sleep":
		p = program.Func(func(sdk.Client) (game.Action, error) {
			time.Sleep(10 * time.Second)
			return game.Attack, nil
		})
	case "panic":
		p = program.Func(func(sdk.Client) (game.Action, error) { panic("child") })
	case "quota":
		p = program.Func(func(c sdk.Client) (game.Action, error) {
			for i := 0; i < 3; i++ {
				if _, err := c.MyPosition(); err != nil {
					return game.Attack, err
				}
			}
			return game.Attack, nil
		})
	case "quota handled":
		p = program.Func(func(c sdk.Client) (game.Action, error) {
			if _, err := c.MyPosition(); err != nil {
				return game.Retreat, nil
			}
			return game.Attack, nil
		})
	case "linger":
		linger, _ := time.ParseDuration(os.Getenv("HELPER_LINGER"))
		fmt.Println("COMMAND ATTACK")
		time.Sleep(linger)
		os.Exit(0)
	case "garbage":
		fmt.Println("hello engine")
		os.Exit(0)
	case "silent":
		os.Exit(0)
	}
	os.Exit(ServeChild(p, limit, os.Stdin, os.Stdout))
}

func helper(t *testing.T, mode string, options ...Option) *Process {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HELPER_MODE", mode)
	return NewProcess(os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, options...)
}

func TestProcessCompleted(t *testing.T) {
	tr := responder()
	res := helper(t, "idle", WithTimeout(5*time.Second)).Run(context.Background(), game.Black, tr)

	require.Equal(t, Completed, res.Outcome, "err: %v", res.Err)
	require.Equal(t, game.DoNothing, res.Action)
	require.Equal(t, 3, res.Calls)
	require.Equal(t, []string{"REQUEST MY_POS", "REQUEST MIL_UNIT 5 7", "REQUEST TILE 5 7"}, tr.Requests())
}

func TestProcessTimeout(t *testing.T) {
	timeout, grace := 300*time.Millisecond, 200*time.Millisecond
	start := time.Now()
	res := helper(t, "sleep", WithTimeout(timeout), WithGrace(grace)).Run(context.Background(), game.Black, responder())

	require.Equal(t, TimedOut, res.Outcome)
	require.Equal(t, game.Fallback, res.Action)
	require.Less(t, time.Since(start), 5*time.Second, "The child must be killed rather than waited for")
}

func TestProcessQuota(t *testing.T) {
	res := helper(t, "quota", WithTimeout(5*time.Second), WithQuota(2)).Run(context.Background(), game.Black, responder())

	require.Equal(t, QuotaExceeded, res.Outcome)
	require.Equal(t, game.Fallback, res.Action)
	require.Equal(t, 2, res.Calls)
}

func TestProcessFaults(t *testing.T) {
	for _, mode := range []string{"panic", "garbage", "silent"} {
		t.Run(mode, func(t *testing.T) {
			res := helper(t, mode, WithTimeout(5*time.Second), WithFallback(game.Retreat)).Run(context.Background(), game.Black, responder())
			require.Equal(t, Faulted, res.Outcome)
			require.Equal(t, game.Retreat, res.Action)
			require.Error(t, res.Err)
		})
	}

	t.Run("missing executable", func(t *testing.T) {
		res := NewProcess("/nonexistent/program", nil).Run(context.Background(), game.Black, responder())
		require.Equal(t, Faulted, res.Outcome)
		require.Equal(t, game.Fallback, res.Action)
	})
}

func TestProcessCommandStandsWhileChildExits(t *testing.T) {
	t.Run("slow exit within budget", func(t *testing.T) {
		t.Setenv("HELPER_LINGER", "500ms")
		res := helper(t, "linger", WithTimeout(5*time.Second)).Run(context.Background(), game.Black, responder())
		require.Equal(t, Completed, res.Outcome, "err: %v", res.Err)
		require.Equal(t, game.Attack, res.Action)
	})

	t.Run("child outlives the budget", func(t *testing.T) {
		t.Setenv("HELPER_LINGER", "10s")
		timeout, grace := time.Second, 100*time.Millisecond
		start := time.Now()
		res := helper(t, "linger", WithTimeout(timeout), WithGrace(grace)).Run(context.Background(), game.Black, responder())
		require.Equal(t, Completed, res.Outcome, "err: %v", res.Err)
		require.Equal(t, game.Attack, res.Action)
		require.Less(t, time.Since(start), 5*time.Second, "The lingering child must be killed")
	})
}

func TestProcessHandledQuotaIsReported(t *testing.T) {
	res := helper(t, "quota handled", WithTimeout(5*time.Second), WithQuota(0)).Run(context.Background(), game.Black, responder())
	require.Equal(t, Completed, res.Outcome, "err: %v", res.Err)
	require.Equal(t, game.Retreat, res.Action)
	require.True(t, res.QuotaHit)
	require.Zero(t, res.Calls)
}

func TestProcessUnboundSide(t *testing.T) {
	refs := map[game.PlayerIdentity]string{game.White: "builtin:idle"}
	tr := responder()
	res := helper(t, "idle", WithPrograms(refs)).Run(context.Background(), game.Black, tr)
	require.Equal(t, Faulted, res.Outcome)
	require.Equal(t, game.Fallback, res.Action)
	require.ErrorContains(t, res.Err, "no program bound for BLACK")
	require.Empty(t, tr.Requests())
}

func TestRefine(t *testing.T) {
	done := Result{Action: game.Attack, Outcome: Completed}
	cases := []struct {
		code     int
		outcome  Outcome
		action   game.Action
		quotaHit bool
	}{
		{exitCompleted, Completed, game.Attack, false},
		{exitCompletedQuotaHit, Completed, game.Attack, true},
		{exitQuota, QuotaExceeded, game.TurnLeft, true},
		{exitFaulted, Faulted, game.TurnLeft, false},
		{-1, Completed, game.Attack, false}, // killed after its command
		{1, Completed, game.Attack, false},
	}
	for _, c := range cases {
		got := refine(done, c.code, game.TurnLeft)
		require.Equal(t, c.outcome, got.Outcome, "status %d", c.code)
		require.Equal(t, c.action, got.Action, "status %d", c.code)
		require.Equal(t, c.quotaHit, got.QuotaHit, "status %d", c.code)
	}
}

func TestChildProgram(t *testing.T) {
	t.Run("missing reference faults", func(t *testing.T) {
		var out strings.Builder
		code := ServeChild(ChildProgram(game.Black, ""), DefaultQuota, strings.NewReader(""), &out)
		require.Equal(t, exitFaulted, code)
		require.Equal(t, "COMMAND DO_NOTHING\n", out.String())
	})

	t.Run("unknown builtin faults", func(t *testing.T) {
		_, err := ChildProgram(game.White, "builtin:chess").Decide(nil)
		require.ErrorContains(t, err, "builtin:chess")
	})

	t.Run("builtin loads", func(t *testing.T) {
		want, err := program.NewRandom(3).Decide(nil)
		require.NoError(t, err)
		got, err := ChildProgram(game.White, "builtin:random:3").Decide(nil)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})
}
