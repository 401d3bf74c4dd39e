package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"wargame/game"
	"wargame/program"
	"wargame/protocol"
	"wargame/quota"
	"wargame/sdk"
	"wargame/transport"
)

// Exit codes a program child uses to report how it resolved its turn.
const (
	exitCompleted = 0
	exitQuota     = 3
	exitFaulted   = 4
	// The program handled a denied query and still returned an action.
	exitCompletedQuotaHit = 5
)

// Process runs each turn in a child process. The child speaks the same REQUEST/reply
// protocol on its stdio; the host relays requests to the engine through its own metered
// client and kills the child when the budget expires.
type Process struct {
	exe      string
	args     []string
	settings settings
}

// NewProcess runs `exe args... program -side S -quota N [-program REF]` for every turn.
func NewProcess(exe string, args []string, options ...Option) *Process {
	return &Process{exe: exe, args: args, settings: newSettings(options)}
}

func (p *Process) command(ctx context.Context, side game.PlayerIdentity) *exec.Cmd {
	args := append(append([]string{}, p.args...),
		"program", "-side", string(side), "-quota", strconv.Itoa(p.settings.quota))
	if ref, ok := p.settings.programs[side]; ok {
		args = append(args, "-program", ref)
	}
	cmd := exec.CommandContext(ctx, p.exe, args...)
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = p.settings.grace
	return cmd
}

func (p *Process) Run(ctx context.Context, side game.PlayerIdentity, t sdk.Transcript) Result {
	start := time.Now()
	res := Result{Side: side, Action: p.settings.fallback, Outcome: Pending}
	conn := sdk.New(t, quota.New(p.settings.quota))

	if _, ok := p.settings.programs[side]; p.settings.programs != nil && !ok {
		res.Outcome, res.Err = Faulted, fmt.Errorf("no program bound for %s", side)
		return settle(res, conn, p.settings.grace, start)
	}

	childCtx, kill := context.WithCancel(ctx)
	defer kill()

	cmd := p.command(childCtx, side)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		res.Outcome, res.Err = Faulted, err
		return settle(res, conn, p.settings.grace, start)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.Outcome, res.Err = Faulted, err
		return settle(res, conn, p.settings.grace, start)
	}
	if err := cmd.Start(); err != nil {
		res.Outcome, res.Err = Faulted, fmt.Errorf("start program: %w", err)
		return settle(res, conn, p.settings.grace, start)
	}

	done := make(chan decision, 1)
	go func() {
		a, err := relay(stdout, stdin, conn)
		done <- decision{action: a, err: err}
	}()

	timer := time.NewTimer(p.settings.timeout)
	defer timer.Stop()

	select {
	case d := <-done:
		res.Action, res.Outcome, res.Err = classify(d.action, d.err, p.settings.fallback)
	case <-timer.C:
		res.Outcome, res.Err = TimedOut, context.DeadlineExceeded
	case <-ctx.Done():
		res.Outcome, res.Err = TimedOut, ctx.Err()
	}

	if res.Outcome == Completed {
		// The command stands unless the child reports a fault it recovered from. A child
		// that lingers past the budget is killed without changing the result.
		wait := max(p.settings.timeout-time.Since(start), 0) + p.settings.grace
		res = refine(res, waitExit(cmd, wait), p.settings.fallback)
	} else {
		// Anything the child buffered but did not deliver is dropped with it.
		conn.Cancel()
		kill()
		_ = cmd.Wait()
	}
	return settle(res, conn, p.settings.grace, start)
}

// waitExit returns the child's exit status, or -1 if it had to be killed after wait.
func waitExit(cmd *exec.Cmd, wait time.Duration) int {
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		_ = cmd.Process.Kill()
		<-exited
		log.Debug().Int("pid", cmd.Process.Pid).Msg("program lingered after its command, killed")
		return -1
	}
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// refine applies the child's exit status to a completed turn. Only the statuses a child
// sets on purpose change the result.
func refine(res Result, code int, fallback game.Action) Result {
	switch code {
	case exitQuota:
		res.Action, res.Outcome, res.Err = fallback, QuotaExceeded, protocol.ErrQuotaExceeded
		res.QuotaHit = true
	case exitFaulted:
		res.Action, res.Outcome = fallback, Faulted
		res.Err = fmt.Errorf("program exited with status %d", code)
	case exitCompletedQuotaHit:
		res.QuotaHit = true
	}
	return res
}

// relay forwards the child's requests through conn until the child prints its command.
func relay(stdout io.Reader, stdin io.WriteCloser, conn *sdk.Conn) (game.Action, error) {
	defer stdin.Close()
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, transport.MaxLineBytes), transport.MaxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case protocol.IsRequest(line):
			q, err := protocol.ParseRequest(line)
			if err != nil {
				return game.Fallback, fmt.Errorf("%w: %v", ErrProgramOutput, err)
			}
			// The host guard is authoritative; a child that got past its own guard is stopped here.
			reply, err := conn.Exchange(q)
			if err != nil {
				return game.Fallback, err
			}
			if _, err := io.WriteString(stdin, reply+"\n"); err != nil {
				return game.Fallback, fmt.Errorf("forward reply: %w", err)
			}
		case protocol.IsCommand(line):
			return protocol.DecodeCommand(line)
		default:
			return game.Fallback, fmt.Errorf("%w: %q", ErrProgramOutput, line)
		}
	}
	if err := sc.Err(); err != nil {
		return game.Fallback, err
	}
	return game.Fallback, ErrNoCommand
}

// ServeChild is the child side of Process: it runs p once against stdio and prints the
// command. It returns the exit status to report.
func ServeChild(p program.Program, quotaLimit int, in io.Reader, out io.Writer) int {
	lines := transport.Stream(in, out)
	conn := sdk.New(lines, quota.New(quotaLimit))

	a, err := Invoke(p, conn)
	action, outcome, err := classify(a, err, game.Fallback)
	if werr := lines.WriteLine(protocol.EncodeCommand(action)); werr != nil {
		log.Error().Err(werr).Msg("write command")
		return exitFaulted
	}
	switch outcome {
	case Completed:
		if conn.Guard().Exhausted() {
			return exitCompletedQuotaHit
		}
		return exitCompleted
	case QuotaExceeded:
		return exitQuota
	}
	log.Warn().Err(err).Msg("program faulted")
	return exitFaulted
}

// ChildProgram resolves the program a child runs for side. A missing or unloadable reference
// yields a program that faults, so the host still receives a command and sees the fault in
// the exit status.
func ChildProgram(side game.PlayerIdentity, ref string) program.Program {
	if ref == "" {
		err := fmt.Errorf("no program bound for %s", side)
		return program.Func(func(sdk.Client) (game.Action, error) { return game.Fallback, err })
	}
	p, err := program.Load(ref)
	if err != nil {
		err = fmt.Errorf("%s program %q: %w", side, ref, err)
		return program.Func(func(sdk.Client) (game.Action, error) { return game.Fallback, err })
	}
	return p
}
