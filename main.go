package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wargame/config"
	"wargame/experiments"
	"wargame/game"
	"wargame/metrics"
	"wargame/record"
	"wargame/runner"
	"wargame/session"
	"wargame/transport"
)

const usage = `usage: wargame <command> [flags]

commands:
  host     serve engine turn selections on stdin/stdout or a websocket
  program  run one program turn on stdin/stdout (used by process isolation)
  demo     play local matches and store turn metrics`

func main() {
	// stdout carries the transcript, so logs go to stderr
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "host":
		code = host(os.Args[2:])
	case "program":
		code = child(os.Args[2:])
	case "demo":
		code = demo(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}

type overrides struct {
	config    *string
	timeout   *time.Duration
	grace     *time.Duration
	quota     *int
	fallback  *string
	isolation *string
	black     *string
	white     *string
	logLevel  *string
}

func configFlags(fs *flag.FlagSet) overrides {
	return overrides{
		config:    fs.String("config", "", "YAML configuration file"),
		timeout:   fs.Duration("timeout", runner.DefaultTimeout, "Wall-clock budget per turn"),
		grace:     fs.Duration("grace", runner.DefaultGrace, "Time allowed for an in-flight query to settle after the budget"),
		quota:     fs.Int("quota", runner.DefaultQuota, "Queries allowed per turn"),
		fallback:  fs.String("fallback", game.Fallback.String(), "Action played when a program fails"),
		isolation: fs.String("isolation", config.IsolationGoroutine, "Program isolation: goroutine or process"),
		black:     fs.String("black", "", "Program reference for BLACK"),
		white:     fs.String("white", "", "Program reference for WHITE"),
		logLevel:  fs.String("log-level", "info", "Log level"),
	}
}

// load reads the configuration file and applies only the flags given on the command line.
func (o overrides) load(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if *o.config != "" {
		var err error
		if cfg, err = config.Load(*o.config); err != nil {
			return cfg, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "timeout":
			cfg.Timeout = *o.timeout
		case "grace":
			cfg.Grace = *o.grace
		case "quota":
			cfg.Quota = *o.quota
		case "fallback":
			cfg.Fallback = *o.fallback
		case "isolation":
			cfg.Isolation = *o.isolation
		case "black":
			cfg.Programs[string(game.Black)] = *o.black
		case "white":
			cfg.Programs[string(game.White)] = *o.white
		case "log-level":
			cfg.LogLevel = *o.logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, err
	}
	zerolog.SetGlobalLevel(level)
	return cfg, nil
}

func host(args []string) int {
	fs := flag.NewFlagSet("host", flag.ExitOnError)
	o := configFlags(fs)
	ws := fs.String("ws", "", "Engine websocket URL; stdio when empty")
	fs.Parse(args)

	cfg, err := o.load(fs)
	if err != nil {
		log.Error().Err(err).Msg("configuration")
		return 2
	}
	if *ws != "" {
		cfg.Transport = config.Transport{Kind: config.TransportWebSocket, URL: *ws, ReadTimeout: cfg.Transport.ReadTimeout}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	programs, err := cfg.Registry()
	if err != nil {
		log.Error().Err(err).Msg("load programs")
		return 2
	}
	r, err := cfg.Runner(programs)
	if err != nil {
		log.Error().Err(err).Msg("runner")
		return 1
	}
	rec, err := recorder(cfg.Record)
	if err != nil {
		log.Error().Err(err).Msg("open records")
		return 1
	}
	defer rec.Close()

	var lines transport.Lines
	if cfg.Transport.Kind == config.TransportWebSocket {
		if lines, err = transport.Dial(ctx, cfg.Transport.URL, cfg.Transport.ReadTimeout); err != nil {
			log.Error().Err(err).Msg("connect to engine")
			return 1
		}
	} else {
		lines = transport.Stream(os.Stdin, os.Stdout)
	}
	defer lines.Close()

	collector := metrics.NewCollector()
	s := session.New(lines, r, session.WithCollector(collector), session.WithRecorder(rec))
	err = s.Serve(ctx)
	storeMetrics(cfg.Record.MetricsDir, s.ID(), collector)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID()).Msg("session failed")
		return 1
	}
	return 0
}

func recorder(c config.Record) (record.Recorder, error) {
	recorders := []record.Recorder{}
	if c.JournalDir != "" {
		recorders = append(recorders, record.NewJournal(c.JournalDir, "turns"))
	}
	if c.IndexPath != "" {
		idx, err := record.OpenIndex(c.IndexPath)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, idx)
	}
	if len(recorders) == 0 {
		return record.Nop, nil
	}
	return record.Multi(recorders...), nil
}

func storeMetrics(dir, id string, collector metrics.Collector) {
	if dir == "" {
		return
	}
	writer, err := metrics.NewWriter(dir)
	if err != nil {
		log.Error().Err(err).Msg("metrics")
		return
	}
	turns := []metrics.TurnRecord{}
	for _, t := range collector.Turns() {
		turns = append(turns, metrics.TurnRecord{Session: id, TurnMetric: t})
	}
	if err := writer.WriteTurns(turns); err != nil {
		log.Error().Err(err).Msg("metrics")
	}
	if err := writer.WriteSessions([]metrics.SessionMetric{collector.Complete()}); err != nil {
		log.Error().Err(err).Msg("metrics")
	}
}

// child runs a single turn for process isolation and exits with the turn's status.
func child(args []string) int {
	fs := flag.NewFlagSet("program", flag.ExitOnError)
	side := fs.String("side", "", "Side to play: BLACK or WHITE")
	quota := fs.Int("quota", runner.DefaultQuota, "Queries allowed this turn")
	ref := fs.String("program", "", "Program reference")
	fs.Parse(args)

	id, err := game.ParsePlayerIdentity(*side)
	if err != nil {
		log.Error().Err(err).Msg("program")
		return 2
	}
	return runner.ServeChild(runner.ChildProgram(id, *ref), *quota, os.Stdin, os.Stdout)
}

func demo(args []string) int {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	o := configFlags(fs)
	games := fs.Int("games", experiments.NumGames, "Games per match up")
	turns := fs.Int("turns", experiments.NumTurns, "Turns per game")
	out := fs.String("out", "", "Directory for metrics CSV files; overrides record.metrics_dir")
	fs.Parse(args)

	cfg, err := o.load(fs)
	if err != nil {
		log.Error().Err(err).Msg("configuration")
		return 2
	}
	if *out != "" {
		cfg.Record.MetricsDir = *out
	}
	rec, err := recorder(cfg.Record)
	if err != nil {
		log.Error().Err(err).Msg("open records")
		return 1
	}
	defer rec.Close()

	matchUps := []experiments.MatchUp{{
		ID:    1,
		Black: cfg.Programs[string(game.Black)],
		White: cfg.Programs[string(game.White)],
	}}
	if _, err := experiments.Run(context.Background(), "demo", cfg, matchUps, *games, *turns, cfg.Record.MetricsDir, rec); err != nil {
		log.Error().Err(err).Msg("demo")
		return 1
	}
	return 0
}
