// Package experiments plays local matches between programs and stores their turn metrics.
package experiments

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"wargame/config"
	"wargame/engine"
	"wargame/game"
	"wargame/metrics"
	"wargame/record"
	"wargame/session"
	"wargame/transport"
)

const (
	NumGames = 10 // Per match up
	NumTurns = 20 // Per game, alternating sides
)

// MatchUp pairs the program references playing each side.
type MatchUp struct {
	ID    int
	Black string
	White string
}

type Game struct {
	MatchUp int
	Session metrics.SessionMetric
	Turns   []metrics.TurnMetric
	Moves   []engine.Move
}

// Run plays games games of turns turns for every match up. Turns are written to rec as they
// resolve; when dir is not empty the metrics are stored there as CSV.
func Run(ctx context.Context, name string, cfg config.Config, matchUps []MatchUp, games, turns int, dir string, rec record.Recorder) ([]Game, error) {
	log.Info().Msgf("starting %s experiment...", name)

	results := []Game{}
	for mi, matchUp := range matchUps {
		log.Info().Msgf("starting matchup %d of %d between black=%s and white=%s...", mi+1, len(matchUps), matchUp.Black, matchUp.White)

		for i := 0; i < games; i++ {
			g, err := runGame(ctx, cfg, matchUp, turns, rec)
			if err != nil {
				return results, fmt.Errorf("matchup %d game %d: %w", mi+1, i+1, err)
			}
			results = append(results, g)
			log.Info().Msgf("completed matchup %d of %d game %d: %d fallbacks in %d turns", mi+1, len(matchUps), i+1, g.Session.Fallbacks, g.Session.Turns)
		}
	}

	log.Info().Msgf("completed %s experiment", name)
	if dir == "" {
		return results, nil
	}
	return results, store(dir, results)
}

func store(dir string, games []Game) error {
	writer, err := metrics.NewWriter(dir)
	if err != nil {
		return fmt.Errorf("failed to create experiment writer: %w", err)
	}

	sessions := make([]metrics.SessionMetric, 0, len(games))
	turns := []metrics.TurnRecord{}
	for _, g := range games {
		sessions = append(sessions, g.Session)
		for _, t := range g.Turns {
			turns = append(turns, metrics.TurnRecord{Session: g.Session.Session, TurnMetric: t})
		}
	}

	if err := writer.WriteSessions(sessions); err != nil {
		return fmt.Errorf("failed to write session metrics: %w", err)
	}
	if err := writer.WriteTurns(turns); err != nil {
		return fmt.Errorf("failed to write turn metrics: %w", err)
	}
	log.Info().Msgf("stored metrics in %s", writer.Dir())
	return nil
}

// runGame plays one game on the skirmish board with the host and engine joined by a pipe.
func runGame(ctx context.Context, cfg config.Config, matchUp MatchUp, turns int, rec record.Recorder) (Game, error) {
	cfg.Programs = map[string]string{
		string(game.Black): matchUp.Black,
		string(game.White): matchUp.White,
	}
	programs, err := cfg.Registry()
	if err != nil {
		return Game{}, err
	}
	r, err := cfg.Runner(programs)
	if err != nil {
		return Game{}, err
	}

	host, eng := transport.Pipe()
	defer host.Close()

	collector := metrics.NewCollector()
	s := session.New(host, r, session.WithCollector(collector), session.WithRecorder(rec))
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	moves, err := engine.NewLocal(engine.Skirmish()).Play(ctx, eng, Alternate(turns))
	if err != nil {
		_ = eng.Close()
		<-served
		return Game{}, err
	}
	if err := <-served; err != nil {
		return Game{}, err
	}

	return Game{
		MatchUp: matchUp.ID,
		Session: collector.Complete(),
		Turns:   collector.Turns(),
		Moves:   moves,
	}, nil
}

// Alternate is a turn order of n turns starting with BLACK.
func Alternate(n int) []game.PlayerIdentity {
	order := make([]game.PlayerIdentity, n)
	for i := range order {
		order[i] = game.Black
		if i%2 == 1 {
			order[i] = game.White
		}
	}
	return order
}
