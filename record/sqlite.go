package record

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"wargame/game"
)

// Index is a queryable SQLite copy of the turn trail. Writes are queued to a single writer
// goroutine and dropped if it falls behind; the journal remains the source of truth.
type Index struct {
	db *sql.DB

	ch   chan indexReq
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type indexReq struct {
	turn  TurnRecord
	flush chan struct{}
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Index{
		db: db,
		ch: make(chan indexReq, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			session TEXT NOT NULL,
			turn INTEGER NOT NULL,
			side TEXT NOT NULL,
			outcome TEXT NOT NULL,
			action TEXT NOT NULL,
			calls INTEGER NOT NULL,
			quota_hit INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			desynced INTEGER NOT NULL,
			error TEXT,
			at TEXT NOT NULL,
			PRIMARY KEY (session, turn)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_side_outcome ON turns(side, outcome);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) RecordTurn(r TurnRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- indexReq{turn: r}:
	default:
		log.Warn().Str("session", r.Session).Int("turn", r.Turn).Msg("turn index behind, record dropped")
	}
	return nil
}

// Flush blocks until every record queued before the call is written.
func (s *Index) Flush(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- indexReq{flush: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Index) loop() {
	insert, err := s.db.Prepare(`INSERT OR REPLACE INTO turns(session,turn,side,outcome,action,calls,quota_hit,duration_ms,desynced,error,at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		log.Error().Err(err).Msg("prepare turn insert")
	} else {
		defer insert.Close()
	}

	for req := range s.ch {
		if req.flush != nil {
			close(req.flush)
			continue
		}
		if insert == nil {
			continue
		}
		t := req.turn
		_, err := insert.Exec(t.Session, t.Turn, string(t.Side), t.Outcome, t.Action.String(), t.Calls,
			boolInt(t.QuotaHit), t.DurationMS, boolInt(t.Desynced), t.Error, t.At.UTC().Format(time.RFC3339Nano))
		if err != nil {
			log.Error().Err(err).Str("session", t.Session).Int("turn", t.Turn).Msg("index turn")
		}
	}
}

// Turns returns the recorded turns of side, oldest first.
func (s *Index) Turns(ctx context.Context, side game.PlayerIdentity) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session,turn,side,outcome,action,calls,quota_hit,duration_ms,desynced,COALESCE(error,''),at
		FROM turns WHERE side = ? ORDER BY at, turn`, string(side))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var (
			r                  TurnRecord
			sideName, action   string
			quotaHit, desynced int
			at                 string
		)
		if err := rows.Scan(&r.Session, &r.Turn, &sideName, &r.Outcome, &action, &r.Calls, &quotaHit, &r.DurationMS, &desynced, &r.Error, &at); err != nil {
			return nil, err
		}
		if r.Side, err = game.ParsePlayerIdentity(sideName); err != nil {
			return nil, err
		}
		if r.Action, err = game.ParseAction(action); err != nil {
			return nil, err
		}
		if r.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, err
		}
		r.QuotaHit, r.Desynced = quotaHit != 0, desynced != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutcomeCounts tallies recorded outcomes per side.
func (s *Index) OutcomeCounts(ctx context.Context) (map[game.PlayerIdentity]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT side, outcome, COUNT(*) FROM turns GROUP BY side, outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[game.PlayerIdentity]map[string]int)
	for rows.Next() {
		var side, outcome string
		var n int
		if err := rows.Scan(&side, &outcome, &n); err != nil {
			return nil, err
		}
		id := game.PlayerIdentity(side)
		if out[id] == nil {
			out[id] = make(map[string]int)
		}
		out[id][outcome] = n
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
