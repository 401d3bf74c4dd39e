package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type TurnRecord struct {
	Session string // SessionMetric.Session
	TurnMetric
}

type Writer struct {
	baseDir string
}

// NewWriter writes into a subfolder of dir named by the current timestamp.
func NewWriter(dir string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(dir, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteTurns(records []TurnRecord) error {
	path := filepath.Join(w.baseDir, "turns.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create turns file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{"session", "turn", "side", "outcome", "action", "calls", "quota_hit", "duration"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write turns header: %w", err)
	}

	for _, turn := range records {
		row := []string{
			turn.Session,
			strconv.Itoa(turn.Turn),
			string(turn.Side),
			turn.Outcome,
			turn.Action.String(),
			strconv.Itoa(turn.Calls),
			strconv.FormatBool(turn.QuotaHit),
			turn.Duration.String(),
		}
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write turn row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *Writer) WriteSessions(sessions []SessionMetric) error {
	path := filepath.Join(w.baseDir, "session.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	// One row per outcome so the file stays rectangular
	header := []string{"session", "start_time", "end_time", "duration", "turns", "calls", "fallbacks", "outcome", "count"}
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write session header: %w", err)
	}

	for _, m := range sessions {
		if err := writeSession(writer, m); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSession(writer *csv.Writer, m SessionMetric) error {
	outcomes := make([]string, 0, len(m.Outcomes))
	for outcome := range m.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		row := []string{
			m.Session,
			m.StartTime.Format(time.RFC3339),
			m.EndTime.Format(time.RFC3339),
			m.Duration.String(),
			strconv.Itoa(m.Turns),
			strconv.Itoa(m.Calls),
			strconv.Itoa(m.Fallbacks),
			outcome,
			strconv.Itoa(m.Outcomes[outcome]),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write session row: %w", err)
		}
	}

	return nil
}
