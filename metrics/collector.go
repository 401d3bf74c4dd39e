package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"wargame/game"
)

type TurnMetric struct {
	Turn     int
	Side     game.PlayerIdentity
	Outcome  string
	Action   game.Action
	Calls    int
	QuotaHit bool
	Duration time.Duration
}

type SessionMetric struct {
	Session   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Turns     int
	Calls     int
	Outcomes  map[string]int // Outcome name -> count
	Fallbacks int            // Turns not resolved by the program itself
}

type Collector interface {
	Start(session string)
	Observe(m TurnMetric)
	Turns() []TurnMetric
	Complete() SessionMetric
}

type collector struct {
	session   string
	startTime time.Time
	calls     atomic.Int64
	fallbacks atomic.Int64

	mu       sync.Mutex
	turns    []TurnMetric
	outcomes map[string]int
}

func NewCollector() Collector {
	return &collector{outcomes: make(map[string]int)}
}

func (m *collector) Start(session string) {
	m.session = session
	m.startTime = time.Now()
}

func (m *collector) Observe(t TurnMetric) {
	m.calls.Add(int64(t.Calls))
	if t.Outcome != "COMPLETED" {
		m.fallbacks.Add(1)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	m.outcomes[t.Outcome]++
}

func (m *collector) Turns() []TurnMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TurnMetric(nil), m.turns...)
}

func (m *collector) Complete() SessionMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make(map[string]int, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	end := time.Now()
	return SessionMetric{
		Session:   m.session,
		StartTime: m.startTime,
		EndTime:   end,
		Duration:  end.Sub(m.startTime),
		Turns:     len(m.turns),
		Calls:     int(m.calls.Load()),
		Outcomes:  outcomes,
		Fallbacks: int(m.fallbacks.Load()),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(session string)    {}
func (m *dummyCollector) Observe(t TurnMetric)    {}
func (m *dummyCollector) Turns() []TurnMetric     { return nil }
func (m *dummyCollector) Complete() SessionMetric { return SessionMetric{} }
