package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
)

// RunRecord is one row of an in-memory run log, exposed for tests.
type RunRecord struct {
	RunID       string
	Bot         string
	Trigger     string
	StartedAt   time.Time
	CompletedAt time.Time
	Status      RunStatus
	Output      string
	InTokens    int
	OutTokens   int
	Cost        float64
}

// LogRecord is one row of an in-memory bot log.
type LogRecord struct {
	RunID     string
	Level     string
	EventType string
	Message   string
	Data      map[string]any
}

// MemStore is an in-memory Store, used by tests and by `serve` when no
// --sql-dsn is given.
type MemStore struct {
	mu      sync.Mutex
	runs    map[string]*RunRecord
	logs    []LogRecord
	bots    map[string]config.BotConfig
	states  map[string]string
	lastRun map[string]time.Time
}

// NewMemStore builds an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:    make(map[string]*RunRecord),
		bots:    make(map[string]config.BotConfig),
		states:  make(map[string]string),
		lastRun: make(map[string]time.Time),
	}
}

func (s *MemStore) CreateBotRun(ctx context.Context, runID, bot, trigger string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = &RunRecord{RunID: runID, Bot: bot, Trigger: trigger, StartedAt: startedAt}
	return nil
}

func (s *MemStore) CompleteBotRun(ctx context.Context, runID string, status RunStatus, output string, inTokens, outTokens int, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		r = &RunRecord{RunID: runID}
		s.runs[runID] = r
	}
	r.CompletedAt = time.Now().UTC()
	r.Status = status
	r.Output = output
	r.InTokens = inTokens
	r.OutTokens = outTokens
	r.Cost = cost
	return nil
}

func (s *MemStore) CreateBotLog(ctx context.Context, runID, level, eventType, message string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, LogRecord{RunID: runID, Level: level, EventType: eventType, Message: message, Data: data})
	return nil
}

func (s *MemStore) UpsertBotRecord(ctx context.Context, name, displayName string, cfg config.BotConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[name] = cfg
	return nil
}

func (s *MemStore) UpdateBotState(ctx context.Context, name string, status string, lastRunAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = status
	if lastRunAt != nil {
		s.lastRun[name] = *lastRunAt
	}
	return nil
}

// Runs returns a snapshot of every recorded run, for test assertions.
func (s *MemStore) Runs() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out
}

// Logs returns a snapshot of every recorded log line, for test assertions.
func (s *MemStore) Logs() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogRecord, len(s.logs))
	copy(out, s.logs)
	return out
}
