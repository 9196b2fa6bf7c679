package executors

import (
	"sync"
	"time"
)

// QuoteCounter reports how many symbols have a cached quote.
type QuoteCounter interface {
	Len() int
}

// Snapshot is the engine state served on /status.
type Snapshot struct {
	StartedAt      time.Time    `json:"started_at"`
	MarketOpen     bool         `json:"market_open"`
	QuotesCached   int          `json:"quotes_cached"`
	TicksProcessed uint64       `json:"ticks_processed"`
	TicksDrained   uint64       `json:"ticks_drained"`
	Cycles         uint64       `json:"cycles"`
	Triggers       uint64       `json:"triggers"`
	Exits          uint64       `json:"exits"`
	ExitFailures   uint64       `json:"exit_failures"`
	LastCycle      *CycleResult `json:"last_cycle,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	LastErrorAt    *time.Time   `json:"last_error_at,omitempty"`
}

// Status is shared between the loop, which writes it, and the status server.
type Status struct {
	mu     sync.RWMutex
	snap   Snapshot
	quotes QuoteCounter
}

func NewStatus(quotes QuoteCounter) *Status {
	return &Status{
		snap:   Snapshot{StartedAt: time.Now()},
		quotes: quotes,
	}
}

func (s *Status) SetMarketOpen(open bool) {
	s.mu.Lock()
	s.snap.MarketOpen = open
	s.mu.Unlock()
}

func (s *Status) AddTicks(processed, drained int) {
	s.mu.Lock()
	s.snap.TicksProcessed += uint64(processed)
	s.snap.TicksDrained += uint64(drained)
	s.mu.Unlock()
}

func (s *Status) RecordCycle(r CycleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Cycles++
	s.snap.Triggers += uint64(r.Triggers)
	s.snap.Exits += uint64(r.Exits)
	s.snap.ExitFailures += uint64(r.ExitFailures)
	s.snap.LastCycle = &r
}

func (s *Status) RecordError(err error, at time.Time) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.snap.LastError = err.Error()
	s.snap.LastErrorAt = &at
	s.mu.Unlock()
}

// Snapshot returns a copy safe to hand out.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap.LastCycle != nil {
		c := *snap.LastCycle
		snap.LastCycle = &c
	}
	if snap.LastErrorAt != nil {
		t := *snap.LastErrorAt
		snap.LastErrorAt = &t
	}
	if s.quotes != nil {
		snap.QuotesCached = s.quotes.Len()
	}
	return snap
}
