package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sessions keeps one orchestrator per page context. It is safe for
// concurrent use.
type Sessions struct {
	mu      sync.Mutex
	store   map[string]*Orchestrator
	cfg     Config
	deps    Deps
	ttl     time.Duration
	maxSize int
}

// NewSessions creates an empty session table. Orchestrators idle for longer
// than ttl are evicted by Sweep; maxSize bounds the table.
func NewSessions(cfg Config, deps Deps, ttl time.Duration, maxSize int) *Sessions {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Sessions{
		store:   make(map[string]*Orchestrator),
		cfg:     cfg,
		deps:    deps,
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the orchestrator for contextID, creating it on first use.
// At capacity the least recently used evictable orchestrator makes room;
// when none is evictable the table grows past its bound until a sweep.
// An orchestrator is evictable once it is idle and has not been used for a
// full cooldown.
func (s *Sessions) Get(contextID string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.store[contextID]; ok {
		o.touch()
		return o
	}
	if len(s.store) >= s.maxSize {
		s.evictOldestLocked(s.deps.clock().Now())
	}
	o := New(contextID, s.cfg, s.deps)
	s.store[contextID] = o
	s.deps.Metrics.SetSessions(len(s.store))
	return o
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store)
}

// Sweep evicts evictable orchestrators unused since before now-ttl and
// returns how many it removed.
func (s *Sessions) Sweep() int {
	now := s.deps.clock().Now()
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, o := range s.store {
		if last, ok := o.evictable(now); ok && last.Before(cutoff) {
			delete(s.store, id)
			removed++
		}
	}
	s.deps.Metrics.SetSessions(len(s.store))
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

func (s *Sessions) evictOldestLocked(now time.Time) {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, o := range s.store {
		last, ok := o.evictable(now)
		if !ok {
			continue
		}
		if oldestID == "" || last.Before(oldest) {
			oldestID, oldest = id, last
		}
	}
	if oldestID != "" {
		delete(s.store, oldestID)
	}
}
