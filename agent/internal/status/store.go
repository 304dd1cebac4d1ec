// Package status keeps the agent's latest observations in memory for the
// local status API: the last connection report, the open incidents and the
// most recent check result per service.
//
// Check results expire after a TTL so services removed from the registry
// drop out of the view. Run evicts them in the background.
package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/pkg/types"
)

// Connection is the last scored connection sample.
type Connection struct {
	Sample    *types.ConnectionSample `json:"sample"` // nil when the last tick was absent
	Score     int                     `json:"stability_score"`
	State     string                  `json:"state"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// ServiceEntry is the latest check result for one service.
type ServiceEntry struct {
	Result    types.CheckResult `json:"result"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Snapshot is a point-in-time copy of the whole store.
type Snapshot struct {
	MonitorID  string           `json:"monitor_id"`
	Connection *Connection      `json:"connection,omitempty"`
	Incidents  []types.Incident `json:"incidents"`
	Services   []ServiceEntry   `json:"services"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Store is a thread-safe in-memory view of the agent state.
type Store struct {
	mu        sync.RWMutex
	monitorID string
	conn      *Connection
	incidents []types.Incident
	services  map[string]*ServiceEntry
	ttl       time.Duration
	log       zerolog.Logger
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store. Service results older than ttl are hidden and
// eventually evicted.
func New(monitorID string, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		monitorID: monitorID,
		services:  make(map[string]*ServiceEntry),
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// PutConnection records the latest scored sample. sample may be nil.
func (s *Store) PutConnection(sample *types.ConnectionSample, score int, state string) {
	var c *types.ConnectionSample
	if sample != nil {
		cp := *sample
		c = &cp
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = &Connection{Sample: c, Score: score, State: state, UpdatedAt: s.now()}
}

// SetIncidents replaces the open incident list.
func (s *Store) SetIncidents(incs []types.Incident) {
	cp := make([]types.Incident, len(incs))
	for i, inc := range incs {
		cp[i] = inc.Clone()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = cp
}

// PutCheckResult stores the latest result for serviceID.
func (s *Store) PutCheckResult(serviceID string, res types.CheckResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[serviceID] = &ServiceEntry{Result: res, UpdatedAt: s.now()}
}

// Connection returns the last connection report, if any.
func (s *Store) Connection() (Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return Connection{}, false
	}
	return *s.conn, true
}

// Incidents returns a copy of the open incidents.
func (s *Store) Incidents() []types.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Incident, len(s.incidents))
	for i, inc := range s.incidents {
		out[i] = inc.Clone()
	}
	return out
}

// Services returns the non-stale service results ordered by service id.
func (s *Store) Services() []ServiceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]ServiceEntry, 0, len(s.services))
	for _, e := range s.services {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Result.ServiceID < out[j].Result.ServiceID })
	return out
}

// Snapshot returns a copy of everything in the store.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		MonitorID: s.monitorID,
		Incidents: s.Incidents(),
		Services:  s.Services(),
		Timestamp: s.now(),
	}
	if c, ok := s.Connection(); ok {
		snap.Connection = &c
	}
	return snap
}

// Evict removes service results whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.services {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.services, id)
			removed++
		}
	}
	return removed
}

// Run evicts stale service results every half TTL (minimum 1s) until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				s.log.Debug().Int("count", n).Msg("status: evicted stale service results")
			}
		}
	}
}
