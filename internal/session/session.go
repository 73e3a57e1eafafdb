// Package session keeps the per-user working state of the two analysis
// views. Nothing here is persisted; sessions vanish on close or expiry.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/live"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/roster"
)

var ErrNotFound = errors.New("session not found")

// Kind tells team-analysis sessions from live-analysis sessions
type Kind string

const (
	KindTeam Kind = "team"
	KindLive Kind = "live"
)

type teamSession struct {
	mu        sync.Mutex
	selection *roster.Selection
	lastUsed  time.Time
}

type liveSession struct {
	mu       sync.Mutex
	match    *live.MatchState
	lastUsed time.Time
}

// Store holds open sessions. Each session has its own lock so a
// mutation runs to completion before the next one on that session starts.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	team     map[string]*teamSession
	live     map[string]*liveSession
	onExpire func(kind Kind, id string)
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
// A ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:  ttl,
		now:  time.Now,
		team: make(map[string]*teamSession),
		live: make(map[string]*liveSession),
	}
}

// OnExpire registers a callback run for each session removed by Sweep
func (s *Store) OnExpire(fn func(kind Kind, id string)) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// CreateTeam opens a team-analysis session with two empty rosters
func (s *Store) CreateTeam() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.team[id] = &teamSession{selection: roster.NewSelection(), lastUsed: s.now()}
	s.mu.Unlock()
	return id
}

// CreateLive opens a live-analysis session with an empty match
func (s *Store) CreateLive() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.live[id] = &liveSession{match: live.NewMatchState(), lastUsed: s.now()}
	s.mu.Unlock()
	return id
}

// WithTeam runs fn against the session's selection while holding its lock
func (s *Store) WithTeam(id string, fn func(sel *roster.Selection) error) error {
	s.mu.Lock()
	ts, ok := s.team[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.lastUsed = s.now()
	return fn(ts.selection)
}

// WithLive runs fn against the session's match state while holding its lock
func (s *Store) WithLive(id string, fn func(m *live.MatchState) error) error {
	s.mu.Lock()
	ls, ok := s.live[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lastUsed = s.now()
	return fn(ls.match)
}

// Close discards the session id if it is of the given kind. A session of
// the other kind is left open and reported as not found.
func (s *Store) Close(id string, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindTeam:
		if _, ok := s.team[id]; ok {
			delete(s.team, id)
			return nil
		}
	case KindLive:
		if _, ok := s.live[id]; ok {
			delete(s.live, id)
			return nil
		}
	}
	return ErrNotFound
}

// Len returns the number of open sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.team) + len(s.live)
}

// Sweep removes sessions idle for longer than the ttl and returns their ids
func (s *Store) Sweep(now time.Time) []string {
	if s.ttl <= 0 {
		return nil
	}

	type expired struct {
		kind Kind
		id   string
	}
	var gone []expired

	s.mu.Lock()
	for id, ts := range s.team {
		ts.mu.Lock()
		idle := now.Sub(ts.lastUsed)
		ts.mu.Unlock()
		if idle > s.ttl {
			delete(s.team, id)
			gone = append(gone, expired{KindTeam, id})
		}
	}
	for id, ls := range s.live {
		ls.mu.Lock()
		idle := now.Sub(ls.lastUsed)
		ls.mu.Unlock()
		if idle > s.ttl {
			delete(s.live, id)
			gone = append(gone, expired{KindLive, id})
		}
	}
	onExpire := s.onExpire
	s.mu.Unlock()

	ids := make([]string, 0, len(gone))
	for _, g := range gone {
		ids = append(ids, g.id)
		if onExpire != nil {
			onExpire(g.kind, g.id)
		}
	}
	return ids
}

// Run sweeps every interval until ctx is cancelled
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	log := logger.With("component", "session-sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Session sweeper stopped")
			return
		case now := <-ticker.C:
			if ids := s.Sweep(now); len(ids) > 0 {
				log.Info("Expired idle sessions", "count", len(ids))
			}
		}
	}
}
