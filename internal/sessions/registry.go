// Package sessions tracks the driving sessions served by one process.
package sessions

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/race/pixelcar/internal/game"
)

// ErrRegistryFull is returned by Create when the session limit is reached
var ErrRegistryFull = errors.New("session registry is full")

// Registry creates, finds and retires sessions
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session

	maxSessions int
	logger      zerolog.Logger
}

// NewRegistry creates a registry holding at most maxSessions live sessions
func NewRegistry(maxSessions int, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions:    make(map[string]*game.Session),
		maxSessions: maxSessions,
		logger:      logger,
	}
}

// Create registers a new session for conn and starts it. Sessions log
// through the registry's logger.
func (r *Registry) Create(conn game.Connection, opts game.SessionOptions) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return nil, ErrRegistryFull
	}

	id := uuid.NewString()
	opts.Logger = r.logger
	s := game.NewSession(id, conn, opts)
	r.sessions[id] = s
	s.Start()

	return s, nil
}

// Get returns a session by ID, nil if unknown
func (r *Registry) Get(id string) *game.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sessions[id]
}

// Remove stops and forgets a session, closing its connection. Unknown IDs
// are ignored.
func (r *Registry) Remove(id string) {
	if s := r.take(id); s != nil {
		s.Stop()
	}
}

// Detach stops and forgets a session but keeps its connection open
func (r *Registry) Detach(id string) {
	if s := r.take(id); s != nil {
		s.Detach()
	}
}

func (r *Registry) take(id string) *game.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	return s
}

// CleanupStopped forgets sessions that were stopped outside the registry
// and returns how many were removed
func (r *Registry) CleanupStopped() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.IsStopped() {
			delete(r.sessions, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StopAll stops every session, used on shutdown
func (r *Registry) StopAll() {
	r.mu.Lock()
	all := make([]*game.Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Stop()
	}
}

// Stats returns registry statistics, sessions ordered by creation time
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	all := make([]*game.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	stats := RegistryStats{
		TotalSessions: len(all),
		MaxSessions:   r.maxSessions,
		Sessions:      make([]game.SessionStats, 0, len(all)),
	}
	for _, s := range all {
		st := s.Stats()
		if st.Mobile {
			stats.MobileSessions++
		}
		stats.Sessions = append(stats.Sessions, st)
	}

	return stats
}

// RegistryStats contains registry statistics
type RegistryStats struct {
	TotalSessions  int                 `json:"sessions"`
	MobileSessions int                 `json:"mobile"`
	MaxSessions    int                 `json:"maxSessions"`
	Sessions       []game.SessionStats `json:"details"`
}
