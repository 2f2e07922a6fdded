package session

import (
	"hash/fnv"
	"sync"

	"github.com/discord-voice-interp/internal/logging"
	"github.com/discord-voice-interp/internal/metrics"
)

// shardCount splits the scope->session map so start/stop for unrelated
// guilds never contend on one lock. Registration is rare compared to frame
// ingestion, so a small fixed shard count is plenty.
const shardCount = 16

type registryShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Registry holds at most one Session per scope. Frame ingestion goes
// through the Session's own locks, so registry operations only contend
// with other start/stop/lookup calls on the same shard.
type Registry struct {
	shards [shardCount]registryShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shard(scope string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(scope))
	return &r.shards[h.Sum32()%shardCount]
}

// Start creates and registers a session for the scope. It fails with
// ErrAlreadyActive when a session exists in any mode, leaving the existing
// session untouched.
func (r *Registry) Start(scope, origin string, mode Mode) (*Session, error) {
	sh := r.shard(scope)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.sessions[scope]; exists {
		return nil, ErrAlreadyActive
	}
	s := newSession(scope, origin, mode)
	sh.sessions[scope] = s
	metrics.ActiveSessions.Inc()
	metrics.SessionsTotal.WithLabelValues(mode.String()).Inc()
	logging.Infow("registry: session started", "scope", scope, "mode", mode.String(), "origin", origin)
	return s, nil
}

// Stop removes and returns the scope's session. The second return value is
// false when no session exists; that is an explicit outcome, not an error.
// The caller is responsible for finalizing the returned session exactly
// once.
func (r *Registry) Stop(scope string) (*Session, bool) {
	sh := r.shard(scope)
	sh.mu.Lock()
	s, ok := sh.sessions[scope]
	if ok {
		delete(sh.sessions, scope)
	}
	sh.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
		logging.Infow("registry: session stopped", "scope", scope, "mode", s.Mode.String())
	}
	return s, ok
}

// Get returns the active session for a scope, if any.
func (r *Registry) Get(scope string) (*Session, bool) {
	sh := r.shard(scope)
	sh.mu.Lock()
	s, ok := sh.sessions[scope]
	sh.mu.Unlock()
	return s, ok
}

// IsActive reports whether the scope has a session in any mode.
func (r *Registry) IsActive(scope string) bool {
	_, ok := r.Get(scope)
	return ok
}

// ActiveMode returns the mode of the scope's session, if one exists.
func (r *Registry) ActiveMode(scope string) (Mode, bool) {
	s, ok := r.Get(scope)
	if !ok {
		return 0, false
	}
	return s.Mode, true
}

// Each invokes fn for every active session across all shards. The shard
// lock is released before fn runs, so fn may call back into the Registry.
func (r *Registry) Each(fn func(*Session)) {
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		sessions := make([]*Session, 0, len(sh.sessions))
		for _, s := range sh.sessions {
			sessions = append(sessions, s)
		}
		sh.mu.Unlock()
		for _, s := range sessions {
			fn(s)
		}
	}
}
