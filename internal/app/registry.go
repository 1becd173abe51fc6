package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

// SessionState is the lifecycle of one connection.
type SessionState int32

const (
	StateConnected SessionState = iota
	StateDisconnecting
	StateGone
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateGone:
		return "gone"
	}
	return "unknown"
}

type sessionEntry struct {
	Session core.MemberSession
	Cancel  context.CancelFunc
	state   atomic.Int32
}

// Registry is the directory of live connections. It owns no room state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnID]*sessionEntry),
	}
}

func (r *Registry) Bind(sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID()] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID())).Str("user", string(sess.User().ID)).Msg("bound session")
}

// GetSession returns the session while it is still connected or disconnecting.
func (r *Registry) GetSession(sid domain.ConnID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) State(sid domain.ConnID) SessionState {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return StateGone
	}
	return SessionState(e.state.Load())
}

// BeginDisconnect moves sid from Connected to Disconnecting. Only the first
// caller gets true.
func (r *Registry) BeginDisconnect(sid domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return e.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting))
}

// Unbind drops sid from the directory; the session is Gone afterwards.
func (r *Registry) Unbind(sid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.state.Store(int32(StateGone))
		delete(r.sessions, sid)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// Cancel asks the transport to tear the connection down.
func (r *Registry) Cancel(sid domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
