package core

import (
	"sync"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

type presenceMap struct {
	mu    sync.RWMutex
	names map[domain.ConnID]string
}

func NewPresence() Presence {
	return &presenceMap{names: make(map[domain.ConnID]string)}
}

func (p *presenceMap) Register(conn domain.ConnID, username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.names[conn]; ok {
		return false
	}
	p.names[conn] = username
	log.Info().Str("module", "core.presence").Str("sid", string(conn)).Str("username", username).Msg("online")
	return true
}

func (p *presenceMap) Name(conn domain.ConnID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.names[conn]
	return name, ok
}

func (p *presenceMap) Remove(conn domain.ConnID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.names[conn]; !ok {
		return false
	}
	delete(p.names, conn)
	log.Info().Str("module", "core.presence").Str("sid", string(conn)).Msg("offline")
	return true
}

func (p *presenceMap) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.names)
}
