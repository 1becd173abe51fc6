package core

import (
	"slices"
	"sort"
	"sync"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

type roster struct {
	order []domain.ConnID
	set   map[domain.ConnID]struct{}
}

// memberIndex is a threadsafe in-memory membership index.
// It never touches transport resources.
type memberIndex struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*roster
	byConn map[domain.ConnID]map[domain.RoomID]struct{}
}

func NewMembership() Membership {
	return &memberIndex{
		rooms:  make(map[domain.RoomID]*roster),
		byConn: make(map[domain.ConnID]map[domain.RoomID]struct{}),
	}
}

func (m *memberIndex) Add(room domain.RoomID, conn domain.ConnID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[room]
	if !ok {
		r = &roster{set: make(map[domain.ConnID]struct{})}
		m.rooms[room] = r
	}
	if _, ok := r.set[conn]; ok {
		return false
	}
	r.set[conn] = struct{}{}
	r.order = append(r.order, conn)

	joined, ok := m.byConn[conn]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		m.byConn[conn] = joined
	}
	joined[room] = struct{}{}
	log.Debug().Str("module", "core.membership").Str("sid", string(conn)).Str("room", string(room)).Int("members", len(r.order)).Msg("member added")
	return true
}

func (m *memberIndex) Remove(room domain.RoomID, conn domain.ConnID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(room, conn)
}

func (m *memberIndex) removeLocked(room domain.RoomID, conn domain.ConnID) bool {
	r, ok := m.rooms[room]
	if !ok {
		return false
	}
	if _, ok := r.set[conn]; !ok {
		return false
	}
	delete(r.set, conn)
	if i := slices.Index(r.order, conn); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	if len(r.order) == 0 {
		delete(m.rooms, room)
		log.Debug().Str("module", "core.membership").Str("room", string(room)).Msg("room emptied")
	}
	if joined, ok := m.byConn[conn]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(m.byConn, conn)
		}
	}
	log.Debug().Str("module", "core.membership").Str("sid", string(conn)).Str("room", string(room)).Msg("member removed")
	return true
}

func (m *memberIndex) Members(room domain.RoomID) []domain.ConnID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[room]
	if !ok {
		return []domain.ConnID{}
	}
	return slices.Clone(r.order)
}

func (m *memberIndex) RoomsOf(conn domain.ConnID) []domain.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedRooms(m.byConn[conn])
}

func (m *memberIndex) IsMember(room domain.RoomID, conn domain.ConnID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byConn[conn][room]
	return ok
}

func (m *memberIndex) Drop(conn domain.ConnID) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := sortedRooms(m.byConn[conn])
	for _, room := range rooms {
		m.removeLocked(room, conn)
	}
	return rooms
}

func (m *memberIndex) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: len(r.order)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedRooms(set map[domain.RoomID]struct{}) []domain.RoomID {
	out := make([]domain.RoomID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
