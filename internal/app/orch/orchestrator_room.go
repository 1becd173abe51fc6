package orch

import (
	"github.com/dkeye/CodeSync/internal/app"
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join adds sid to roomID and sends JOINED, carrying the member list after
// the add, to every member including the joiner.
func (o *Orchestrator) Join(sid domain.ConnID, roomID domain.RoomID) error {
	if roomID == "" {
		return ErrEmptyRoom
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok || o.Registry.State(sid) != app.StateConnected {
		return ErrUnknownConnection
	}
	username := sess.User().Username
	o.Presence.Register(sid, username)

	unlock := o.locks.lock(roomID)
	defer unlock()

	o.Rooms.Add(roomID, sid)
	members := o.Rooms.Members(roomID)
	res := o.publish(members, core.JoinedEvent{
		Type:     core.EventJoined,
		Clients:  o.clients(members),
		Username: username,
		SocketID: sid,
	})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Int("members", len(members)).Int("sent_to", res.SendTo).Msg("joined")
	return nil
}

// Leave removes sid from roomID and tells the remaining members. It reports
// whether sid was a member.
func (o *Orchestrator) Leave(sid domain.ConnID, roomID domain.RoomID) bool {
	unlock := o.locks.lock(roomID)
	defer unlock()

	if !o.Rooms.Remove(roomID, sid) {
		return false
	}
	o.publish(o.Rooms.Members(roomID), core.DisconnectedEvent{
		Type:     core.EventDisconnected,
		SocketID: sid,
		Username: o.displayName(sid),
	})
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left")
	return true
}
