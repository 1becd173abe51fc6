package orch

import (
	"encoding/json"

	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

// CodeChange relays code verbatim to every other member of roomID.
// Last write wins on each recipient; nothing is stored.
func (o *Orchestrator) CodeChange(sid domain.ConnID, roomID domain.RoomID, code string) core.PublishResult {
	return o.broadcastFrom(sid, roomID, core.CodeChangeEvent{
		Type: core.EventCodeChange,
		Code: code,
	})
}

// OutputChange relays execution output to every other member of roomID.
func (o *Orchestrator) OutputChange(sid domain.ConnID, roomID domain.RoomID, output string) core.PublishResult {
	return o.broadcastFrom(sid, roomID, core.OutputChangeEvent{
		Type:   core.EventOutputChange,
		Output: output,
	})
}

// CursorChange relays an opaque cursor position. The name attached is the
// sender's verified display name; the client-supplied one is only logged.
func (o *Orchestrator) CursorChange(sid domain.ConnID, roomID domain.RoomID, cursor json.RawMessage, displayName string) core.PublishResult {
	name := o.displayName(sid)
	if displayName != "" && displayName != name {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("claimed", displayName).Str("username", name).Msg("cursor name mismatch")
	}
	return o.broadcastFrom(sid, roomID, core.CursorChangeEvent{
		Type:     core.EventCursorChange,
		SocketID: sid,
		Cursor:   cursor,
		Username: name,
	})
}

// SyncCode delivers code to exactly target. It is dropped when target is not
// live or shares no room with sid.
func (o *Orchestrator) SyncCode(sid, target domain.ConnID, code string) bool {
	if _, ok := o.Registry.GetSession(target); !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("target", string(target)).Msg("sync target gone")
		return false
	}
	if !o.sharesRoom(sid, target) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("target", string(target)).Msg("sync target outside sender rooms")
		return false
	}
	res := o.publish([]domain.ConnID{target}, core.CodeChangeEvent{
		Type: core.EventCodeChange,
		Code: code,
	})
	return res.SendTo == 1
}

func (o *Orchestrator) broadcastFrom(sid domain.ConnID, roomID domain.RoomID, v any) core.PublishResult {
	if !o.Rooms.IsMember(roomID, sid) {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("broadcast from non-member")
		return core.PublishResult{}
	}
	return o.publish(o.peers(roomID, sid), v)
}

func (o *Orchestrator) sharesRoom(a, b domain.ConnID) bool {
	for _, room := range o.Rooms.RoomsOf(a) {
		if o.Rooms.IsMember(room, b) {
			return true
		}
	}
	return false
}
