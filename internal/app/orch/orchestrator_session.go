package orch

import (
	"context"

	"github.com/dkeye/CodeSync/internal/app"
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Connect registers an authenticated connection. It does not join any room.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Bind(sess, cancel)
}

// Disconnect runs the Connected -> Disconnecting -> Gone transition for sid.
// Remaining members of every joined room get one DISCONNECTED each, then sid
// is removed from the membership index, the presence registry and the
// connection directory. Calling it again is a no-op.
func (o *Orchestrator) Disconnect(sid domain.ConnID) {
	if !o.Registry.BeginDisconnect(sid) {
		if o.Registry.State(sid) == app.StateGone {
			o.Rooms.Drop(sid)
			o.Presence.Remove(sid)
		}
		return
	}

	username := o.displayName(sid)
	rooms := o.Rooms.RoomsOf(sid)

	var wg conc.WaitGroup
	for _, roomID := range rooms {
		wg.Go(func() {
			unlock := o.locks.lock(roomID)
			defer unlock()
			if !o.Rooms.Remove(roomID, sid) {
				return
			}
			o.publish(o.Rooms.Members(roomID), core.DisconnectedEvent{
				Type:     core.EventDisconnected,
				SocketID: sid,
				Username: username,
			})
		})
	}
	wg.Wait()

	o.Rooms.Drop(sid)
	o.Presence.Remove(sid)
	o.Registry.Unbind(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("disconnected")
}
