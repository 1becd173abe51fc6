package signal

import (
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: core.EventPong,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(sid domain.ConnID, conn *WsSignalConn) {
	resp := struct {
		Type     string          `json:"type"`
		Username string          `json:"username"`
		SocketID domain.ConnID   `json:"socketId"`
		Rooms    []domain.RoomID `json:"rooms"`
	}{
		Type:     core.EventWhoAmI,
		SocketID: sid,
		Rooms:    ctl.Orch.Rooms.RoomsOf(sid),
	}
	if sess, ok := ctl.Orch.Registry.GetSession(sid); ok {
		resp.Username = sess.User().Username
	}
	if resp.Rooms == nil {
		resp.Rooms = []domain.RoomID{}
	}
	ctl.sendJSON(conn, resp)
}
