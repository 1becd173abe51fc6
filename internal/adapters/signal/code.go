package signal

import (
	"encoding/json"

	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

// code is a pointer so that an explicit null can be told apart from "".
type codePayload struct {
	RoomID domain.RoomID `json:"roomId"`
	Code   *string       `json:"code"`
}

type syncPayload struct {
	SocketID domain.ConnID `json:"socketId"`
	Code     *string       `json:"code"`
}

type outputPayload struct {
	RoomID domain.RoomID `json:"roomId"`
	Output string        `json:"output"`
}

type cursorPayload struct {
	RoomID   domain.RoomID   `json:"roomId"`
	Cursor   json.RawMessage `json:"cursor"`
	Username string          `json:"username"`
}

func (ctl *SignalWSController) handleCodeChange(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	var p codePayload
	if !ctl.decode(sid, conn, data, &p) {
		return
	}
	if p.Code == nil {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("null code dropped")
		return
	}
	ctl.Orch.CodeChange(sid, p.RoomID, *p.Code)
}

func (ctl *SignalWSController) handleSyncCode(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	var p syncPayload
	if !ctl.decode(sid, conn, data, &p) {
		return
	}
	if p.Code == nil {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("target", string(p.SocketID)).Msg("null sync dropped")
		return
	}
	ctl.Orch.SyncCode(sid, p.SocketID, *p.Code)
}

func (ctl *SignalWSController) handleOutputChange(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	var p outputPayload
	if !ctl.decode(sid, conn, data, &p) {
		return
	}
	ctl.Orch.OutputChange(sid, p.RoomID, p.Output)
}

func (ctl *SignalWSController) handleCursorChange(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	var p cursorPayload
	if !ctl.decode(sid, conn, data, &p) {
		return
	}
	if len(p.Cursor) == 0 {
		p.Cursor = json.RawMessage("null")
	}
	ctl.Orch.CursorChange(sid, p.RoomID, p.Cursor, p.Username)
}
