package signal

import (
	"errors"

	"github.com/dkeye/CodeSync/internal/app/orch"
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

func (ctl *SignalWSController) handleJoin(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	var p roomPayload
	if !ctl.decode(sid, conn, data, &p) {
		return
	}
	if !ctl.joins.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.sendError(conn, "rate_limited")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("join")
	err := ctl.Orch.Join(sid, p.RoomID)
	switch {
	case err == nil:
	case errors.Is(err, orch.ErrEmptyRoom):
		ctl.sendError(conn, "empty_room")
	default:
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
	}
}

// handleLeave removes the sender from one room; the socket stays open.
func (ctl *SignalWSController) handleLeave(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	var p roomPayload
	if !ctl.decode(sid, conn, data, &p) {
		return
	}
	if p.RoomID == "" {
		ctl.sendError(conn, "empty_room")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("leave")
	ctl.Orch.Leave(sid, p.RoomID)
	ctl.sendJSON(conn, core.LeftEvent{Type: core.EventLeft, RoomID: p.RoomID})
}
