package core

import (
	"encoding/json"

	"github.com/dkeye/CodeSync/internal/domain"
)

// Event names on the wire. They match the names the editor client emits.
const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventLeave        = "leave"
	EventLeft         = "left"
	EventDisconnected = "disconnected"
	EventCodeChange   = "code-change"
	EventSyncCode     = "sync-code"
	EventOutputChange = "output-change"
	EventCursorChange = "cursor-change"
	EventPing         = "ping"
	EventPong         = "pong"
	EventWhoAmI       = "whoami"
	EventError        = "error"
)

// ClientDTO is one entry of a room member list.
type ClientDTO struct {
	SocketID domain.ConnID `json:"socketId"`
	Username string        `json:"username"`
}

type JoinedEvent struct {
	Type     string        `json:"type"`
	Clients  []ClientDTO   `json:"clients"`
	Username string        `json:"username"`
	SocketID domain.ConnID `json:"socketId"`
}

type DisconnectedEvent struct {
	Type     string        `json:"type"`
	SocketID domain.ConnID `json:"socketId"`
	Username string        `json:"username"`
}

type CodeChangeEvent struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type OutputChangeEvent struct {
	Type   string `json:"type"`
	Output string `json:"output"`
}

type CursorChangeEvent struct {
	Type     string          `json:"type"`
	SocketID domain.ConnID   `json:"socketId"`
	Cursor   json.RawMessage `json:"cursor"`
	Username string          `json:"username"`
}

type LeftEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
