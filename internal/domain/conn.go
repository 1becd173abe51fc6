package domain

import "github.com/google/uuid"

// ConnID identifies one live WebSocket connection. It is unique for the
// lifetime of the process and never reused.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}
