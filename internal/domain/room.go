package domain

// RoomID is chosen by clients and never interpreted by the server.
type RoomID string
