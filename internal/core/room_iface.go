package core

import (
	"github.com/dkeye/CodeSync/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnID
	Missing []domain.ConnID
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}

// Membership is the room membership index. A room is nothing more than its
// member set: it appears on the first Add and disappears with its last member.
type Membership interface {
	// Add reports whether conn was not already a member.
	Add(room domain.RoomID, conn domain.ConnID) bool
	// Remove reports whether conn was a member. Removing a non-member is a no-op.
	Remove(room domain.RoomID, conn domain.ConnID) bool
	// Members returns a copy of the member set in join order; empty for unknown rooms.
	Members(room domain.RoomID) []domain.ConnID
	RoomsOf(conn domain.ConnID) []domain.RoomID
	IsMember(room domain.RoomID, conn domain.ConnID) bool
	// Drop removes conn from every room and returns the rooms it left.
	Drop(conn domain.ConnID) []domain.RoomID
	List() []RoomInfo
}

// Presence maps live connection ids to display names, independent of rooms.
type Presence interface {
	// Register reports whether a new entry was created. An existing entry is
	// never overwritten.
	Register(conn domain.ConnID, username string) bool
	Name(conn domain.ConnID) (string, bool)
	Remove(conn domain.ConnID) bool
	Count() int
}
