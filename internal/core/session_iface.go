package core

import "github.com/dkeye/CodeSync/internal/domain"

// MemberSession binds an authenticated identity and its transport endpoint.
// This is what the router resolves connection ids to when fanning out.
type MemberSession interface {
	ID() domain.ConnID
	User() *domain.User
	Signal() SignalConnection
}
