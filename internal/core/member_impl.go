package core

import "github.com/dkeye/CodeSync/internal/domain"

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	id     domain.ConnID
	user   *domain.User
	signal SignalConnection
}

func NewMemberSession(id domain.ConnID, user *domain.User, signal SignalConnection) MemberSession {
	return &memberSession{id: id, user: user, signal: signal}
}

func (m *memberSession) ID() domain.ConnID        { return m.id }
func (m *memberSession) User() *domain.User       { return m.user }
func (m *memberSession) Signal() SignalConnection { return m.signal }
