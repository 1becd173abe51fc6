package orch

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"slices"
	"sync"

	"github.com/dkeye/CodeSync/internal/app"
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyRoom         = errors.New("empty room id")
	ErrUnknownConnection = errors.New("unknown connection")
)

// Orchestrator routes room events between connections. Every inbound event
// becomes zero or more frames addressed to connection ids taken from a
// membership snapshot; delivery is fire-and-forget.
//
// An Orchestrator must not be copied after first use.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.Membership
	Presence core.Presence
	Policy   app.Policy

	locks roomLocks
}

const lockStripes = 64

// roomLocks serializes membership changes of one room together with the
// enqueueing of the frames they produce. Unrelated rooms rarely share a stripe.
type roomLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *roomLocks) lock(room domain.RoomID) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (o *Orchestrator) publish(targets []domain.ConnID, v any) core.PublishResult {
	res := core.PublishResult{}
	if len(targets) == 0 {
		return res
	}
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal event")
		return res
	}
	for _, sid := range targets {
		sess, ok := o.Registry.GetSession(sid)
		if !ok {
			res.Missing = append(res.Missing, sid)
			continue
		}
		if err := sess.Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, sid)
			o.onBackPressure(sess, err)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "orch").Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Int("missing", len(res.Missing)).Msg("publish result")
	return res
}

func (o *Orchestrator) onBackPressure(sess core.MemberSession, err error) {
	log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID())).Msg("frame dropped")
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sess) {
	case app.KickMember:
		o.Registry.Cancel(sess.ID())
	case app.MarkSlow, app.DropFrame, app.NoAction:
	}
}

// peers returns the members of room other than sid.
func (o *Orchestrator) peers(room domain.RoomID, sid domain.ConnID) []domain.ConnID {
	return slices.DeleteFunc(o.Rooms.Members(room), func(id domain.ConnID) bool { return id == sid })
}

func (o *Orchestrator) displayName(sid domain.ConnID) string {
	if name, ok := o.Presence.Name(sid); ok {
		return name
	}
	if sess, ok := o.Registry.GetSession(sid); ok {
		return sess.User().Username
	}
	return ""
}

func (o *Orchestrator) clients(members []domain.ConnID) []core.ClientDTO {
	out := make([]core.ClientDTO, 0, len(members))
	for _, sid := range members {
		out = append(out, core.ClientDTO{SocketID: sid, Username: o.displayName(sid)})
	}
	return out
}
