package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/CodeSync/internal/app"
	"github.com/dkeye/CodeSync/internal/core"
	"github.com/dkeye/CodeSync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFull = errors.New("buffer full")

type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	err    error
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {}

type envelope struct {
	Type     string           `json:"type"`
	Clients  []core.ClientDTO `json:"clients"`
	Username string           `json:"username"`
	SocketID domain.ConnID    `json:"socketId"`
	Code     string           `json:"code"`
	Output   string           `json:"output"`
	Cursor   json.RawMessage  `json:"cursor"`
}

func (f *fakeSignal) events(t *testing.T) []envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]envelope, 0, len(f.frames))
	for _, fr := range f.frames {
		var e envelope
		require.NoError(t, json.Unmarshal(fr, &e))
		out = append(out, e)
	}
	return out
}

func (f *fakeSignal) ofType(t *testing.T, typ string) []envelope {
	t.Helper()
	var out []envelope
	for _, e := range f.events(t) {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeSignal) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type harness struct {
	o    *Orchestrator
	sigs map[domain.ConnID]*fakeSignal
}

func newHarness(policy app.Policy) *harness {
	return &harness{
		o: &Orchestrator{
			Registry: app.NewRegistry(),
			Rooms:    core.NewMembership(),
			Presence: core.NewPresence(),
			Policy:   policy,
		},
		sigs: make(map[domain.ConnID]*fakeSignal),
	}
}

func (h *harness) connect(id domain.ConnID, name string) *fakeSignal {
	sig := &fakeSignal{}
	user := &domain.User{ID: domain.UserID("user-" + id), Username: name}
	h.o.Connect(core.NewMemberSession(id, user, sig), func() {})
	h.sigs[id] = sig
	return sig
}

func (h *harness) resetAll() {
	for _, s := range h.sigs {
		s.reset()
	}
}

func TestScenario_LateJoinerSyncAndDisconnect(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	a := h.connect("A", "Ada")
	b := h.connect("B", "Bob")

	require.NoError(t, h.o.Join("A", "r1"))
	a.reset()
	require.NoError(t, h.o.Join("B", "r1"))

	want := envelope{
		Type:     core.EventJoined,
		Clients:  []core.ClientDTO{{SocketID: "A", Username: "Ada"}, {SocketID: "B", Username: "Bob"}},
		Username: "Bob",
		SocketID: "B",
	}
	assert.Equal(t, []envelope{want}, a.events(t))
	assert.Equal(t, []envelope{want}, b.events(t))

	h.resetAll()
	assert.True(t, h.o.SyncCode("A", "B", "print(1)"))
	assert.Equal(t, []envelope{{Type: core.EventCodeChange, Code: "print(1)"}}, b.events(t))
	assert.Empty(t, a.events(t))

	h.resetAll()
	res := h.o.CodeChange("B", "r1", "print(2)")
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []envelope{{Type: core.EventCodeChange, Code: "print(2)"}}, a.events(t))
	assert.Empty(t, b.events(t))

	h.resetAll()
	h.o.Disconnect("A")
	assert.Equal(t, []envelope{{Type: core.EventDisconnected, SocketID: "A", Username: "Ada"}}, b.events(t))
	assert.Equal(t, []domain.ConnID{"B"}, h.o.Rooms.Members("r1"))
}

func TestJoin_FinalMemberListMatchesJoined(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	ids := []domain.ConnID{"c1", "c2", "c3", "c4"}
	for _, id := range ids {
		h.connect(id, string(id))
	}
	for _, id := range ids {
		require.NoError(t, h.o.Join(id, "room"))
	}
	require.NoError(t, h.o.Join("c2", "room"), "re-join")
	h.o.Disconnect("c3")
	require.NoError(t, h.o.Join("c1", "room"))

	joined := h.sigs["c1"].ofType(t, core.EventJoined)
	require.NotEmpty(t, joined)
	last := joined[len(joined)-1]

	got := make([]domain.ConnID, 0, len(last.Clients))
	for _, c := range last.Clients {
		got = append(got, c.SocketID)
	}
	assert.Equal(t, []domain.ConnID{"c1", "c2", "c4"}, got)
	assert.Equal(t, h.o.Rooms.Members("room"), got)
}

func TestJoin_Errors(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")

	assert.ErrorIs(t, h.o.Join("A", ""), ErrEmptyRoom)
	assert.ErrorIs(t, h.o.Join("ghost", "r1"), ErrUnknownConnection)
	assert.Empty(t, h.o.Rooms.Members("r1"))
	_, ok := h.o.Presence.Name("ghost")
	assert.False(t, ok)
}

func TestJoin_PresenceOnlyAfterJoin(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")

	_, ok := h.o.Presence.Name("A")
	assert.False(t, ok)

	require.NoError(t, h.o.Join("A", "r1"))
	require.NoError(t, h.o.Join("A", "r2"))

	name, ok := h.o.Presence.Name("A")
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)
	assert.Equal(t, 1, h.o.Presence.Count())
}

func TestJoin_ConcurrentJoinsAreOrderedPerRoom(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	const n = 32
	for i := 0; i < n; i++ {
		h.connect(domain.ConnID(fmt.Sprintf("c%02d", i)), fmt.Sprintf("user%d", i))
	}

	var wg sync.WaitGroup
	for id := range h.sigs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.o.Join(id, "busy"))
		}()
	}
	wg.Wait()

	assert.Len(t, h.o.Rooms.Members("busy"), n)
	for id, sig := range h.sigs {
		prev := 0
		for _, e := range sig.ofType(t, core.EventJoined) {
			assert.Greater(t, len(e.Clients), prev, "recipient %s saw JOINED out of order", id)
			prev = len(e.Clients)
		}
		assert.Equal(t, n, prev, "recipient %s missed the last JOINED", id)
	}
}

func TestCodeChange_ExcludesSender(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	for _, id := range []domain.ConnID{"A", "B", "C"} {
		h.connect(id, string(id))
		require.NoError(t, h.o.Join(id, "r1"))
	}
	h.resetAll()

	res := h.o.CodeChange("A", "r1", "x = 1")

	assert.Equal(t, 2, res.SendTo)
	assert.Empty(t, h.sigs["A"].events(t))
	for _, id := range []domain.ConnID{"B", "C"} {
		assert.Equal(t, []envelope{{Type: core.EventCodeChange, Code: "x = 1"}}, h.sigs[id].events(t))
	}
}

func TestRelay_EmptyPeerSet(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	a := h.connect("A", "Ada")
	require.NoError(t, h.o.Join("A", "solo"))
	a.reset()

	assert.Equal(t, core.PublishResult{}, h.o.CodeChange("A", "solo", "x"))
	assert.Equal(t, core.PublishResult{}, h.o.OutputChange("A", "solo", "Compiling..."))
	assert.Equal(t, core.PublishResult{}, h.o.CodeChange("A", "nobody-here", "x"))
	assert.Empty(t, a.events(t))
}

func TestRelay_NonMemberIsIgnored(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	b := h.connect("B", "Bob")
	h.connect("X", "Eve")
	require.NoError(t, h.o.Join("B", "r1"))
	b.reset()

	res := h.o.CodeChange("X", "r1", "rm -rf")

	assert.Zero(t, res.SendTo)
	assert.Empty(t, b.events(t))
}

func TestOutputChange_RelaysVerbatim(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")
	b := h.connect("B", "Bob")
	require.NoError(t, h.o.Join("A", "r1"))
	require.NoError(t, h.o.Join("B", "r1"))
	b.reset()

	h.o.OutputChange("A", "r1", "Compiling...")
	h.o.OutputChange("A", "r1", "hello\n")

	assert.Equal(t, []envelope{
		{Type: core.EventOutputChange, Output: "Compiling..."},
		{Type: core.EventOutputChange, Output: "hello\n"},
	}, b.events(t))
}

func TestCursorChange_UsesVerifiedName(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")
	b := h.connect("B", "Bob")
	require.NoError(t, h.o.Join("A", "r1"))
	require.NoError(t, h.o.Join("B", "r1"))
	b.reset()

	cursor := json.RawMessage(`{"lineNumber":3,"column":7}`)
	h.o.CursorChange("A", "r1", cursor, "Mallory")

	events := b.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventCursorChange, events[0].Type)
	assert.Equal(t, domain.ConnID("A"), events[0].SocketID)
	assert.Equal(t, "Ada", events[0].Username)
	assert.JSONEq(t, string(cursor), string(events[0].Cursor))
}

func TestSyncCode_OnlyTarget(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	for _, id := range []domain.ConnID{"A", "B", "C"} {
		h.connect(id, string(id))
		require.NoError(t, h.o.Join(id, "r1"))
	}
	h.resetAll()

	assert.True(t, h.o.SyncCode("A", "B", "x"))

	assert.Equal(t, []envelope{{Type: core.EventCodeChange, Code: "x"}}, h.sigs["B"].events(t))
	assert.Empty(t, h.sigs["A"].events(t))
	assert.Empty(t, h.sigs["C"].events(t))
}

func TestSyncCode_Dropped(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")
	outsider := h.connect("Z", "Zed")
	require.NoError(t, h.o.Join("A", "r1"))
	require.NoError(t, h.o.Join("Z", "r2"))
	h.resetAll()

	assert.False(t, h.o.SyncCode("A", "gone", "x"), "unknown target")
	assert.False(t, h.o.SyncCode("A", "Z", "x"), "target in no shared room")
	assert.Empty(t, outsider.events(t))
}

func TestDisconnect_TotalCleanup(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")
	b := h.connect("B", "Bob")
	c := h.connect("C", "Cy")
	d := h.connect("D", "Di")
	require.NoError(t, h.o.Join("A", "R1"))
	require.NoError(t, h.o.Join("A", "R2"))
	require.NoError(t, h.o.Join("B", "R1"))
	require.NoError(t, h.o.Join("C", "R2"))
	require.NoError(t, h.o.Join("D", "R1"))
	require.NoError(t, h.o.Join("D", "R2"))
	h.resetAll()

	h.o.Disconnect("A")

	assert.NotContains(t, h.o.Rooms.Members("R1"), domain.ConnID("A"))
	assert.NotContains(t, h.o.Rooms.Members("R2"), domain.ConnID("A"))
	_, ok := h.o.Presence.Name("A")
	assert.False(t, ok)
	_, ok = h.o.Registry.GetSession("A")
	assert.False(t, ok)

	wantOne := []envelope{{Type: core.EventDisconnected, SocketID: "A", Username: "Ada"}}
	assert.Equal(t, wantOne, b.events(t))
	assert.Equal(t, wantOne, c.events(t))
	twice := d.ofType(t, core.EventDisconnected)
	assert.Len(t, twice, 2, "one per shared room")

	h.resetAll()
	h.o.Disconnect("A")
	assert.Empty(t, b.events(t), "second disconnect is a no-op")
}

func TestDisconnect_BeforeJoin(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	h.connect("A", "Ada")
	b := h.connect("B", "Bob")
	require.NoError(t, h.o.Join("B", "r1"))
	b.reset()

	h.o.Disconnect("A")

	assert.Empty(t, b.events(t))
	assert.Equal(t, 1, h.o.Registry.Count())
	assert.Equal(t, []domain.ConnID{"B"}, h.o.Rooms.Members("r1"))
}

func TestLeave(t *testing.T) {
	h := newHarness(app.SimplePolicy{})
	a := h.connect("A", "Ada")
	b := h.connect("B", "Bob")
	require.NoError(t, h.o.Join("A", "r1"))
	require.NoError(t, h.o.Join("B", "r1"))
	h.resetAll()

	assert.True(t, h.o.Leave("A", "r1"))
	assert.False(t, h.o.Leave("A", "r1"))

	assert.Equal(t, []envelope{{Type: core.EventDisconnected, SocketID: "A", Username: "Ada"}}, b.events(t))
	assert.Empty(t, a.events(t))
	assert.Equal(t, []domain.ConnID{"B"}, h.o.Rooms.Members("r1"))
	_, ok := h.o.Presence.Name("A")
	assert.True(t, ok, "presence survives leave")

	h.resetAll()
	h.o.Disconnect("A")
	assert.Empty(t, b.events(t), "no DISCONNECTED for rooms already left")
}

func TestPublish_FailedRecipientIsIsolated(t *testing.T) {
	tests := []struct {
		name       string
		policy     app.Policy
		wantCancel bool
	}{
		{name: "drop", policy: app.SimplePolicy{}, wantCancel: false},
		{name: "kick", policy: app.KickPolicy{}, wantCancel: true},
		{name: "no policy", policy: nil, wantCancel: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.policy)
			h.connect("A", "Ada")
			c := h.connect("C", "Cy")
			slow := &fakeSignal{err: errFull}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			h.o.Connect(core.NewMemberSession("S", &domain.User{ID: "us", Username: "Slow"}, slow), cancel)

			for _, id := range []domain.ConnID{"A", "S", "C"} {
				require.NoError(t, h.o.Join(id, "r1"))
			}
			c.reset()

			res := h.o.CodeChange("A", "r1", "x")

			assert.Equal(t, 1, res.SendTo)
			assert.Equal(t, []domain.ConnID{"S"}, res.Dropped)
			assert.Equal(t, []envelope{{Type: core.EventCodeChange, Code: "x"}}, c.events(t))
			assert.Equal(t, tt.wantCancel, ctx.Err() != nil)
		})
	}
}
