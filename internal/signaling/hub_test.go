package signaling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gregriff/vogo/relay/internal/metrics"
	"github.com/gregriff/vogo/relay/internal/presence"
	"github.com/gregriff/vogo/relay/internal/registry"
	"github.com/gregriff/vogo/relay/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// recorder is a Peer that keeps every message it is sent.
type recorder struct {
	id string

	mu     sync.Mutex
	msgs   []any
	full   bool
	closed bool
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(msg any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

func messagesOf[T any](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for _, m := range r.msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastOf[T any](t *testing.T, r *recorder) T {
	t.Helper()
	msgs := messagesOf[T](r)
	require.NotEmpty(t, msgs, "%s received no %T", r.id, *new(T))
	return msgs[len(msgs)-1]
}

// barrier is applied after every command queued before it.
type barrier chan struct{}

func (b barrier) apply(*Hub) { close(b) }

func flush(h *Hub) {
	b := make(barrier)
	h.submit(b)
	<-b
}

type fixture struct {
	hub      *Hub
	registry *registry.Registry
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg, err := registry.New(ctx, store.NewMemoryWith([]byte(`[]`)), 6, discard)
	require.NoError(t, err)
	_, err = reg.Create(ctx, registry.CreateParams{Name: "General", MaxUsers: 2})
	require.NoError(t, err)
	_, err = reg.Create(ctx, registry.CreateParams{Name: "Private", Password: "secret"})
	require.NoError(t, err)

	m := metrics.New()
	hub := NewHub(reg, presence.NewTable(reg), nil, m, discard)

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(runCtx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return &fixture{hub: hub, registry: reg, metrics: m}
}

func (f *fixture) connect(ids ...string) []*recorder {
	peers := make([]*recorder, 0, len(ids))
	for _, id := range ids {
		p := &recorder{id: id}
		f.hub.Register(p)
		peers = append(peers, p)
	}
	flush(f.hub)
	return peers
}

func onlineCount(t *testing.T, msg Channels, channelID string) int {
	t.Helper()
	for _, ch := range msg.Channels {
		if ch.ID == channelID {
			return ch.OnlineCount
		}
	}
	t.Fatalf("channel %s missing from snapshot", channelID)
	return 0
}

func TestRegisterSendsWelcomeThenSnapshot(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.connect("A")[0]

	a.mu.Lock()
	msgs := append([]any(nil), a.msgs...)
	a.mu.Unlock()
	req.Len(msgs, 2)

	welcome, ok := msgs[0].(Welcome)
	req.True(ok)
	req.Equal("A", welcome.ConnectionID)
	req.NotNil(welcome.ICEServers)

	snap, ok := msgs[1].(Channels)
	req.True(ok)
	req.Len(snap.Channels, 2)
	req.Equal(1, f.hub.Connections())
}

func TestJoinRelayAndDisconnectScenario(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	peers := f.connect("A", "B", "C")
	a, b, c := peers[0], peers[1], peers[2]

	f.hub.Join("A", "general", "alice", "")
	flush(f.hub)
	joined := lastOf[Joined](t, a)
	req.Equal("general", joined.ChannelID)
	req.Equal(2, joined.MaxUsers)
	req.Empty(joined.Peers)
	for _, p := range peers {
		req.Equal(1, onlineCount(t, lastOf[Channels](t, p), "general"))
	}

	f.hub.Join("B", "general", "bob", "")
	flush(f.hub)
	joined = lastOf[Joined](t, b)
	req.Len(joined.Peers, 1)
	req.Equal("A", joined.Peers[0].ConnectionID)
	req.Equal("alice", joined.Peers[0].DisplayName)
	notice := lastOf[PeerJoined](t, a)
	req.Equal("B", notice.Peer.ConnectionID)
	req.Equal("bob", notice.Peer.DisplayName)
	req.Equal(2, onlineCount(t, lastOf[Channels](t, c), "general"))

	broadcastsBefore := len(messagesOf[Channels](a))
	f.hub.Join("C", "general", "carol", "")
	flush(f.hub)
	rejected := lastOf[JoinError](t, c)
	req.Equal(CodeRoomFull, rejected.Error)
	req.Equal("general", rejected.ChannelID)
	req.Empty(messagesOf[Joined](c))
	req.Len(messagesOf[Channels](a), broadcastsBefore, "a rejected join is not broadcast")
	req.Empty(messagesOf[JoinError](a), "rejections go to the requester only")

	payload := json.RawMessage(`{"sdp":"v=0","type":"offer"}`)
	f.hub.Relay("A", "B", "general", payload)
	flush(f.hub)
	sig := lastOf[Signal](t, b)
	req.Equal("A", sig.From)
	req.Equal("general", sig.ChannelID)
	req.JSONEq(string(payload), string(sig.Payload))
	req.Empty(messagesOf[Signal](c))

	f.hub.Disconnect("A")
	flush(f.hub)
	left := lastOf[PeerLeft](t, b)
	req.Equal("A", left.ConnectionID)
	snap := lastOf[Channels](t, b)
	req.Equal(1, onlineCount(t, snap, "general"))
	req.Equal("B", snap.Channels[0].OnlineUsers[0].ConnectionID)

	f.hub.Join("C", "general", "carol", "")
	flush(f.hub)
	req.Len(messagesOf[Joined](c), 1)
	req.Equal(2, f.hub.Connections())
}

func TestPasswordProtectedJoin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	peers := f.connect("A", "B")
	a, b := peers[0], peers[1]

	before := len(messagesOf[Channels](b))
	f.hub.Join("A", "private", "alice", "")
	f.hub.Join("A", "private", "alice", "nope")
	flush(f.hub)
	errs := messagesOf[JoinError](a)
	req.Len(errs, 2)
	req.Equal(CodeWrongPassword, errs[0].Error)
	req.Equal(CodeWrongPassword, errs[1].Error)
	req.Len(messagesOf[Channels](b), before)

	f.hub.Join("A", "private", "alice", "secret")
	flush(f.hub)
	req.Len(messagesOf[Joined](a), 1)
	req.Equal(1, onlineCount(t, lastOf[Channels](t, b), "private"))
}

func TestRelayIsNotQueuedBehindPasswordJoins(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	peers := f.connect("A", "B", "C")
	b, c := peers[1], peers[2]

	const attempts = 10
	guessing := make(chan struct{})
	go func() {
		defer close(guessing)
		for range attempts {
			f.hub.Join("C", "private", "", "guess")
		}
	}()

	f.hub.Relay("A", "B", "general", json.RawMessage(`{"sdp":"v=0"}`))
	flush(f.hub)
	req.Len(messagesOf[Signal](b), 1)
	req.Less(len(messagesOf[JoinError](c)), attempts, "relay waited for every passphrase check")

	<-guessing
	flush(f.hub)
	errs := messagesOf[JoinError](c)
	req.Len(errs, attempts)
	req.Equal(CodeWrongPassword, errs[0].Error)
}

func TestJoinErrors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.connect("A")[0]

	f.hub.Join("A", "nowhere", "", "")
	flush(f.hub)
	req.Equal(CodeChannelNotFound, lastOf[JoinError](t, a).Error)

	f.hub.Join("A", "general", "", "")
	f.hub.Join("A", "private", "", "secret")
	flush(f.hub)
	req.Equal(CodeAlreadyJoined, lastOf[JoinError](t, a).Error)
	req.Equal(uint64(2), f.metrics.Get(metrics.JoinsRejected))
	req.Equal(uint64(1), f.metrics.Get(metrics.JoinsAccepted))
}

func TestExplicitLeaveKeepsConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	peers := f.connect("A", "B")
	a, b := peers[0], peers[1]

	f.hub.Join("A", "general", "", "")
	f.hub.Join("B", "general", "", "")
	f.hub.Leave("A")
	flush(f.hub)

	req.Equal("A", lastOf[PeerLeft](t, b).ConnectionID)
	req.Equal(1, onlineCount(t, lastOf[Channels](t, a), "general"))

	f.hub.Join("A", "private", "", "secret")
	flush(f.hub)
	req.Equal("private", lastOf[Joined](t, a).ChannelID)
}

func TestDisconnectOutsideChannelIsSilent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	peers := f.connect("A", "D")
	a := peers[0]
	a.reset()

	f.hub.Disconnect("D")
	f.hub.Disconnect("D")
	f.hub.Leave("A")
	flush(f.hub)

	req.Empty(messagesOf[Channels](a))
	req.Empty(messagesOf[PeerLeft](a))
	req.Zero(f.metrics.Get(metrics.Departures))
	req.Equal(uint64(1), f.metrics.Get(metrics.ConnectionsClosed))
}

func TestRelayDropsIncompleteOrUndeliverableSignals(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	b := f.connect("A", "B")[1]

	payload := json.RawMessage(`{"candidate":"x"}`)
	f.hub.Relay("A", "", "general", payload)
	f.hub.Relay("A", "B", "", payload)
	f.hub.Relay("A", "B", "general", nil)
	f.hub.Relay("A", "B", "general", json.RawMessage(`null`))
	f.hub.Relay("A", "ghost", "general", payload)
	flush(f.hub)

	req.Empty(messagesOf[Signal](b))
	req.Equal(uint64(5), f.metrics.Get(metrics.SignalsDropped))
	req.Zero(f.metrics.Get(metrics.SignalsRelayed))
}

func TestRelayDoesNotRequireMembership(t *testing.T) {
	f := newFixture(t)
	b := f.connect("A", "B")[1]

	f.hub.Relay("A", "B", "whatever", json.RawMessage(`"opaque"`))
	flush(f.hub)

	sig := lastOf[Signal](t, b)
	require.Equal(t, `"opaque"`, string(sig.Payload))
}

func TestDispatchDecodesFrames(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	peers := f.connect("A", "B")
	a, b := peers[0], peers[1]

	f.hub.Dispatch("A", []byte(`{"type":"join","channelId":"general","displayName":"alice"}`))
	f.hub.Dispatch("B", []byte(`{"type":"join","channelId":"general"}`))
	f.hub.Dispatch("B", []byte(`{"type":"signal","to":"A","channelId":"general","payload":{"type":"answer"}}`))
	f.hub.Dispatch("B", []byte(`{not json`))
	f.hub.Dispatch("B", []byte(`{"type":"dance"}`))
	f.hub.Dispatch("A", []byte(`{"type":"leave"}`))
	flush(f.hub)

	req.Equal(presence.DefaultDisplayName, lastOf[PeerJoined](t, a).Peer.DisplayName)
	req.JSONEq(`{"type":"answer"}`, string(lastOf[Signal](t, a).Payload))
	req.Equal("A", lastOf[PeerLeft](t, b).ConnectionID)
	req.Equal(uint64(2), f.metrics.Get(metrics.MalformedMessages))
}

func TestRegistryChangeIsBroadcast(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.connect("A")[0]
	a.reset()

	_, err := f.registry.Create(context.Background(), registry.CreateParams{Name: "Games"})
	req.NoError(err)
	f.hub.ChannelsChanged()
	flush(f.hub)

	snap := lastOf[Channels](t, a)
	req.Len(snap.Channels, 3)
	req.Equal("games", snap.Channels[2].ID)
}

func TestSnapshotOmitsPassphraseHash(t *testing.T) {
	f := newFixture(t)
	data, err := json.Marshal(f.hub.Snapshot())
	require.NoError(t, err)
	require.NotContains(t, string(data), "passwordHash")
	require.NotContains(t, string(data), "$2a$")
}

func TestOnlineCountTracksJoinsAndDepartures(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, err := f.registry.Create(context.Background(), registry.CreateParams{Name: "Hall", MaxUsers: 50})
	req.NoError(err)

	ids := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6"}
	f.connect(ids...)
	for _, id := range ids {
		f.hub.Join(id, "hall", "", "")
	}
	f.hub.Leave("p1")
	f.hub.Disconnect("p4")
	f.hub.Disconnect("p6")
	flush(f.hub)

	for _, ch := range f.hub.Snapshot() {
		if ch.ID == "hall" {
			req.Equal(len(ids)-3, ch.OnlineCount)
			req.Len(ch.OnlineUsers, len(ids)-3)
			return
		}
	}
	t.Fatal("hall missing from snapshot")
}

func TestFullSendQueueIsCounted(t *testing.T) {
	f := newFixture(t)
	a := f.connect("A")[0]
	a.mu.Lock()
	a.full = true
	a.mu.Unlock()

	f.hub.ChannelsChanged()
	flush(f.hub)
	require.Equal(t, uint64(1), f.metrics.Get(metrics.SendQueueOverflow))
}

func TestRunClosesPeersOnShutdown(t *testing.T) {
	reg, err := registry.New(context.Background(), store.NewMemory(), 6, discard)
	require.NoError(t, err)
	hub := NewHub(reg, presence.NewTable(reg), nil, nil, discard)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- hub.Run(ctx) }()

	p := &recorder{id: "A"}
	hub.Register(p)
	flush(hub)
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.True(t, p.closed)

	// events after shutdown must not block
	hub.Join("A", "general", "", "")
}
