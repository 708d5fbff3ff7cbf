// Package signaling orchestrates joins, departures, signal relay and channel
// state pushes for every live connection.
package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"

	"github.com/gregriff/vogo/relay/internal/metrics"
	"github.com/gregriff/vogo/relay/internal/presence"
	"github.com/gregriff/vogo/relay/internal/schemas"
	"github.com/gregriff/vogo/relay/internal/schemas/public"
)

const commandQueueSize = 256

// Peer is the hub's handle on one live connection.
type Peer interface {
	ID() string
	// Send queues msg for delivery and reports false when it was dropped.
	Send(msg any) bool
	Close()
}

// ChannelSource is the registry as seen by the hub.
type ChannelSource interface {
	List() []schemas.Channel
	Get(id string) (schemas.Channel, bool)
	DefaultCapacity() int
}

// Hub applies every connection event serially on the goroutine running Run.
// The exported event methods only enqueue and may be called from anywhere.
type Hub struct {
	channels ChannelSource
	presence *presence.Table
	ice      []webrtc.ICEServer
	metrics  *metrics.Metrics
	log      *slog.Logger

	commands    chan command
	done        chan struct{}
	connections atomic.Int64

	// owned by Run
	peers map[string]Peer
}

type command interface {
	apply(h *Hub)
}

func NewHub(channels ChannelSource, table *presence.Table, ice []webrtc.ICEServer, m *metrics.Metrics, log *slog.Logger) *Hub {
	if ice == nil {
		ice = []webrtc.ICEServer{}
	}
	return &Hub{
		channels: channels,
		presence: table,
		ice:      ice,
		metrics:  m,
		log:      log,
		commands: make(chan command, commandQueueSize),
		done:     make(chan struct{}),
		peers:    make(map[string]Peer),
	}
}

// Run processes events until ctx is cancelled, then closes every peer.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("stopping signaling hub", "peers", len(h.peers))
			for _, p := range h.peers {
				p.Close()
			}
			return ctx.Err()
		case cmd := <-h.commands:
			cmd.apply(h)
		}
	}
}

func (h *Hub) submit(cmd command) {
	select {
	case h.commands <- cmd:
	case <-h.done:
	}
}

// Register adds a connection and greets it with its id and the channel state.
func (h *Hub) Register(p Peer) {
	h.connections.Add(1)
	h.submit(registerCmd{peer: p})
}

// Disconnect removes a connection, departing its channel if it was in one.
func (h *Hub) Disconnect(connectionID string) {
	h.connections.Add(-1)
	h.submit(disconnectCmd{id: connectionID})
}

// Join asks for connectionID to be admitted into channelID. The passphrase is
// checked on the calling goroutine so the event loop never waits on bcrypt.
func (h *Hub) Join(connectionID, channelID, displayName, password string) {
	cred := h.presence.Verify(channelID, connectionID, password)
	h.submit(joinCmd{id: connectionID, channelID: channelID, displayName: displayName, cred: cred})
}

// Leave departs connectionID from its channel while keeping it connected.
func (h *Hub) Leave(connectionID string) {
	h.submit(leaveCmd{id: connectionID})
}

// Relay forwards payload from one connection to another, unmodified.
func (h *Hub) Relay(from, to, channelID string, payload json.RawMessage) {
	h.submit(relayCmd{from: from, to: to, channelID: channelID, payload: payload})
}

// ChannelsChanged pushes fresh channel state after a registry mutation.
func (h *Hub) ChannelsChanged() {
	h.submit(broadcastCmd{})
}

// Connections is the number of registered connections.
func (h *Hub) Connections() int {
	return int(h.connections.Load())
}

// Dispatch decodes one client frame and turns it into an event.
func (h *Hub) Dispatch(connectionID string, frame []byte) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		h.metrics.Inc(metrics.MalformedMessages)
		h.log.Debug("dropping malformed frame", "connection_id", connectionID, "error", err)
		return
	}
	switch in.Type {
	case TypeJoin:
		h.Join(connectionID, in.ChannelID, in.DisplayName, in.Password)
	case TypeLeave:
		h.Leave(connectionID)
	case TypeSignal:
		h.Relay(connectionID, in.To, in.ChannelID, in.Payload)
	default:
		h.metrics.Inc(metrics.MalformedMessages)
		h.log.Debug("dropping frame of unknown type", "connection_id", connectionID, "type", in.Type)
	}
}

// Snapshot lists every channel with its live occupants. Safe to call from any goroutine.
func (h *Hub) Snapshot() []public.Channel {
	return lo.Map(h.channels.List(), func(ch schemas.Channel, _ int) public.Channel {
		return h.View(ch)
	})
}

// View is the public form of a single channel. The passphrase hash never leaves the relay.
func (h *Hub) View(ch schemas.Channel) public.Channel {
	users := lo.Map(h.presence.Members(ch.ID), toOnlineUser)
	return public.Channel{
		ID:          ch.ID,
		Name:        ch.Name,
		MaxUsers:    ch.Capacity(h.channels.DefaultCapacity()),
		HasPassword: ch.HasPassword,
		OnlineCount: len(users),
		OnlineUsers: users,
	}
}

func toOnlineUser(p schemas.Participant, _ int) public.OnlineUser {
	return public.OnlineUser{ConnectionID: p.ConnectionID, DisplayName: p.DisplayName}
}

func (h *Hub) send(p Peer, msg any) {
	if !p.Send(msg) {
		h.metrics.Inc(metrics.SendQueueOverflow)
		h.log.Warn("send queue full, message dropped", "connection_id", p.ID())
	}
}

func (h *Hub) broadcast() {
	msg := Channels{Type: TypeChannels, Channels: h.Snapshot()}
	for _, p := range h.peers {
		h.send(p, msg)
	}
	h.metrics.Inc(metrics.Broadcasts)
}

// depart removes id from its channel and tells the remaining members.
func (h *Hub) depart(id string) bool {
	left, ok := h.presence.Leave(id)
	if !ok {
		return false
	}
	h.metrics.Inc(metrics.Departures)
	h.log.Info("participant left", "connection_id", id, "channel_id", left.ChannelID)

	msg := PeerLeft{Type: TypePeerLeft, ChannelID: left.ChannelID, ConnectionID: id}
	for _, m := range h.presence.Members(left.ChannelID) {
		if p, ok := h.peers[m.ConnectionID]; ok {
			h.send(p, msg)
		}
	}
	h.broadcast()
	return true
}

type registerCmd struct{ peer Peer }

func (c registerCmd) apply(h *Hub) {
	id := c.peer.ID()
	h.peers[id] = c.peer
	h.metrics.Inc(metrics.ConnectionsOpened)
	h.log.Debug("connection registered", "connection_id", id)

	h.send(c.peer, Welcome{Type: TypeWelcome, ConnectionID: id, ICEServers: h.ice})
	h.send(c.peer, Channels{Type: TypeChannels, Channels: h.Snapshot()})
}

type disconnectCmd struct{ id string }

func (c disconnectCmd) apply(h *Hub) {
	if _, ok := h.peers[c.id]; !ok {
		return
	}
	h.depart(c.id)
	delete(h.peers, c.id)
	h.metrics.Inc(metrics.ConnectionsClosed)
	h.log.Debug("connection closed", "connection_id", c.id)
}

type joinCmd struct {
	id, channelID, displayName string
	cred                       presence.Credential
}

func (c joinCmd) apply(h *Hub) {
	p, ok := h.peers[c.id]
	if !ok {
		return
	}

	joined, others, err := h.presence.Admit(c.channelID, c.id, c.displayName, c.cred)
	if err != nil {
		h.metrics.Inc(metrics.JoinsRejected)
		h.log.Debug("join rejected", "connection_id", c.id, "channel_id", c.channelID, "error", err)
		h.send(p, JoinError{Type: TypeJoinError, ChannelID: c.channelID, Error: ErrorCode(err)})
		return
	}
	h.metrics.Inc(metrics.JoinsAccepted)
	h.log.Info("participant joined", "connection_id", c.id, "channel_id", c.channelID, "display_name", joined.DisplayName)

	capacity := h.channels.DefaultCapacity()
	if ch, ok := h.channels.Get(c.channelID); ok {
		capacity = ch.Capacity(capacity)
	}
	h.send(p, Joined{
		Type:      TypeJoined,
		ChannelID: c.channelID,
		MaxUsers:  capacity,
		Peers:     lo.Map(others, toOnlineUser),
	})

	notice := PeerJoined{Type: TypePeerJoined, ChannelID: c.channelID, Peer: toOnlineUser(joined, 0)}
	for _, other := range others {
		if op, ok := h.peers[other.ConnectionID]; ok {
			h.send(op, notice)
		}
	}
	h.broadcast()
}

type leaveCmd struct{ id string }

func (c leaveCmd) apply(h *Hub) {
	h.depart(c.id)
}

type relayCmd struct {
	from, to, channelID string
	payload             json.RawMessage
}

func (c relayCmd) apply(h *Hub) {
	if c.to == "" || c.channelID == "" || isEmptyPayload(c.payload) {
		h.metrics.Inc(metrics.SignalsDropped)
		return
	}
	target, ok := h.peers[c.to]
	if !ok {
		h.metrics.Inc(metrics.SignalsDropped)
		h.log.Debug("signal target gone", "from", c.from, "to", c.to)
		return
	}
	if ch, _ := h.presence.ChannelOf(c.from); ch != c.channelID {
		h.log.Debug("relaying signal outside sender's channel", "from", c.from, "sender_channel", ch, "channel_id", c.channelID)
	}
	h.send(target, Signal{Type: TypeSignal, From: c.from, ChannelID: c.channelID, Payload: c.payload})
	h.metrics.Inc(metrics.SignalsRelayed)
}

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

type broadcastCmd struct{}

func (broadcastCmd) apply(h *Hub) {
	h.broadcast()
}
