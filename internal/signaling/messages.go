package signaling

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/gregriff/vogo/relay/internal/presence"
	"github.com/gregriff/vogo/relay/internal/schemas/public"
)

// Message types. Clients send join, leave and signal; everything else flows
// from the relay to the client.
const (
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeSignal     = "signal"
	TypeWelcome    = "welcome"
	TypeChannels   = "channels"
	TypeJoined     = "joined"
	TypeJoinError  = "join-error"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
)

// Join error codes sent in a join-error message.
const (
	CodeAlreadyJoined   = "ALREADY_JOINED"
	CodeChannelNotFound = "CHANNEL_NOT_FOUND"
	CodeRoomFull        = "ROOM_FULL"
	CodeWrongPassword   = "WRONG_PASSWORD"
	CodeInternal        = "INTERNAL"
)

// Inbound is any client frame. Only the fields of its Type are meaningful.
type Inbound struct {
	Type        string          `json:"type"`
	ChannelID   string          `json:"channelId,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Password    string          `json:"password,omitempty"`
	To          string          `json:"to,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type Welcome struct {
	Type         string             `json:"type"`
	ConnectionID string             `json:"connectionId"`
	ICEServers   []webrtc.ICEServer `json:"iceServers"`
}

type Channels struct {
	Type     string           `json:"type"`
	Channels []public.Channel `json:"channels"`
}

type Joined struct {
	Type      string              `json:"type"`
	ChannelID string              `json:"channelId"`
	MaxUsers  int                 `json:"maxUsers"`
	Peers     []public.OnlineUser `json:"peers"`
}

type JoinError struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId"`
	Error     string `json:"error"`
}

type PeerJoined struct {
	Type      string            `json:"type"`
	ChannelID string            `json:"channelId"`
	Peer      public.OnlineUser `json:"peer"`
}

type PeerLeft struct {
	Type         string `json:"type"`
	ChannelID    string `json:"channelId"`
	ConnectionID string `json:"connectionId"`
}

// Signal carries an opaque negotiation payload, never decoded by the relay.
type Signal struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	ChannelID string          `json:"channelId"`
	Payload   json.RawMessage `json:"payload"`
}

// ErrorCode maps an admission error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, presence.ErrAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, presence.ErrChannelNotFound):
		return CodeChannelNotFound
	case errors.Is(err, presence.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, presence.ErrWrongPassword):
		return CodeWrongPassword
	default:
		return CodeInternal
	}
}
