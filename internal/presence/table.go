// Package presence tracks which live connections sit in which channel and
// decides whether a connection may join one.
package presence

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gregriff/vogo/relay/internal/crypto"
	"github.com/gregriff/vogo/relay/internal/schemas"
)

var (
	ErrAlreadyJoined   = errors.New("connection already joined a channel")
	ErrChannelNotFound = errors.New("channel not found")
	ErrRoomFull        = errors.New("channel is full")
	ErrWrongPassword   = errors.New("wrong channel password")
)

const (
	DefaultDisplayName = "Anonymous"
	MaxDisplayNameLen  = 32
)

// ChannelLookup is the read side of the channel registry that admission needs.
type ChannelLookup interface {
	Get(id string) (schemas.Channel, bool)
	DefaultCapacity() int
}

// Table maps channels to their participants and connections back to their
// channel. A connection is in at most one channel.
type Table struct {
	mu      sync.RWMutex
	members map[string][]schemas.Participant // channel id -> participants in join order
	byConn  map[string]string                // connection id -> channel id

	channels ChannelLookup
	now      func() time.Time
	compare  func(hash, password string) bool
}

func NewTable(channels ChannelLookup) *Table {
	return &Table{
		members:  make(map[string][]schemas.Participant),
		byConn:   make(map[string]string),
		channels: channels,
		now:      time.Now,
		compare:  crypto.PassphraseMatches,
	}
}

// Credential is a join passphrase together with the result of comparing it
// against the channel's hash. Verify produces it outside the event loop.
type Credential struct {
	password string
	hash     string // hash the password was compared against
	matches  bool
}

// Verify compares password against the channel's current passphrase hash. It
// does the slow part of admission and may be called from any goroutine. A
// channel that is unknown, full or has no passphrase skips the comparison.
func (t *Table) Verify(channelID, connectionID, password string) Credential {
	t.mu.RLock()
	ch, err := t.precheck(channelID, connectionID)
	t.mu.RUnlock()

	cred := Credential{password: password}
	if err != nil || !ch.HasPassword {
		return cred
	}
	cred.hash = ch.PasswordHash
	cred.matches = t.compare(ch.PasswordHash, password)
	return cred
}

func (t *Table) passphraseOK(ch schemas.Channel, cred Credential) bool {
	if !ch.HasPassword {
		return true
	}
	if cred.hash == ch.PasswordHash {
		return cred.matches
	}
	// the passphrase was set or changed after Verify
	return t.compare(ch.PasswordHash, cred.password)
}

// Admit checks, in order, that the connection is not already in a channel,
// that the channel exists, that it has room and that the credential matches,
// then inserts the participant. It returns the participant and the members
// that were present before it.
func (t *Table) Admit(channelID, connectionID, displayName string, cred Credential) (schemas.Participant, []schemas.Participant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, err := t.precheck(channelID, connectionID)
	if err != nil {
		return schemas.Participant{}, nil, err
	}
	if !t.passphraseOK(ch, cred) {
		return schemas.Participant{}, nil, ErrWrongPassword
	}

	p := schemas.Participant{
		ConnectionID: connectionID,
		ChannelID:    channelID,
		DisplayName:  normalizeDisplayName(displayName),
		JoinedAt:     t.now(),
	}
	others := slices.Clone(t.members[channelID])
	t.members[channelID] = append(t.members[channelID], p)
	t.byConn[connectionID] = channelID
	return p, others, nil
}

// precheck runs every admission check except the passphrase. Callers hold mu.
func (t *Table) precheck(channelID, connectionID string) (schemas.Channel, error) {
	if _, joined := t.byConn[connectionID]; joined {
		return schemas.Channel{}, ErrAlreadyJoined
	}
	ch, ok := t.channels.Get(channelID)
	if !ok {
		return schemas.Channel{}, ErrChannelNotFound
	}
	if len(t.members[channelID]) >= ch.Capacity(t.channels.DefaultCapacity()) {
		return schemas.Channel{}, ErrRoomFull
	}
	return ch, nil
}

// Leave removes the connection from its channel. It reports false when the
// connection was in no channel. Empty channels are dropped from the table.
func (t *Table) Leave(connectionID string) (schemas.Participant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	channelID, ok := t.byConn[connectionID]
	if !ok {
		return schemas.Participant{}, false
	}
	delete(t.byConn, connectionID)

	members := t.members[channelID]
	i := slices.IndexFunc(members, func(p schemas.Participant) bool {
		return p.ConnectionID == connectionID
	})
	if i < 0 {
		return schemas.Participant{}, false
	}
	left := members[i]
	members = slices.Delete(members, i, i+1)
	if len(members) == 0 {
		delete(t.members, channelID)
	} else {
		t.members[channelID] = members
	}
	return left, true
}

// Members returns the participants of a channel in join order.
func (t *Table) Members(channelID string) []schemas.Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.members[channelID])
}

// ChannelOf returns the channel a connection currently belongs to.
func (t *Table) ChannelOf(connectionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byConn[connectionID]
	return id, ok
}

func normalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		name = string([]rune(name)[:MaxDisplayNameLen])
	}
	return name
}
