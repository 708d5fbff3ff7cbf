package schemas

import (
	"time"
)

// Channel is the persisted definition of a voice channel. The registry stores
// the whole collection as a JSON array of these records.
type Channel struct {
	// slug derived from the name at creation, never changes
	ID string `json:"id"`

	Name string `json:"name"`

	// <= 0 means the process-wide default capacity
	MaxUsers int `json:"maxUsers"`

	HasPassword bool `json:"hasPassword"`

	// bcrypt hash of the passphrase, present iff HasPassword
	PasswordHash string `json:"passwordHash,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Capacity resolves the channel's effective capacity.
func (c Channel) Capacity(defaultCapacity int) int {
	if c.MaxUsers > 0 {
		return c.MaxUsers
	}
	return defaultCapacity
}

// Participant is a live connection admitted into a channel. It only exists in memory.
type Participant struct {
	ConnectionID string
	ChannelID    string
	DisplayName  string
	JoinedAt     time.Time
}
