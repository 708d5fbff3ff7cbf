// package public contains structs that can be sent to relay clients.
// These structs never carry passphrase hashes or other server-side state.
package public

// OnlineUser is a participant as seen by other clients.
type OnlineUser struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// Channel is the public view of a channel with its live occupancy.
type Channel struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	MaxUsers    int          `json:"maxUsers"`
	HasPassword bool         `json:"hasPassword"`
	OnlineCount int          `json:"onlineCount"`
	OnlineUsers []OnlineUser `json:"onlineUsers"`
}
