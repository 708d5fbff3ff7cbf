package schemas

import (
	"encoding/json"
)

// CreateChannelRequest is the body of POST /channels.
type CreateChannelRequest struct {
	Name     string `json:"name" validate:"max=64"`
	MaxUsers int    `json:"maxUsers" validate:"lte=50"`
	Password string `json:"password" validate:"maxbytes=72"`
}

// UpdateChannelRequest is the body of PATCH /channels/{id}. Absent fields are
// left untouched.
type UpdateChannelRequest struct {
	Name     *string        `json:"name" validate:"omitempty,max=64"`
	MaxUsers *float64       `json:"maxUsers" validate:"omitempty,lte=50"`
	Password OptionalString `json:"password" validate:"maxbytes=72"`
}

// OptionalString records whether a JSON field was present at all, so that an
// explicit null or "" can be told apart from an omitted field.
type OptionalString struct {
	Set   bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// Some returns a present OptionalString holding value.
func Some(value string) OptionalString {
	return OptionalString{Set: true, Value: value}
}
