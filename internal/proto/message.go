package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frame types exchanged over the room channel. The same set is used in
// both directions.
const (
	TypeChat            = "chat"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypeUserSync        = "user_sync"
	TypeUsernameChanged = "username_changed"
	TypeColorChanged    = "color_changed"
)

// Identity fields that can be changed mid-session.
const (
	FieldUsername = "username"
	FieldColor    = "color"
)

// ErrMalformedFrame is returned when a frame cannot be decoded or lacks its type.
var ErrMalformedFrame = errors.New("malformed frame")

// Position is a point on the canvas plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is one unit exchanged over the channel. Optional fields are pointers
// so that "absent" can be told apart from "empty".
type Frame struct {
	Type      string      `json:"type"`
	UserID    string      `json:"user_id"`
	ChannelID string      `json:"channel_id"`
	Timestamp int64       `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
	Payload   *string     `json:"payload,omitempty"`
	Position  *Position   `json:"position,omitempty"`
	Username  *string     `json:"username,omitempty"`
	Color     *string     `json:"color,omitempty"`
	Users     []UserEntry `json:"users,omitempty"`
}

// UserEntry is one element of a user_sync roster. On the wire it is either
// a bare id string (legacy servers) or an object; both decode into this shape.
type UserEntry struct {
	UserID   string  `json:"user_id"`
	Username *string `json:"username,omitempty"`
	Color    *string `json:"color,omitempty"`
}

// UnmarshalJSON accepts both the legacy string form and the object form.
// Any other shape decodes to an entry with an empty UserID so that one bad
// entry does not cost the rest of the roster; consumers skip such entries.
func (e *UserEntry) UnmarshalJSON(data []byte) error {
	*e = UserEntry{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err == nil {
			e.UserID = id
		}
	case '{':
		type object UserEntry
		var obj object
		if err := json.Unmarshal(data, &obj); err == nil {
			*e = UserEntry(obj)
		}
	}
	return nil
}

// Decode parses a raw frame. Unknown types are not an error here; the caller
// decides what to do with them.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}

// NewChat builds a content-update frame for a message.
func NewChat(userID, channelID, messageID, content string, x, y float64, ts time.Time) Frame {
	return Frame{
		Type:      TypeChat,
		UserID:    userID,
		ChannelID: channelID,
		Timestamp: ts.UnixMilli(),
		MessageID: messageID,
		Payload:   &content,
		Position:  &Position{X: x, Y: y},
	}
}

// NewFieldChanged builds a username_changed or color_changed frame.
func NewFieldChanged(field, userID, channelID, value string, ts time.Time) (Frame, error) {
	f := Frame{
		UserID:    userID,
		ChannelID: channelID,
		Timestamp: ts.UnixMilli(),
	}
	switch field {
	case FieldUsername:
		f.Type = TypeUsernameChanged
		f.Username = &value
	case FieldColor:
		f.Type = TypeColorChanged
		f.Color = &value
	default:
		return Frame{}, fmt.Errorf("unknown identity field %q", field)
	}
	return f, nil
}

// Str returns the pointed-to string or "" for nil.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
