package store

import (
	"context"
	"errors"
)

// MaxRecentRooms bounds the recent-rooms list.
const MaxRecentRooms = 10

// ErrInvalidRoom is returned for an empty room id.
var ErrInvalidRoom = errors.New("invalid room id")

// Profile is what this device remembers about its participant.
type Profile struct {
	UserID      string
	DisplayName string
	Color       string
	Rooms       []string // most recent first
}

// Store persists the local profile between sessions.
type Store interface {
	// Profile returns the stored profile. Missing fields are empty.
	Profile(ctx context.Context) (*Profile, error)

	// EnsureUserID returns the stable identity id, creating it on first use.
	EnsureUserID(ctx context.Context) (string, error)

	// SetDisplayName stores a trimmed display name; an empty name clears it.
	SetDisplayName(ctx context.Context, name string) error

	// SetColor stores a palette color. Off-palette colors are ignored.
	// Reports whether the color was stored.
	SetColor(ctx context.Context, color string) (bool, error)

	// Rooms returns recently joined rooms, most recent first.
	Rooms(ctx context.Context) ([]string, error)

	// AddRoom moves or inserts a room at the front, evicting the oldest
	// entries beyond MaxRecentRooms.
	AddRoom(ctx context.Context, roomID string) error

	// RemoveRoom drops a room from the list.
	RemoveRoom(ctx context.Context, roomID string) error

	// ClearRooms empties the list.
	ClearRooms(ctx context.Context) error

	// Clear forgets the identity id, display name and color.
	Clear(ctx context.Context) error

	Close() error
}
