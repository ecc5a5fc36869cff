package store

import "github.com/samber/lo"

// PushRoom returns rooms with roomID moved to the front, capped at MaxRecentRooms.
func PushRoom(rooms []string, roomID string) []string {
	updated := append([]string{roomID}, lo.Without(rooms, roomID)...)
	if len(updated) > MaxRecentRooms {
		updated = updated[:MaxRecentRooms]
	}
	return updated
}
