// Package domain contains core concepts of the conversation system.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type RoomID string

// ControlRoom is a reserved channel id used for backend-wide broadcast
// state (feature flags, announcements). The server never issues it as a
// regular room id.
const ControlRoom RoomID = "_control"

type RoomType string

const (
	RoomPublic RoomType = "public"
	RoomDirect RoomType = "direct"
)

type Room struct {
	ID   RoomID
	Type RoomType

	// Name is set on public rooms only.
	Name string

	// Participants is set on direct rooms only. Exactly two entries,
	// fixed at creation, order not significant.
	Participants []string

	// AllowedRoles restricts who may post in a public room.
	// Empty means unrestricted.
	AllowedRoles []Role

	CreatedAt time.Time
}

// Counterpart returns the other participant of a direct room.
func (r Room) Counterpart(userID string) (string, bool) {
	if r.Type != RoomDirect {
		return "", false
	}
	for _, p := range r.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}

// HasParticipant reports whether userID belongs to a direct room.
func (r Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// CanPost reports whether a user with the given role may write to the room.
// Direct rooms are never role gated.
func (r Room) CanPost(role Role) bool {
	if r.Type == RoomDirect || len(r.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range r.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}
