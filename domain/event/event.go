// Package event describes the row-level change notifications pushed by the
// backend. Subscribers receive them in backend delivery order; conflict
// resolution across writers belongs to the backend, not to consumers.
package event

import (
	"time"

	"campus-chat/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// ChangeEvent carries one row-level change for a room's messages.
// For Delete, only Row.ID and Row.RoomID are meaningful.
type ChangeEvent struct {
	Type ChangeType
	Row  domain.Message
}

func (e ChangeEvent) RoomID() domain.RoomID {
	return e.Row.RoomID
}

// FlagChanged announces a feature flag toggle on the control channel.
type FlagChanged struct {
	Name    string
	Enabled bool
	At      time.Time
}

func (FlagChanged) RoomID() domain.RoomID {
	return domain.ControlRoom
}

// AnnouncementPosted announces a new portal-wide announcement.
type AnnouncementPosted struct {
	ID    string
	Title string
	Body  string
	At    time.Time
}

func (AnnouncementPosted) RoomID() domain.RoomID {
	return domain.ControlRoom
}
