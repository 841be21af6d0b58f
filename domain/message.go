package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageID identifies a message. Server-assigned ids are plain UUIDs.
// Locally generated provisional ids carry the "local:" prefix, a namespace
// the server never issues, so the two can never collide.
type MessageID string

const localIDPrefix = "local:"

// NewLocalID returns a provisional id for a message that has not been
// confirmed by the backend yet.
func NewLocalID() MessageID {
	return MessageID(localIDPrefix + uuid.NewString())
}

// IsLocal reports whether the id was generated client side.
func (id MessageID) IsLocal() bool {
	return strings.HasPrefix(string(id), localIDPrefix)
}

// Message is one row of a room's conversation. Author fields are
// denormalized at write time so rendering needs no profile join.
type Message struct {
	ID         MessageID
	RoomID     RoomID
	AuthorID   string
	AuthorName string
	AuthorRole Role

	// Content may be empty when an attachment is present.
	Content    string
	Attachment string

	// ReplyTo references another message in the same room, if any.
	ReplyTo MessageID

	// CreatedAt is the authoritative ordering key once the backend has
	// assigned it. Pending messages carry the local insertion time as a
	// stand-in until reconciled.
	CreatedAt time.Time

	// Pending is a local-only flag, true until the write is confirmed by
	// the backend or the change stream. Never set on rows coming back
	// from the backend.
	Pending bool
}

// Draft is a message as authored locally, before any id or timestamp
// has been assigned.
type Draft struct {
	RoomID     RoomID `validate:"required"`
	AuthorID   string `validate:"required"`
	AuthorName string `validate:"required"`
	AuthorRole Role
	Content    string `validate:"required_without=Attachment,max=4000"`
	Attachment string
	ReplyTo    MessageID
}
