// Package backend provides an in-process implementation of the platform
// contract, backed by BadgerDB, with change fan-out to subscribed sinks.
// It stands in for the hosted backend in tests and the demo binary; the
// client core only ever sees the contract.Backend interface.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
	"campus-chat/repositories"
	"campus-chat/runtime"
)

type Local struct {
	log      *slog.Logger
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileRepository
	control  repositories.ControlRepository
	registry *runtime.Registry
	now      func() time.Time
}

func NewLocal(db *badger.DB, log *slog.Logger, historyLimit *int) *Local {
	return &Local{
		log:      log,
		rooms:    repositories.NewRoomRepository(db),
		messages: repositories.NewMessageRepository(db, log, historyLimit),
		profiles: repositories.NewProfileRepository(db),
		control:  repositories.NewControlRepository(db),
		registry: runtime.NewRegistry(),
		now:      time.Now,
	}
}

// WithClock replaces the timestamp source. Used by tests that need
// deterministic created_at values.
func (l *Local) WithClock(now func() time.Time) *Local {
	l.now = now
	return l
}

func (l *Local) FindOrCreateDirectRoom(_ context.Context, userA, userB string) (domain.RoomID, error) {
	return l.rooms.FindOrCreateDirect(userA, userB)
}

// InsertMessage persists a message row with a server-assigned id and
// timestamp, then fans the insert out to the room's subscribers. Author
// display fields are denormalized from the profile at write time.
func (l *Local) InsertMessage(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	room, err := l.rooms.Get(draft.RoomID)
	if err != nil {
		return domain.Message{}, err
	}

	authorName, authorRole := draft.AuthorName, draft.AuthorRole
	if profile, err := l.profiles.Get(draft.AuthorID); err == nil {
		authorName, authorRole = profile.DisplayName, profile.Role
	}
	if !room.CanPost(authorRole) {
		return domain.Message{}, fmt.Errorf("%w: role %s may not post in room %s",
			errors.ErrWriteRejected, authorRole, room.ID)
	}
	if draft.ReplyTo != "" {
		target, err := l.messages.Get(draft.ReplyTo)
		if err != nil || target.RoomID != draft.RoomID {
			return domain.Message{}, fmt.Errorf("%w: reply target %s not in room %s",
				errors.ErrWriteRejected, draft.ReplyTo, draft.RoomID)
		}
	}

	row := domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		RoomID:     draft.RoomID,
		AuthorID:   draft.AuthorID,
		AuthorName: authorName,
		AuthorRole: authorRole,
		Content:    draft.Content,
		Attachment: draft.Attachment,
		ReplyTo:    draft.ReplyTo,
		CreatedAt:  l.now().UTC(),
	}
	if err := l.messages.Store(row); err != nil {
		return domain.Message{}, err
	}
	l.fanout(ctx, event.ChangeEvent{Type: event.Insert, Row: row})
	return row, nil
}

func (l *Local) UpdateMessage(ctx context.Context, id domain.MessageID, content string) (domain.Message, error) {
	row, err := l.messages.Get(id)
	if err != nil {
		return domain.Message{}, err
	}
	row.Content = content
	if err := l.messages.Update(row); err != nil {
		return domain.Message{}, err
	}
	l.fanout(ctx, event.ChangeEvent{Type: event.Update, Row: row})
	return row, nil
}

func (l *Local) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	row, err := l.messages.Get(id)
	if err != nil {
		return err
	}
	if err := l.messages.Delete(id); err != nil {
		return err
	}
	l.fanout(ctx, event.ChangeEvent{Type: event.Delete, Row: row})
	return nil
}

func (l *Local) ListMessages(_ context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	return l.messages.List(roomID, cursor)
}

func (l *Local) SubscribeToRoomChanges(_ context.Context, roomID domain.RoomID, sink contract.EventSink) (contract.SubscriptionHandle, error) {
	subID := uuid.NewString()
	l.registry.Subscribe(subID, roomID, sink)
	return &localHandle{registry: l.registry, subID: subID, roomID: roomID}, nil
}

func (l *Local) ListRoomsForUser(_ context.Context, userID string) ([]domain.Room, error) {
	return l.rooms.ListForUser(userID)
}

func (l *Local) LookupProfile(_ context.Context, userID string) (domain.Profile, error) {
	return l.profiles.Get(userID)
}

// CreateRoom registers a public room. Administrative surface, not part of
// the client contract.
func (l *Local) CreateRoom(name string, allowedRoles ...domain.Role) (domain.Room, error) {
	room := domain.Room{
		ID:           domain.RoomID(uuid.NewString()),
		Type:         domain.RoomPublic,
		Name:         name,
		AllowedRoles: allowedRoles,
		CreatedAt:    l.now().UTC(),
	}
	if err := l.rooms.Create(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// DeleteRoom removes a room and cascades to its messages.
func (l *Local) DeleteRoom(id domain.RoomID) error {
	if err := l.rooms.Delete(id); err != nil {
		return err
	}
	return l.messages.DeleteRoom(id)
}

func (l *Local) UpsertProfile(profile domain.Profile) error {
	return l.profiles.Upsert(profile)
}

// SetFlag persists a feature flag and broadcasts the change on the
// control channel.
func (l *Local) SetFlag(ctx context.Context, name string, enabled bool) error {
	if err := l.control.SetFlag(name, enabled); err != nil {
		return err
	}
	l.fanout(ctx, event.FlagChanged{Name: name, Enabled: enabled, At: l.now().UTC()})
	return nil
}

// Announce persists an announcement and broadcasts it.
func (l *Local) Announce(ctx context.Context, title, body string) error {
	a := repositories.Announcement{
		ID:    uuid.NewString(),
		Title: title,
		Body:  body,
		At:    l.now().UTC(),
	}
	if err := l.control.StoreAnnouncement(a); err != nil {
		return err
	}
	l.fanout(ctx, event.AnnouncementPosted{ID: a.ID, Title: a.Title, Body: a.Body, At: a.At})
	return nil
}

func (l *Local) Flags() (map[string]bool, error) {
	return l.control.Flags()
}

// fanout delivers an event to every sink subscribed to its room, in the
// caller's goroutine. Delivery order is therefore write order, which is
// the ordering guarantee the contract documents.
func (l *Local) fanout(ctx context.Context, e event.DomainEvent) {
	for _, sink := range l.registry.SinksForRoom(e.RoomID()) {
		if err := sink.Consume(ctx, e); err != nil {
			l.log.Warn("Sink rejected event", "room", e.RoomID(), "error", err)
		}
	}
}

type localHandle struct {
	registry *runtime.Registry
	subID    string
	roomID   domain.RoomID
	once     sync.Once
}

func (h *localHandle) Close() error {
	h.once.Do(func() {
		h.registry.Unsubscribe(h.subID, h.roomID)
	})
	return nil
}
