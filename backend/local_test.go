package backend

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
)

func setupLocal(t *testing.T) *Local {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return NewLocal(db, slog.Default(), nil)
}

// recordingSink keeps every delivered event for later assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) all() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func draftFrom(roomID domain.RoomID, author, content string) domain.Draft {
	return domain.Draft{
		RoomID:     roomID,
		AuthorID:   author,
		AuthorName: author,
		AuthorRole: domain.RoleStudent,
		Content:    content,
	}
}

func TestLocal_InsertMessage_Persists_And_Fans_Out(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("general")
	req.NoError(err)

	// Given a subscribed sink
	sink := &recordingSink{}
	handle, err := local.SubscribeToRoomChanges(ctx, room.ID, sink)
	req.NoError(err)
	defer handle.Close()

	// When a message is inserted
	row, err := local.InsertMessage(ctx, draftFrom(room.ID, "alice", "hello"))

	// Then the row carries a server id and is delivered as an insert
	req.NoError(err)
	req.NotEmpty(row.ID)
	req.False(row.ID.IsLocal())
	req.False(row.CreatedAt.IsZero())

	events := sink.all()
	req.Len(events, 1)
	change, ok := events[0].(event.ChangeEvent)
	req.True(ok)
	req.Equal(event.Insert, change.Type)
	req.Equal(row, change.Row)

	// And the row is readable through history
	listed, _, err := local.ListMessages(ctx, room.ID, nil)
	req.NoError(err)
	req.Len(listed, 1)
	req.Equal(row, listed[0])
}

func TestLocal_InsertMessage_Denormalizes_Author_From_Profile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("general")
	req.NoError(err)
	req.NoError(local.UpsertProfile(domain.Profile{UserID: "alice", DisplayName: "Alice L.", Role: domain.RoleSenior}))

	row, err := local.InsertMessage(ctx, draftFrom(room.ID, "alice", "hello"))

	// Then the stored row reflects the profile, not the draft fallback
	req.NoError(err)
	req.Equal("Alice L.", row.AuthorName)
	req.Equal(domain.RoleSenior, row.AuthorRole)
}

func TestLocal_InsertMessage_Unknown_Room(t *testing.T) {
	req := require.New(t)
	local := setupLocal(t)

	_, err := local.InsertMessage(context.Background(), draftFrom("missing", "alice", "hello"))

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestLocal_InsertMessage_Role_Gate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("staff-only", domain.RoleAdmin, domain.RoleSenior)
	req.NoError(err)
	req.NoError(local.UpsertProfile(domain.Profile{UserID: "alice", DisplayName: "Alice", Role: domain.RoleStudent}))
	req.NoError(local.UpsertProfile(domain.Profile{UserID: "dean", DisplayName: "Dean", Role: domain.RoleAdmin}))

	// When a student posts in a restricted room
	_, err = local.InsertMessage(ctx, draftFrom(room.ID, "alice", "hello"))

	// Then the write is rejected before anything is persisted
	req.ErrorIs(err, errors.ErrWriteRejected)
	listed, _, err := local.ListMessages(ctx, room.ID, nil)
	req.NoError(err)
	req.Empty(listed)

	// And an allowed role posts fine
	_, err = local.InsertMessage(ctx, draftFrom(room.ID, "dean", "welcome"))
	req.NoError(err)
}

func TestLocal_InsertMessage_Reply_Must_Target_Same_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	roomA, err := local.CreateRoom("room-a")
	req.NoError(err)
	roomB, err := local.CreateRoom("room-b")
	req.NoError(err)
	target, err := local.InsertMessage(ctx, draftFrom(roomA.ID, "alice", "original"))
	req.NoError(err)

	// Replying across rooms is rejected
	crossDraft := draftFrom(roomB.ID, "bob", "stolen reply")
	crossDraft.ReplyTo = target.ID
	_, err = local.InsertMessage(ctx, crossDraft)
	req.ErrorIs(err, errors.ErrWriteRejected)

	// Replying to a missing message is rejected
	ghostDraft := draftFrom(roomA.ID, "bob", "reply to nothing")
	ghostDraft.ReplyTo = "missing"
	_, err = local.InsertMessage(ctx, ghostDraft)
	req.ErrorIs(err, errors.ErrWriteRejected)

	// Replying in the same room works
	okDraft := draftFrom(roomA.ID, "bob", "on topic")
	okDraft.ReplyTo = target.ID
	row, err := local.InsertMessage(ctx, okDraft)
	req.NoError(err)
	req.Equal(target.ID, row.ReplyTo)
}

func TestLocal_UpdateMessage_Fans_Out(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("general")
	req.NoError(err)
	row, err := local.InsertMessage(ctx, draftFrom(room.ID, "alice", "first"))
	req.NoError(err)

	sink := &recordingSink{}
	handle, err := local.SubscribeToRoomChanges(ctx, room.ID, sink)
	req.NoError(err)
	defer handle.Close()

	updated, err := local.UpdateMessage(ctx, row.ID, "second")

	req.NoError(err)
	req.Equal("second", updated.Content)
	req.Equal(row.CreatedAt, updated.CreatedAt)

	events := sink.all()
	req.Len(events, 1)
	change := events[0].(event.ChangeEvent)
	req.Equal(event.Update, change.Type)
	req.Equal("second", change.Row.Content)
}

func TestLocal_DeleteMessage_Fans_Out(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("general")
	req.NoError(err)
	row, err := local.InsertMessage(ctx, draftFrom(room.ID, "alice", "going away"))
	req.NoError(err)

	sink := &recordingSink{}
	handle, err := local.SubscribeToRoomChanges(ctx, room.ID, sink)
	req.NoError(err)
	defer handle.Close()

	req.NoError(local.DeleteMessage(ctx, row.ID))

	events := sink.all()
	req.Len(events, 1)
	change := events[0].(event.ChangeEvent)
	req.Equal(event.Delete, change.Type)
	req.Equal(row.ID, change.Row.ID)

	req.ErrorIs(local.DeleteMessage(ctx, row.ID), errors.ErrNotFound)
}

func TestLocal_Handle_Close_Stops_Fanout(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("general")
	req.NoError(err)
	sink := &recordingSink{}
	handle, err := local.SubscribeToRoomChanges(ctx, room.ID, sink)
	req.NoError(err)

	// When the subscription is closed, twice for good measure
	req.NoError(handle.Close())
	req.NoError(handle.Close())

	_, err = local.InsertMessage(ctx, draftFrom(room.ID, "alice", "hello"))
	req.NoError(err)

	// Then nothing is delivered
	req.Empty(sink.all())
}

func TestLocal_Control_Channel_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)

	sink := &recordingSink{}
	handle, err := local.SubscribeToRoomChanges(ctx, domain.ControlRoom, sink)
	req.NoError(err)
	defer handle.Close()

	// When a flag flips and an announcement is posted
	req.NoError(local.SetFlag(ctx, "maintenance_banner", true))
	req.NoError(local.Announce(ctx, "Exam week", "Library open late"))

	// Then both arrive on the control channel in order
	events := sink.all()
	req.Len(events, 2)
	flag, ok := events[0].(event.FlagChanged)
	req.True(ok)
	req.Equal("maintenance_banner", flag.Name)
	req.True(flag.Enabled)
	ann, ok := events[1].(event.AnnouncementPosted)
	req.True(ok)
	req.Equal("Exam week", ann.Title)

	// And both are durable
	flags, err := local.Flags()
	req.NoError(err)
	req.True(flags["maintenance_banner"])
}

func TestLocal_DeleteRoom_Cascades_To_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	local := setupLocal(t)
	room, err := local.CreateRoom("doomed")
	req.NoError(err)
	row, err := local.InsertMessage(ctx, draftFrom(room.ID, "alice", "last words"))
	req.NoError(err)

	req.NoError(local.DeleteRoom(room.ID))

	rooms, err := local.ListRoomsForUser(ctx, "alice")
	req.NoError(err)
	req.Empty(rooms)
	listed, _, err := local.ListMessages(ctx, room.ID, nil)
	req.NoError(err)
	req.Empty(listed)
	_, err = local.InsertMessage(ctx, domain.Draft{RoomID: room.ID, AuthorID: "alice", AuthorName: "alice", Content: "too late", ReplyTo: row.ID})
	req.ErrorIs(err, errors.ErrNotFound)
}
