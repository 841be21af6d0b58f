//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"campus-chat/domain"
	"campus-chat/domain/event"
)

// EventSink consumes change events pushed by the backend.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// SubscriptionHandle is the backend-side handle of one live change feed.
// Close releases it; after Close returns the backend stops delivering.
type SubscriptionHandle interface {
	Close() error
}

// Backend is the narrow remote-procedure surface of the hosting platform.
// Durable ordering, fan-out, persistence, and access control all live on
// the other side of this interface.
type Backend interface {
	// FindOrCreateDirectRoom atomically resolves the unique direct room
	// for a pair of users, creating it on first contact. Safe under
	// concurrent calls for the same pair.
	FindOrCreateDirectRoom(ctx context.Context, userA, userB string) (domain.RoomID, error)

	InsertMessage(ctx context.Context, draft domain.Draft) (domain.Message, error)
	UpdateMessage(ctx context.Context, id domain.MessageID, content string) (domain.Message, error)
	DeleteMessage(ctx context.Context, id domain.MessageID) error

	// ListMessages returns a page of messages for a room, newest first,
	// with an opaque cursor for the next page.
	ListMessages(ctx context.Context, roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)

	// SubscribeToRoomChanges registers interest in row-level events scoped
	// to one room. Events arrive in backend delivery order, once each.
	SubscribeToRoomChanges(ctx context.Context, roomID domain.RoomID, sink EventSink) (SubscriptionHandle, error)

	ListRoomsForUser(ctx context.Context, userID string) ([]domain.Room, error)
	LookupProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type WorkerName string

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}
