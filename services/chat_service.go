package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
	"campus-chat/moderation"
	"campus-chat/projection"
	"campus-chat/resolve"
	"campus-chat/search"
	"campus-chat/store"
	"campus-chat/subscribe"
)

type IChatService interface {
	OpenRoom(ctx context.Context, roomID domain.RoomID) error
	StartDirect(ctx context.Context, userID, otherID string) (domain.RoomID, error)
	Send(ctx context.Context, draft domain.Draft) (domain.Message, error)
	Edit(ctx context.Context, id domain.MessageID, content string) error
	Delete(ctx context.Context, id domain.MessageID) error
	Render(currentUserID string) []projection.DisplayGroup
	Close()
}

// ChatService drives one conversation view: it resolves rooms, owns the
// active room's message store, keeps exactly one change subscription open,
// and reconciles optimistic sends against backend confirmations.
type ChatService struct {
	log      *slog.Logger
	backend  contract.Backend
	resolver *resolve.RoomResolver
	subs     *subscribe.Manager
	censor   *moderation.Censor
	index    *search.Index
	validate *validator.Validate

	mu    sync.Mutex
	store *store.Store
}

func NewChatService(backend contract.Backend, log *slog.Logger) *ChatService {
	return &ChatService{
		log:      log,
		backend:  backend,
		resolver: resolve.NewRoomResolver(backend, log),
		subs:     subscribe.NewManager(backend, log),
		validate: validator.New(),
	}
}

// WithCensor screens outgoing content before it is persisted.
func (s *ChatService) WithCensor(censor *moderation.Censor) *ChatService {
	s.censor = censor
	return s
}

// WithIndex keeps a full-text index in sync with confirmed messages.
func (s *ChatService) WithIndex(index *search.Index) *ChatService {
	s.index = index
	return s
}

// OpenRoom loads the room's history and switches the live subscription to
// it. The previous room's subscription is closed before the new one opens,
// so events are never delivered twice and no listener leaks.
//
// A failed subscribe leaves the room open but not live-updating; the
// returned error wraps ErrSubscriptionFailed so the caller can retry, for
// instance through a supervised Resubscriber.
func (s *ChatService) OpenRoom(ctx context.Context, roomID domain.RoomID) error {
	history, _, err := s.backend.ListMessages(ctx, roomID, nil)
	if err != nil {
		return fmt.Errorf("%w: loading history of room %s: %v", errors.ErrBackendUnavailable, roomID, err)
	}

	st := store.New(roomID)
	st.Load(history)

	s.mu.Lock()
	s.store = st
	s.mu.Unlock()

	if _, err := s.subs.Open(ctx, roomID, s.Sink()); err != nil {
		s.log.Warn("Room opened without live updates", "room", roomID, "error", err)
		return err
	}
	return nil
}

// StartDirect resolves the direct room for the pair and opens it.
// Repeating the call navigates to the same room.
func (s *ChatService) StartDirect(ctx context.Context, userID, otherID string) (domain.RoomID, error) {
	roomID, err := s.resolver.Resolve(ctx, userID, otherID)
	if err != nil {
		return "", err
	}
	if err := s.OpenRoom(ctx, roomID); err != nil {
		return roomID, err
	}
	return roomID, nil
}

// Send shows the draft immediately as pending, persists it, and reconciles
// the pending entry with the authoritative row. On failure the pending
// entry is rolled back and the error surfaces to the caller; a send never
// stays in pending limbo.
func (s *ChatService) Send(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	if err := s.validate.Struct(draft); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrWriteRejected, err)
	}
	if s.censor != nil {
		draft.Content = s.censor.Clean(draft.Content)
	}

	st := s.activeStore()
	if st == nil || st.RoomID() != draft.RoomID {
		return domain.Message{}, fmt.Errorf("%w: room %s is not open", errors.ErrNotFound, draft.RoomID)
	}

	localID := st.Append(draft)
	row, err := s.backend.InsertMessage(ctx, draft)
	if err != nil {
		if rbErr := st.Rollback(localID); rbErr != nil {
			s.log.Warn("Rollback after failed send", "room", draft.RoomID, "error", rbErr)
		}
		return domain.Message{}, classify(err, "sending message")
	}

	if err := st.Reconcile(localID, row); err != nil {
		return domain.Message{}, err
	}
	s.indexAdd(row)
	return row, nil
}

// Edit rewrites a message's content. Local state converges through the
// change stream's update event.
func (s *ChatService) Edit(ctx context.Context, id domain.MessageID, content string) error {
	if _, err := s.backend.UpdateMessage(ctx, id, content); err != nil {
		return classify(err, "editing message")
	}
	return nil
}

// Delete removes a message. Local state converges through the change
// stream's delete event.
func (s *ChatService) Delete(ctx context.Context, id domain.MessageID) error {
	if err := s.backend.DeleteMessage(ctx, id); err != nil {
		return classify(err, "deleting message")
	}
	return nil
}

// Search returns ids of indexed messages in the active room matching terms.
func (s *ChatService) Search(ctx context.Context, terms string, limit int) ([]domain.MessageID, error) {
	st := s.activeStore()
	if s.index == nil || st == nil {
		return nil, nil
	}
	return s.index.Search(ctx, st.RoomID(), terms, limit)
}

func (s *ChatService) ActiveRoom() domain.RoomID {
	if st := s.activeStore(); st != nil {
		return st.RoomID()
	}
	return ""
}

// Messages returns the active room's collection, ascending by CreatedAt.
func (s *ChatService) Messages() []domain.Message {
	if st := s.activeStore(); st != nil {
		return st.Snapshot()
	}
	return nil
}

// Render derives the display groups for the active room.
func (s *ChatService) Render(currentUserID string) []projection.DisplayGroup {
	return projection.Render(s.Messages(), currentUserID)
}

// Sink returns the event sink feeding the active room. It binds lazily,
// so the same sink stays valid across room switches and can back a
// supervised Resubscriber.
func (s *ChatService) Sink() contract.EventSink {
	return &serviceSink{svc: s}
}

// Close releases the live subscription. Safe to call more than once.
func (s *ChatService) Close() {
	s.subs.Close()
}

func (s *ChatService) activeStore() *store.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

func (s *ChatService) apply(e event.ChangeEvent) {
	st := s.activeStore()
	if st == nil || e.Row.RoomID != st.RoomID() {
		return
	}
	st.ApplyRemoteEvent(e)

	switch e.Type {
	case event.Insert, event.Update:
		s.indexAdd(e.Row)
	case event.Delete:
		if s.index != nil {
			if err := s.index.Remove(e.Row.ID); err != nil {
				s.log.Warn("Index removal failed", "message", e.Row.ID, "error", err)
			}
		}
	}
}

func (s *ChatService) indexAdd(row domain.Message) {
	if s.index == nil {
		return
	}
	if err := s.index.Add(row); err != nil {
		s.log.Warn("Indexing failed", "message", row.ID, "error", err)
	}
}

type serviceSink struct {
	svc *ChatService
}

func (k *serviceSink) Consume(_ context.Context, e event.DomainEvent) error {
	if change, ok := e.(event.ChangeEvent); ok {
		k.svc.apply(change)
	}
	return nil
}

// classify keeps backend-originated sentinels and folds everything else
// into ErrBackendUnavailable.
func classify(err error, action string) error {
	if stderrors.Is(err, errors.ErrWriteRejected) || stderrors.Is(err, errors.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", errors.ErrBackendUnavailable, action, err)
}
