// Package store holds the per-room ordered message collection and
// reconciles optimistic local writes against the authoritative rows the
// backend confirms or pushes over the change stream.
package store

import (
	"sort"
	"sync"
	"time"

	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
)

// Store is the message collection of one open room. A single UI context
// owns it, but change-stream deliveries arrive on their own goroutine, so
// every operation takes the lock.
//
// Invariant: messages are sorted by CreatedAt ascending at all times, and
// no two entries ever represent the same logical message. Pending entries
// use the local insertion time as a stand-in CreatedAt until reconciled.
type Store struct {
	mu       sync.Mutex
	roomID   domain.RoomID
	messages []domain.Message
	now      func() time.Time
}

func New(roomID domain.RoomID) *Store {
	return &Store{roomID: roomID, now: time.Now}
}

// WithClock replaces the clock used for pending stand-in timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) RoomID() domain.RoomID {
	return s.roomID
}

// Load replaces the collection with a fetched history page. The backend
// serves pages newest first; the collection is kept ascending.
func (s *Store) Load(history []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]domain.Message, len(history))
	copy(s.messages, history)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
}

// Append inserts a locally-authored message immediately, flagged pending,
// under a provisional id. The caller issues the persist request to the
// backend concurrently and follows up with Reconcile or Rollback.
func (s *Store) Append(draft domain.Draft) domain.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID := domain.NewLocalID()
	s.insertSorted(domain.Message{
		ID:         localID,
		RoomID:     s.roomID,
		AuthorID:   draft.AuthorID,
		AuthorName: draft.AuthorName,
		AuthorRole: draft.AuthorRole,
		Content:    draft.Content,
		Attachment: draft.Attachment,
		ReplyTo:    draft.ReplyTo,
		CreatedAt:  s.now().UTC(),
		Pending:    true,
	})
	return localID
}

// Reconcile replaces the pending entry with the authoritative server row.
// If the change stream already delivered the row, the pending entry is
// dropped instead, so the logical message keeps a single entry. A row for
// a store that never saw the pending entry (room was reopened while the
// persist call was in flight) is inserted as a regular confirmed message.
func (s *Store) Reconcile(localID domain.MessageID, row domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row.Pending = false
	localIdx := s.indexOf(localID)
	serverIdx := s.indexOf(row.ID)

	switch {
	case localIdx >= 0 && serverIdx >= 0:
		// Stream won the race; keep the confirmed entry only.
		s.messages = append(s.messages[:localIdx], s.messages[localIdx+1:]...)
		if serverIdx > localIdx {
			serverIdx--
		}
		s.messages[serverIdx] = row
	case localIdx >= 0:
		s.messages[localIdx] = row
	case serverIdx >= 0:
		s.messages[serverIdx] = row
	default:
		s.insertSorted(row)
		return nil
	}

	// The authoritative CreatedAt can differ from the local stand-in.
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	return nil
}

// Rollback removes a pending entry after a failed persist call. The caller
// is responsible for surfacing the failure to the user.
func (s *Store) Rollback(localID domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(localID)
	if idx < 0 {
		return errors.ErrUnknownLocalID
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	return nil
}

// ApplyRemoteEvent folds one change-stream delivery into the collection.
// An insert for a server id that is already present (from Reconcile) is a
// no-op, which is what keeps the optimistic-then-broadcast path free of
// duplicates.
func (s *Store) ApplyRemoteEvent(e event.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Row.RoomID != s.roomID {
		return
	}

	switch e.Type {
	case event.Insert:
		if s.indexOf(e.Row.ID) >= 0 {
			return
		}
		row := e.Row
		row.Pending = false
		s.insertSorted(row)
	case event.Update:
		if idx := s.indexOf(e.Row.ID); idx >= 0 {
			row := e.Row
			row.Pending = false
			s.messages[idx] = row
		}
	case event.Delete:
		if idx := s.indexOf(e.Row.ID); idx >= 0 {
			s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		}
	}
}

// Get returns the message with the given id, if present.
func (s *Store) Get(id domain.MessageID) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(id); idx >= 0 {
		return s.messages[idx], true
	}
	return domain.Message{}, false
}

// Snapshot returns a copy of the collection, ascending by CreatedAt.
func (s *Store) Snapshot() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// insertSorted places msg at the first position keeping CreatedAt
// ascending. Equal timestamps keep insertion order, so two back-to-back
// sends by the same author stay visually stable.
func (s *Store) insertSorted(msg domain.Message) {
	idx := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].CreatedAt.After(msg.CreatedAt)
	})
	s.messages = append(s.messages, domain.Message{})
	copy(s.messages[idx+1:], s.messages[idx:])
	s.messages[idx] = msg
}

func (s *Store) indexOf(id domain.MessageID) int {
	for i, m := range s.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}
