//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"campus-chat/domain"
	"campus-chat/errors"
)

type IMessageRepository interface {
	Store(msg domain.Message) error
	Get(id domain.MessageID) (domain.Message, error)
	Update(msg domain.Message) error
	Delete(id domain.MessageID) error
	List(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error)
	DeleteRoom(roomID domain.RoomID) error
}

type MessageRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limit *int) MessageRepository {
	return MessageRepository{db: db, log: log, limit: limit}
}

type diskMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole string    `json:"author_role"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment,omitempty"`
	ReplyTo    string    `json:"reply_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists a confirmed message under two keys:
//  1. "msg:{room}:{timestamp_padded}:{id}" — the 19-digit zero padding makes
//     a prefix scan return rows in chronological order, with the id as a
//     collision disconnector for same-nanosecond writes.
//  2. "msgid:{id}" — a pointer to the primary key, for id-based lookups.
func (m MessageRepository) Store(msg domain.Message) error {
	primary := messageKey(msg)
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, bytes); err != nil {
			return err
		}
		return txn.Set(pointerKey(msg.ID), primary)
	})
}

func (m MessageRepository) Get(id domain.MessageID) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		primary, err := resolvePointer(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			msg, err = unmarshalMessage(val)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
	}
	return msg, err
}

// Update rewrites the row in place. The primary key is stable because room
// and CreatedAt never change on edit.
func (m MessageRepository) Update(msg domain.Message) error {
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		primary, err := resolvePointer(txn, msg.ID)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, msg.ID)
		}
		if err != nil {
			return err
		}
		return txn.Set(primary, bytes)
	})
}

func (m MessageRepository) Delete(id domain.MessageID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		primary, err := resolvePointer(txn, id)
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(pointerKey(id))
	})
}

// List retrieves a page of messages for a room, newest first. Thanks to
// the padded timestamp in the key, a reverse prefix scan walks rows in
// reverse chronological order; the returned cursor resumes the next page.
func (m MessageRepository) List(roomID domain.RoomID, cursor *string) ([]domain.Message, *string, error) {
	var raw [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limit != nil && len(raw) == *m.limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		msg, err := unmarshalMessage(b)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
	}
	return messages, &lastKey, nil
}

// DeleteRoom removes every message of a room. Used by the cascade when a
// room is deleted.
func (m MessageRepository) DeleteRoom(roomID domain.RoomID) error {
	prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
	return m.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		var ids []domain.MessageID

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			keys = append(keys, item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				var stored diskMessage
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				ids = append(ids, domain.MessageID(stored.ID))
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := txn.Delete(pointerKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func messageKey(msg domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", msg.RoomID, msg.CreatedAt.UnixNano(), msg.ID))
}

func pointerKey(id domain.MessageID) []byte {
	return []byte("msgid:" + string(id))
}

func resolvePointer(txn *badger.Txn, id domain.MessageID) ([]byte, error) {
	item, err := txn.Get(pointerKey(id))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:         string(msg.ID),
		RoomID:     string(msg.RoomID),
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		AuthorRole: string(msg.AuthorRole),
		Content:    msg.Content,
		Attachment: msg.Attachment,
		ReplyTo:    string(msg.ReplyTo),
		CreatedAt:  msg.CreatedAt.UTC(),
	}
}

func unmarshalMessage(val []byte) (domain.Message, error) {
	var stored diskMessage
	if err := json.Unmarshal(val, &stored); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         domain.MessageID(stored.ID),
		RoomID:     domain.RoomID(stored.RoomID),
		AuthorID:   stored.AuthorID,
		AuthorName: stored.AuthorName,
		AuthorRole: domain.Role(stored.AuthorRole),
		Content:    stored.Content,
		Attachment: stored.Attachment,
		ReplyTo:    domain.MessageID(stored.ReplyTo),
		CreatedAt:  stored.CreatedAt.UTC(),
	}, nil
}
