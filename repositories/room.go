//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"campus-chat/domain"
	"campus-chat/errors"
)

type IRoomRepository interface {
	Create(room domain.Room) error
	Get(id domain.RoomID) (domain.Room, error)
	Delete(id domain.RoomID) error
	FindOrCreateDirect(userA, userB string) (domain.RoomID, error)
	ListForUser(userID string) ([]domain.Room, error)
}

// RoomRepository keeps rooms under "room:{id}". Direct rooms additionally
// register a canonical pair key "dm:{min}:{max}" pointing at the room id;
// creating the pair key and the room in one Badger transaction is what
// makes find-or-create atomic. Concurrent creators for the same pair hit
// a transaction conflict and retry, after which the pair key exists and
// both observe the same room.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type diskRoom struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Name         string    `json:"name,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	AllowedRoles []string  `json:"allowed_roles,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r RoomRepository) Create(room domain.Room) error {
	bytes, err := json.Marshal(fromRoom(room))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), bytes)
	})
}

func (r RoomRepository) Get(id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			room, err = unmarshalRoom(val)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, fmt.Errorf("%w: room %s", errors.ErrNotFound, id)
	}
	return room, err
}

// Delete removes the room row and, for direct rooms, its pair key.
// Cascading the room's messages is the caller's responsibility.
func (r RoomRepository) Delete(id domain.RoomID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: room %s", errors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		var room domain.Room
		if err := item.Value(func(val []byte) error {
			room, err = unmarshalRoom(val)
			return err
		}); err != nil {
			return err
		}
		if room.Type == domain.RoomDirect && len(room.Participants) == 2 {
			if err := txn.Delete(pairKey(room.Participants[0], room.Participants[1])); err != nil {
				return err
			}
		}
		return txn.Delete(roomKey(id))
	})
}

// FindOrCreateDirect returns the direct room for the pair, creating it on
// first contact. Retries on transaction conflict so two concurrent callers
// for the same pair both observe exactly one room.
func (r RoomRepository) FindOrCreateDirect(userA, userB string) (domain.RoomID, error) {
	key := pairKey(userA, userB)
	for {
		var roomID domain.RoomID
		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err == nil {
				return item.Value(func(val []byte) error {
					roomID = domain.RoomID(val)
					return nil
				})
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			roomID = domain.RoomID(uuid.NewString())
			room := domain.Room{
				ID:           roomID,
				Type:         domain.RoomDirect,
				Participants: []string{userA, userB},
				CreatedAt:    time.Now().UTC(),
			}
			bytes, err := json.Marshal(fromRoom(room))
			if err != nil {
				return err
			}
			if err := txn.Set(roomKey(roomID), bytes); err != nil {
				return err
			}
			return txn.Set(key, []byte(roomID))
		})
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			return "", err
		}
		return roomID, nil
	}
}

// ListForUser scans all rooms and keeps public ones plus direct rooms the
// user participates in.
func (r RoomRepository) ListForUser(userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				room, err := unmarshalRoom(val)
				if err != nil {
					return err
				}
				if room.Type == domain.RoomPublic || room.HasParticipant(userID) {
					rooms = append(rooms, room)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rooms, err
}

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + string(id))
}

// pairKey is order-insensitive: the lexicographically smaller user comes
// first, so (a,b) and (b,a) address the same entry.
func pairKey(userA, userB string) []byte {
	if userB < userA {
		userA, userB = userB, userA
	}
	return []byte(fmt.Sprintf("dm:%s:%s", userA, userB))
}

func fromRoom(room domain.Room) diskRoom {
	roles := make([]string, 0, len(room.AllowedRoles))
	for _, role := range room.AllowedRoles {
		roles = append(roles, string(role))
	}
	return diskRoom{
		ID:           string(room.ID),
		Type:         string(room.Type),
		Name:         room.Name,
		Participants: room.Participants,
		AllowedRoles: roles,
		CreatedAt:    room.CreatedAt.UTC(),
	}
}

func unmarshalRoom(val []byte) (domain.Room, error) {
	var stored diskRoom
	if err := json.Unmarshal(val, &stored); err != nil {
		return domain.Room{}, err
	}
	roles := make([]domain.Role, 0, len(stored.AllowedRoles))
	for _, role := range stored.AllowedRoles {
		roles = append(roles, domain.Role(role))
	}
	return domain.Room{
		ID:           domain.RoomID(stored.ID),
		Type:         domain.RoomType(stored.Type),
		Name:         stored.Name,
		Participants: stored.Participants,
		AllowedRoles: roles,
		CreatedAt:    stored.CreatedAt.UTC(),
	}, nil
}
