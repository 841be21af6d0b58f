package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ControlRepository persists the read-mostly broadcast state: feature
// flags and portal-wide announcements.
type ControlRepository struct {
	db *badger.DB
}

func NewControlRepository(db *badger.DB) ControlRepository {
	return ControlRepository{db: db}
}

type Announcement struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

func (c ControlRepository) SetFlag(name string, enabled bool) error {
	value := []byte("0")
	if enabled {
		value = []byte("1")
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(flagKey(name), value)
	})
}

func (c ControlRepository) Flags() (map[string]bool, error) {
	flags := make(map[string]bool)
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte("flag:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), "flag:")
			err := item.Value(func(val []byte) error {
				flags[name] = string(val) == "1"
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return flags, err
}

// StoreAnnouncement keys announcements by padded timestamp so a prefix
// scan returns them in posting order.
func (c ControlRepository) StoreAnnouncement(a Announcement) error {
	bytes, err := json.Marshal(a)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("ann:%019d:%s", a.At.UnixNano(), a.ID)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

func (c ControlRepository) ListAnnouncements() ([]Announcement, error) {
	var announcements []Announcement
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte("ann:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var a Announcement
				if err := json.Unmarshal(val, &a); err != nil {
					return err
				}
				announcements = append(announcements, a)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return announcements, err
}

func flagKey(name string) []byte {
	return []byte("flag:" + name)
}
