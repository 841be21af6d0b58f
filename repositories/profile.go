//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"campus-chat/domain"
	"campus-chat/errors"
)

type IProfileRepository interface {
	Upsert(profile domain.Profile) error
	Get(userID string) (domain.Profile, error)
}

type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) ProfileRepository {
	return ProfileRepository{db: db}
}

type diskProfile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (p ProfileRepository) Upsert(profile domain.Profile) error {
	bytes, err := json.Marshal(diskProfile{
		UserID:      profile.UserID,
		DisplayName: profile.DisplayName,
		Role:        string(profile.Role),
		AvatarURL:   profile.AvatarURL,
	})
	if err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.UserID), bytes)
	})
}

func (p ProfileRepository) Get(userID string) (domain.Profile, error) {
	var stored diskProfile
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Profile{}, fmt.Errorf("%w: profile %s", errors.ErrNotFound, userID)
	}
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{
		UserID:      stored.UserID,
		DisplayName: stored.DisplayName,
		Role:        domain.Role(stored.Role),
		AvatarURL:   stored.AvatarURL,
	}, nil
}

func profileKey(userID string) []byte {
	return []byte("profile:" + userID)
}
