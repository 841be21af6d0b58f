// Package resolve finds or creates the unique direct room for a pair of
// users. The atomicity of find-or-create is the backend's guarantee; this
// side performs no locking of its own.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/errors"
)

type RoomResolver struct {
	backend contract.Backend
	log     *slog.Logger
}

func NewRoomResolver(backend contract.Backend, log *slog.Logger) *RoomResolver {
	return &RoomResolver{backend: backend, log: log}
}

// Resolve returns the direct room shared by the two users, creating it on
// first contact. Idempotent: every call for the same pair, in either
// order, yields the same room id.
func (r *RoomResolver) Resolve(ctx context.Context, userA, userB string) (domain.RoomID, error) {
	if userA == "" || userB == "" || userA == userB {
		return "", errors.ErrSelfDirectRoom
	}

	roomID, err := r.backend.FindOrCreateDirectRoom(ctx, userA, userB)
	if err != nil {
		return "", fmt.Errorf("%w: resolving direct room for %s and %s: %v",
			errors.ErrBackendUnavailable, userA, userB, err)
	}
	r.log.Debug("Direct room resolved", "room", roomID, "userA", userA, "userB", userB)
	return roomID, nil
}
