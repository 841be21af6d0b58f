// Package roster builds the conversation list shown alongside the open
// room: public rooms plus the user's direct rooms, each with a
// human-readable display name.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/errors"
)

// Shown when the counterpart profile of a direct room cannot be resolved.
const unknownUser = "Unknown User"

type RoomSummary struct {
	RoomID domain.RoomID
	Type   domain.RoomType

	// Name is the room name for public rooms and the counterpart's
	// display name for direct rooms.
	Name string

	// Counterpart is set on direct rooms whose profile lookup succeeded.
	Counterpart *domain.Profile
}

type Aggregator struct {
	backend contract.Backend
	log     *slog.Logger
}

func NewAggregator(backend contract.Backend, log *slog.Logger) *Aggregator {
	return &Aggregator{backend: backend, log: log}
}

// List returns a point-in-time snapshot of the user's rooms. A profile
// lookup failing for one counterpart degrades that entry to a placeholder
// name instead of failing the whole list.
func (a *Aggregator) List(ctx context.Context, userID string) ([]RoomSummary, error) {
	rooms, err := a.backend.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing rooms for %s: %v", errors.ErrBackendUnavailable, userID, err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, a.summarize(ctx, userID, room))
	}

	// Public rooms first, then direct rooms, each block by name.
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Type != summaries[j].Type {
			return summaries[i].Type == domain.RoomPublic
		}
		return summaries[i].Name < summaries[j].Name
	})
	return summaries, nil
}

func (a *Aggregator) summarize(ctx context.Context, userID string, room domain.Room) RoomSummary {
	summary := RoomSummary{RoomID: room.ID, Type: room.Type, Name: room.Name}
	if room.Type != domain.RoomDirect {
		return summary
	}

	other, ok := room.Counterpart(userID)
	if !ok {
		summary.Name = unknownUser
		return summary
	}
	profile, err := a.backend.LookupProfile(ctx, other)
	if err != nil {
		a.log.Warn("Counterpart profile lookup failed", "room", room.ID, "user", other, "error", err)
		summary.Name = unknownUser
		return summary
	}
	summary.Name = profile.DisplayName
	summary.Counterpart = &profile
	return summary
}
