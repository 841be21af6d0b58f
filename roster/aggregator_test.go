package roster

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/domain/event"
)

type fixtureBackend struct {
	contract.Backend
	rooms    []domain.Room
	profiles map[string]domain.Profile
	listErr  error
}

func (b *fixtureBackend) ListRoomsForUser(_ context.Context, userID string) ([]domain.Room, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	var out []domain.Room
	for _, room := range b.rooms {
		if room.Type == domain.RoomPublic || room.HasParticipant(userID) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (b *fixtureBackend) LookupProfile(_ context.Context, userID string) (domain.Profile, error) {
	if profile, ok := b.profiles[userID]; ok {
		return profile, nil
	}
	return domain.Profile{}, fmt.Errorf("profile %s missing", userID)
}

func fixture() *fixtureBackend {
	return &fixtureBackend{
		rooms: []domain.Room{
			{ID: "announcements", Type: domain.RoomPublic, Name: "Announcements"},
			{ID: "dm-1", Type: domain.RoomDirect, Participants: []string{"alice", "bob"}},
			{ID: "dm-2", Type: domain.RoomDirect, Participants: []string{"alice", "ghost"}},
		},
		profiles: map[string]domain.Profile{
			"bob": {UserID: "bob", DisplayName: "Bob", Role: domain.RoleSenior},
		},
	}
}

func TestAggregator_List_EnrichesDirectRoomsWithCounterpart(t *testing.T) {
	req := require.New(t)
	aggregator := NewAggregator(fixture(), slog.Default())

	summaries, err := aggregator.List(context.Background(), "alice")
	req.NoError(err)
	req.Len(summaries, 3)

	// Public rooms come first under their own name
	req.Equal(domain.RoomID("announcements"), summaries[0].RoomID)
	req.Equal("Announcements", summaries[0].Name)
	req.Nil(summaries[0].Counterpart)

	// Direct rooms carry the counterpart display name and profile
	byRoom := make(map[domain.RoomID]RoomSummary)
	for _, s := range summaries {
		byRoom[s.RoomID] = s
	}
	req.Equal("Bob", byRoom["dm-1"].Name)
	req.NotNil(byRoom["dm-1"].Counterpart)
	req.Equal(domain.RoleSenior, byRoom["dm-1"].Counterpart.Role)
}

func TestAggregator_List_DegradesFailedLookupToPlaceholder(t *testing.T) {
	req := require.New(t)
	aggregator := NewAggregator(fixture(), slog.Default())

	// When one counterpart profile cannot be resolved
	summaries, err := aggregator.List(context.Background(), "alice")

	// Then the list still succeeds and only that entry degrades
	req.NoError(err)
	byRoom := make(map[domain.RoomID]RoomSummary)
	for _, s := range summaries {
		byRoom[s.RoomID] = s
	}
	req.Equal("Unknown User", byRoom["dm-2"].Name)
	req.Nil(byRoom["dm-2"].Counterpart)
}

func TestAggregator_List_SurfacesBackendFailure(t *testing.T) {
	req := require.New(t)
	backend := fixture()
	backend.listErr = fmt.Errorf("connection reset")
	aggregator := NewAggregator(backend, slog.Default())

	_, err := aggregator.List(context.Background(), "alice")
	req.Error(err)
}

func TestInvalidationSink_IgnoresOpenRoomTraffic(t *testing.T) {
	req := require.New(t)
	refreshed := 0
	sink := &InvalidationSink{
		OpenRoom: func() domain.RoomID { return "dm-1" },
		OnChange: func() { refreshed++ },
	}
	ctx := context.Background()

	// Traffic for the open room does not trigger a refresh
	req.NoError(sink.Consume(ctx, event.ChangeEvent{Row: domain.Message{RoomID: "dm-1"}}))
	req.Equal(0, refreshed)

	// Traffic elsewhere does
	req.NoError(sink.Consume(ctx, event.ChangeEvent{Row: domain.Message{RoomID: "dm-2"}}))
	req.Equal(1, refreshed)
}
