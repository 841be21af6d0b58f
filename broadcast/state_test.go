package broadcast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campus-chat/domain/event"
)

func TestState_Flag_Follows_Stream(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	state := NewState()

	// Given an unknown flag reads as disabled
	req.False(state.Flag("maintenance_banner"))

	// When the stream flips it on and off
	req.NoError(state.Consume(ctx, event.FlagChanged{Name: "maintenance_banner", Enabled: true, At: time.Now()}))
	req.True(state.Flag("maintenance_banner"))

	req.NoError(state.Consume(ctx, event.FlagChanged{Name: "maintenance_banner", Enabled: false, At: time.Now()}))
	req.False(state.Flag("maintenance_banner"))
}

func TestState_Seed_Then_Stream_Overrides(t *testing.T) {
	req := require.New(t)
	state := NewState()

	// Given a snapshot fetched before the stream was live
	state.Seed(map[string]bool{"polls": true, "dark_mode": false})
	req.True(state.Flag("polls"))

	// When a later event contradicts the snapshot
	req.NoError(state.Consume(context.Background(), event.FlagChanged{Name: "polls", Enabled: false, At: time.Now()}))

	// Then the stream wins
	req.False(state.Flag("polls"))
	req.False(state.Flag("dark_mode"))
}

func TestState_Announcements_Oldest_First(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	state := NewState()

	req.NoError(state.Consume(ctx, event.AnnouncementPosted{ID: "a1", Title: "Welcome", At: time.Now()}))
	req.NoError(state.Consume(ctx, event.AnnouncementPosted{ID: "a2", Title: "Exam week", At: time.Now()}))

	announcements := state.Announcements()
	req.Len(announcements, 2)
	req.Equal("Welcome", announcements[0].Title)
	req.Equal("Exam week", announcements[1].Title)
}

func TestState_Announcements_Are_Capped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	state := NewState()

	// Given more announcements than the retention window
	for i := 0; i < maxAnnouncements+10; i++ {
		req.NoError(state.Consume(ctx, event.AnnouncementPosted{
			ID:    fmt.Sprintf("a%d", i),
			Title: fmt.Sprintf("post %d", i),
			At:    time.Now(),
		}))
	}

	// Then only the newest window is retained
	announcements := state.Announcements()
	req.Len(announcements, maxAnnouncements)
	req.Equal("post 10", announcements[0].Title)
	req.Equal(fmt.Sprintf("post %d", maxAnnouncements+9), announcements[len(announcements)-1].Title)
}

func TestState_Ignores_Change_Events(t *testing.T) {
	req := require.New(t)
	state := NewState()

	// A regular room change on the same stream is not broadcast state
	req.NoError(state.Consume(context.Background(), event.ChangeEvent{Type: event.Insert}))

	req.Empty(state.Announcements())
}
