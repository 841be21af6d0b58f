package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"campus-chat/domain"
)

func setupIndex(t *testing.T) *Index {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, writer.Close())
	})
	return NewIndex(writer, slog.Default())
}

func indexedMessage(roomID domain.RoomID, content string) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		RoomID:    roomID,
		AuthorID:  "alice",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func TestIndex_Add_And_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := setupIndex(t)

	match := indexedMessage("room-1", "thermodynamics study group tonight")
	req.NoError(index.Add(match))
	req.NoError(index.Add(indexedMessage("room-1", "bring snacks")))

	ids, err := index.Search(ctx, "room-1", "thermodynamics", 10)

	req.NoError(err)
	req.Equal([]domain.MessageID{match.ID}, ids)
}

func TestIndex_Search_Is_Scoped_To_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := setupIndex(t)

	here := indexedMessage("room-1", "thermodynamics notes")
	req.NoError(index.Add(here))
	req.NoError(index.Add(indexedMessage("room-2", "thermodynamics notes")))

	ids, err := index.Search(ctx, "room-1", "thermodynamics", 10)

	req.NoError(err)
	req.Equal([]domain.MessageID{here.ID}, ids)
}

func TestIndex_Skips_Pending_And_Local_Rows(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := setupIndex(t)

	pending := indexedMessage("room-1", "thermodynamics draft")
	pending.Pending = true
	req.NoError(index.Add(pending))

	local := indexedMessage("room-1", "thermodynamics draft")
	local.ID = domain.NewLocalID()
	req.NoError(index.Add(local))

	ids, err := index.Search(ctx, "room-1", "thermodynamics", 10)

	req.NoError(err)
	req.Empty(ids)
}

func TestIndex_Add_Replaces_On_Edit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := setupIndex(t)

	msg := indexedMessage("room-1", "thermodynamics notes")
	req.NoError(index.Add(msg))

	// When the message is edited and re-indexed
	msg.Content = "statistics notes"
	req.NoError(index.Add(msg))

	// Then the old terms no longer match and the new ones do
	ids, err := index.Search(ctx, "room-1", "thermodynamics", 10)
	req.NoError(err)
	req.Empty(ids)

	ids, err = index.Search(ctx, "room-1", "statistics", 10)
	req.NoError(err)
	req.Equal([]domain.MessageID{msg.ID}, ids)
}

func TestIndex_Remove_Drops_Document(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := setupIndex(t)

	msg := indexedMessage("room-1", "thermodynamics notes")
	req.NoError(index.Add(msg))

	req.NoError(index.Remove(msg.ID))

	ids, err := index.Search(ctx, "room-1", "thermodynamics", 10)
	req.NoError(err)
	req.Empty(ids)
}

func TestIndex_Search_Caps_At_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	index := setupIndex(t)

	for i := 0; i < 5; i++ {
		req.NoError(index.Add(indexedMessage("room-1", "thermodynamics again")))
	}

	ids, err := index.Search(ctx, "room-1", "thermodynamics", 3)

	req.NoError(err)
	req.Len(ids, 3)
}
