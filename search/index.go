// Package search maintains a full-text index of confirmed messages, one
// document per server id. Pending messages are never indexed; index
// updates ride the same change events the message store consumes, so the
// index converges with the room's authoritative state.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"

	"campus-chat/domain"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Add indexes a confirmed message, replacing any previous document with
// the same server id. Safe to call again after an edit.
func (i *Index) Add(msg domain.Message) error {
	if msg.Pending || msg.ID.IsLocal() {
		return nil
	}
	doc := bluge.NewDocument(string(msg.ID)).
		AddField(bluge.NewKeywordField("room", string(msg.RoomID)).StoreValue()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("author", msg.AuthorID).StoreValue()).
		AddField(bluge.NewDateTimeField("at", msg.CreatedAt))
	return i.writer.Update(doc.ID(), doc)
}

// Remove drops a deleted message from the index.
func (i *Index) Remove(id domain.MessageID) error {
	return i.writer.Delete(bluge.Identifier(string(id)))
}

// Search returns the ids of messages in the room matching terms, best
// score first, capped at limit.
func (i *Index) Search(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]domain.MessageID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Index reader close failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(roomID)).SetField("room"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("searching room %s: %w", roomID, err)
	}

	var ids []domain.MessageID
	for {
		match, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, domain.MessageID(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
