// Package projection derives display state from the reconciled message
// collection. Pure mapping: no network, no mutable state, deterministic
// for a given input, which is what snapshot tests rely on.
package projection

import (
	"time"

	"github.com/samber/lo"

	"campus-chat/domain"
)

const (
	replyExcerptRunes = 80

	// Shown when a reply references a message that was deleted since.
	replyUnavailable = "original message unavailable"
)

type ReplyPreview struct {
	AuthorName  string
	Excerpt     string
	Unavailable bool
}

// DisplayGroup is one rendered message: classified own/other, badged by
// author role, with its reply reference resolved to a short preview.
type DisplayGroup struct {
	MessageID  domain.MessageID
	Own        bool
	AuthorName string
	Badge      string
	Content    string
	Attachment string
	Pending    bool
	SentAt     time.Time
	Reply      *ReplyPreview
}

// Render maps a message collection to display groups, in the order given.
// The collection is expected ascending by CreatedAt; Render preserves it.
func Render(messages []domain.Message, currentUserID string) []DisplayGroup {
	byID := lo.KeyBy(messages, func(m domain.Message) domain.MessageID { return m.ID })

	return lo.Map(messages, func(m domain.Message, _ int) DisplayGroup {
		return DisplayGroup{
			MessageID:  m.ID,
			Own:        m.AuthorID == currentUserID,
			AuthorName: m.AuthorName,
			Badge:      Badge(m.AuthorRole),
			Content:    m.Content,
			Attachment: m.Attachment,
			Pending:    m.Pending,
			SentAt:     m.CreatedAt,
			Reply:      replyPreview(m, byID),
		}
	})
}

// Badge returns the role badge text shown next to the author name.
func Badge(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "ADMIN"
	case domain.RoleSenior:
		return "SENIOR"
	case domain.RoleStudent:
		return "STUDENT"
	default:
		return ""
	}
}

func replyPreview(m domain.Message, byID map[domain.MessageID]domain.Message) *ReplyPreview {
	if m.ReplyTo == "" {
		return nil
	}
	target, ok := byID[m.ReplyTo]
	if !ok {
		return &ReplyPreview{Excerpt: replyUnavailable, Unavailable: true}
	}
	return &ReplyPreview{
		AuthorName: target.AuthorName,
		Excerpt:    excerpt(target.Content),
	}
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= replyExcerptRunes {
		return content
	}
	return string(runes[:replyExcerptRunes]) + "…"
}
