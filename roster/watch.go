package roster

import (
	"context"

	"campus-chat/domain"
	"campus-chat/domain/event"
)

// InvalidationSink turns change events into refresh triggers for the
// conversation list. Events for the currently open room are ignored; the
// open view already consumes those.
type InvalidationSink struct {
	OpenRoom func() domain.RoomID
	OnChange func()
}

func (s *InvalidationSink) Consume(_ context.Context, e event.DomainEvent) error {
	if s.OpenRoom != nil && e.RoomID() == s.OpenRoom() {
		return nil
	}
	if s.OnChange != nil {
		s.OnChange()
	}
	return nil
}
