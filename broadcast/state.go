// Package broadcast mirrors backend-pushed global state: feature flags
// and announcements. It reuses the change-subscription machinery; the
// control channel is just another room id from the stream's point of view.
package broadcast

import (
	"context"
	"sync"
	"time"

	"campus-chat/domain/event"
)

const maxAnnouncements = 50

type Announcement struct {
	ID    string
	Title string
	Body  string
	At    time.Time
}

// State is an EventSink holding the latest broadcast snapshot. Subscribe
// it to domain.ControlRoom and read it from anywhere.
type State struct {
	mu            sync.RWMutex
	flags         map[string]bool
	announcements []Announcement
}

func NewState() *State {
	return &State{flags: make(map[string]bool)}
}

func (s *State) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.FlagChanged:
		s.mu.Lock()
		s.flags[evt.Name] = evt.Enabled
		s.mu.Unlock()
	case event.AnnouncementPosted:
		s.mu.Lock()
		s.announcements = append(s.announcements, Announcement{
			ID:    evt.ID,
			Title: evt.Title,
			Body:  evt.Body,
			At:    evt.At,
		})
		if len(s.announcements) > maxAnnouncements {
			s.announcements = s.announcements[len(s.announcements)-maxAnnouncements:]
		}
		s.mu.Unlock()
	}
	return nil
}

// Flag reports a feature flag, defaulting to disabled when unknown.
func (s *State) Flag(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}

// Seed replaces the flag snapshot, typically from an initial fetch before
// the stream is live.
func (s *State) Seed(flags map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, enabled := range flags {
		s.flags[name] = enabled
	}
}

// Announcements returns the retained announcements, oldest first.
func (s *State) Announcements() []Announcement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Announcement, len(s.announcements))
	copy(out, s.announcements)
	return out
}
