// Package subscribe manages the change-stream lifecycle: one live
// subscription per open room context, subscribe on open, guaranteed
// release on close.
package subscribe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"campus-chat/contract"
	"campus-chat/domain"
	"campus-chat/domain/event"
	"campus-chat/errors"
)

// Manager owns at most one live room subscription. Opening a new one while
// switching rooms closes the prior subscription first, so no listener is
// leaked and no event is delivered twice.
type Manager struct {
	backend contract.Backend
	log     *slog.Logger

	mu      sync.Mutex
	current *Subscription
}

func NewManager(backend contract.Backend, log *slog.Logger) *Manager {
	return &Manager{backend: backend, log: log}
}

// Open subscribes sink to roomID's change feed. Any previously open
// subscription is closed before the new one is established.
func (m *Manager) Open(ctx context.Context, roomID domain.RoomID, sink contract.EventSink) (*Subscription, error) {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	sub := &Subscription{roomID: roomID, log: m.log}
	handle, err := m.backend.SubscribeToRoomChanges(ctx, roomID, &guardedSink{sub: sub, next: sink})
	if err != nil {
		return nil, fmt.Errorf("%w: room %s: %v", errors.ErrSubscriptionFailed, roomID, err)
	}
	sub.handle = handle

	m.mu.Lock()
	m.current = sub
	m.mu.Unlock()
	m.log.Debug("Subscription opened", "room", roomID)
	return sub, nil
}

// Close releases the current subscription, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	sub := m.current
	m.current = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

// Subscription is the client-side handle of one live change feed.
type Subscription struct {
	roomID domain.RoomID
	log    *slog.Logger
	handle contract.SubscriptionHandle

	stateMu   sync.Mutex
	closed    bool
	deliverMu sync.Mutex
}

func (s *Subscription) RoomID() domain.RoomID {
	return s.roomID
}

// Close is idempotent. When it returns, no further events reach the sink:
// a delivery racing with Close is either completed before Close returns or
// dropped, never delivered late.
func (s *Subscription) Close() {
	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return
	}
	s.closed = true
	handle := s.handle
	s.stateMu.Unlock()

	if handle != nil {
		if err := handle.Close(); err != nil {
			s.log.Warn("Backend handle close failed", "room", s.roomID, "error", err)
		}
	}

	// Wait out any delivery that was already past the closed check.
	s.deliverMu.Lock()
	s.deliverMu.Unlock() //nolint:staticcheck
	s.log.Debug("Subscription closed", "room", s.roomID)
}

func (s *Subscription) isClosed() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closed
}

// guardedSink drops deliveries once the subscription is closed and
// serializes them so Close can wait for the in-flight one.
type guardedSink struct {
	sub  *Subscription
	next contract.EventSink
}

func (g *guardedSink) Consume(ctx context.Context, e event.DomainEvent) error {
	g.sub.deliverMu.Lock()
	defer g.sub.deliverMu.Unlock()

	if g.sub.isClosed() {
		return nil
	}
	return g.next.Consume(ctx, e)
}
