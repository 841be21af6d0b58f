package subscribe

import (
	"context"
	"log/slog"
	"time"

	"campus-chat/contract"
	"campus-chat/domain"
)

// Resubscriber keeps one room's change feed alive. When the subscribe call
// fails it retries with exponential backoff instead of crashing the view;
// until it succeeds the room simply is not live-updating.
//
// It runs under the supervisor like any other worker.
type Resubscriber struct {
	manager *Manager
	roomID  domain.RoomID
	sink    contract.EventSink
	initial time.Duration
	max     time.Duration
	log     *slog.Logger
}

func NewResubscriber(manager *Manager, roomID domain.RoomID, sink contract.EventSink,
	initial, max time.Duration, log *slog.Logger) *Resubscriber {
	return &Resubscriber{
		manager: manager,
		roomID:  roomID,
		sink:    sink,
		initial: initial,
		max:     max,
		log:     log,
	}
}

func (w *Resubscriber) Run(ctx context.Context) error {
	delay := w.initial
	for {
		sub, err := w.manager.Open(ctx, w.roomID, w.sink)
		if err == nil {
			<-ctx.Done()
			sub.Close()
			return nil
		}

		w.log.Warn("Subscribe failed, backing off", "room", w.roomID, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, w.max)
	}
}
