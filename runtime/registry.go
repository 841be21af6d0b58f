// Package runtime carries the in-process delivery machinery of the local
// backend: the subscriber registry and the supervised workers.
package runtime

import (
	"sync"

	"campus-chat/contract"
	"campus-chat/domain"
)

type set map[string]struct{}

// Registry tracks live change-feed subscribers per room. Each subscriber
// is keyed by an opaque subscription id so the same sink can be attached
// to several rooms without being managed twice.
type Registry struct {
	mu        sync.RWMutex
	sinks     map[string]contract.EventSink // subscription id -> sink
	roomSubs  map[domain.RoomID]set         // room -> subscription ids
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:    make(map[string]contract.EventSink),
		roomSubs: make(map[domain.RoomID]set),
	}
}

// SinksForRoom resolves the active sinks subscribed to a room.
// Returns nil if the room has no subscribers.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs, ok := r.roomSubs[roomID]
	if !ok {
		return nil
	}
	var active []contract.EventSink
	for subID := range subs {
		if sink, exists := r.sinks[subID]; exists {
			active = append(active, sink)
		}
	}
	return active
}

// Subscribe attaches a sink to a room under the given subscription id.
// The room entry is initialized on the fly if it does not exist yet.
func (r *Registry) Subscribe(subID string, roomID domain.RoomID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[subID] = sink
	if _, ok := r.roomSubs[roomID]; !ok {
		r.roomSubs[roomID] = make(set)
	}
	r.roomSubs[roomID][subID] = struct{}{}
}

// Unsubscribe removes a subscription. Empty room entries are dropped so
// the map does not grow with every room ever opened.
func (r *Registry) Unsubscribe(subID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, subID)
	if subs, ok := r.roomSubs[roomID]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(r.roomSubs, roomID)
		}
	}
}
