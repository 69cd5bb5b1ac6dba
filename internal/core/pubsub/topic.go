package pubsub

import (
	"sync"
	"sync/atomic"

	"github.com/colonyops/parley/internal/core/chat"
)

// Topic is the set of live subscriptions for one room. mu serializes
// fan-out against membership changes, so a publish sees a single
// consistent subscriber set.
type Topic struct {
	room chat.RoomID

	mu   sync.Mutex
	subs map[uint64]*Subscription

	// evicted is set under mu once the last subscription leaves. An evicted
	// topic never accepts subscriptions again.
	evicted atomic.Bool
}

func newTopic(room chat.RoomID) *Topic {
	return &Topic{
		room: room,
		subs: make(map[uint64]*Subscription),
	}
}

func (t *Topic) Room() chat.RoomID { return t.room }

// Len returns the number of registered subscriptions.
func (t *Topic) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
