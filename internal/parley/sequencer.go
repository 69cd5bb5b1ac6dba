package parley

import (
	"sync"

	"github.com/colonyops/parley/internal/core/chat"
)

// sequencer hands out one mutex per room. A room's entry lives only while
// some sender holds or waits for it.
type sequencer struct {
	mu    sync.Mutex
	rooms map[chat.RoomID]*roomLock
}

type roomLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the caller owns room and returns the matching unlock.
func (s *sequencer) lock(room chat.RoomID) (unlock func()) {
	s.mu.Lock()
	if s.rooms == nil {
		s.rooms = make(map[chat.RoomID]*roomLock)
	}
	l := s.rooms[room]
	if l == nil {
		l = &roomLock{}
		s.rooms[room] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.rooms, room)
		}
		s.mu.Unlock()
	}
}

// len returns the number of rooms with a held or awaited lock.
func (s *sequencer) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
