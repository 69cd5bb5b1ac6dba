package pubsub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/colonyops/parley/internal/core/chat"
)

// DefaultQueueSize is the per-subscription queue capacity used when none is
// configured.
const DefaultQueueSize = 64

// OverflowPolicy decides what a full subscription queue discards.
type OverflowPolicy string

const (
	// DropOldest evicts the head of the queue and appends the new message.
	DropOldest OverflowPolicy = "drop-oldest"
	// DropNewest discards the incoming message.
	DropNewest OverflowPolicy = "drop-newest"
)

func (p OverflowPolicy) String() string { return string(p) }

// ParseOverflowPolicy parses a policy name. The empty string yields
// DropOldest.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case "", DropOldest:
		return DropOldest, nil
	case DropNewest:
		return DropNewest, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q (want %q or %q)", s, DropOldest, DropNewest)
	}
}

type subscribeOptions struct {
	queueSize int
	policy    OverflowPolicy
}

// SubscribeOption overrides the registry defaults for one subscription.
type SubscribeOption func(*subscribeOptions)

func WithQueueSize(n int) SubscribeOption {
	return func(o *subscribeOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithOverflowPolicy(p OverflowPolicy) SubscribeOption {
	return func(o *subscribeOptions) {
		if p != "" {
			o.policy = p
		}
	}
}

// Subscription is one consumer's registration on a topic. Any number of
// publishers may offer to it concurrently; a single consumer reads with
// Next.
type Subscription struct {
	id       uint64
	room     chat.RoomID
	policy   OverflowPolicy
	registry *Registry
	topic    *Topic

	mu     sync.Mutex
	buf    []chat.Message // ring buffer, len(buf) is the capacity
	head   int
	size   int
	closed bool

	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newSubscription(r *Registry, id uint64, room chat.RoomID, o subscribeOptions) *Subscription {
	return &Subscription{
		id:       id,
		room:     room,
		policy:   o.policy,
		registry: r,
		buf:      make([]chat.Message, o.queueSize),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *Subscription) ID() uint64             { return s.id }
func (s *Subscription) Room() chat.RoomID      { return s.room }
func (s *Subscription) Policy() OverflowPolicy { return s.policy }
func (s *Subscription) Cap() int               { return len(s.buf) }
func (s *Subscription) Dropped() uint64        { return s.dropped.Load() }
func (s *Subscription) Done() <-chan struct{}  { return s.done }

// Len returns the number of queued messages.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// offer enqueues msg without blocking. On overflow it returns the message
// the policy discarded: the evicted head under DropOldest, msg itself under
// DropNewest. Offers to a closed subscription are ignored.
func (s *Subscription) offer(msg chat.Message) (dropped chat.Message, overflow bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chat.Message{}, false
	}

	if s.size == len(s.buf) {
		overflow = true
		s.dropped.Add(1)
		if s.policy == DropNewest {
			s.mu.Unlock()
			return msg, true
		}
		dropped = s.buf[s.head]
		s.buf[s.head] = chat.Message{}
		s.head = (s.head + 1) % len(s.buf)
		s.size--
	}

	s.buf[(s.head+s.size)%len(s.buf)] = msg
	s.size++
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return dropped, overflow
}

// Next blocks until a message is queued, the subscription is closed or ctx
// is done. A closed subscription returns chat.ErrSubscriptionClosed even if
// messages were still queued.
func (s *Subscription) Next(ctx context.Context) (chat.Message, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return chat.Message{}, chat.ErrSubscriptionClosed
		}
		if s.size > 0 {
			msg := s.buf[s.head]
			s.buf[s.head] = chat.Message{}
			s.head = (s.head + 1) % len(s.buf)
			s.size--
			s.mu.Unlock()
			return msg, nil
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.done:
		case <-ctx.Done():
			return chat.Message{}, ctx.Err()
		}
	}
}

// Close cancels the subscription and removes it from its topic. Only the
// first call has any effect.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		clear(s.buf)
		s.head, s.size = 0, 0
		s.mu.Unlock()

		close(s.done)
		s.registry.remove(s)
	})
}
