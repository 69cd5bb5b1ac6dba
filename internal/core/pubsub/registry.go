// Package pubsub implements parley's in-process fan-out: a registry of
// per-room topics, each holding the live subscriptions of that room.
package pubsub

import (
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/colonyops/parley/internal/core/chat"
)

const shardCount = 32

var ErrRegistryClosed = errors.New("registry closed")

// Registry maps rooms to topics. Topics are created on the first subscribe
// and evicted when their last subscription leaves.
//
// The topic map is split into shards so that lookups for unrelated rooms
// rarely share a lock, and no shard lock is ever held while a topic lock is
// taken.
type Registry struct {
	shards [shardCount]shard
	hooks  hooks

	mu        sync.RWMutex // guards closed, queueSize, policy
	closed    bool
	queueSize int
	policy    OverflowPolicy

	nextID        atomic.Uint64
	subscriptions atomic.Int64
	published     atomic.Uint64
	delivered     atomic.Uint64
	dropped       atomic.Uint64
}

type shard struct {
	mu     sync.Mutex
	topics map[chat.RoomID]*Topic
}

// Stats is a point-in-time snapshot of registry counters.
type Stats struct {
	Topics        int    `json:"topics"`
	Subscriptions int64  `json:"subscriptions"`
	Published     uint64 `json:"published"`
	Delivered     uint64 `json:"delivered"`
	Dropped       uint64 `json:"dropped"`
}

// New creates a registry whose subscriptions default to the given queue
// size and overflow policy.
func New(queueSize int, policy OverflowPolicy) *Registry {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if policy == "" {
		policy = DropOldest
	}

	r := &Registry{
		queueSize: queueSize,
		policy:    policy,
	}
	for i := range r.shards {
		r.shards[i].topics = make(map[chat.RoomID]*Topic)
	}
	return r
}

// SetDefaults changes the queue size and policy used by subscriptions
// created afterwards. Existing subscriptions keep their settings.
func (r *Registry) SetDefaults(queueSize int, policy OverflowPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if queueSize > 0 {
		r.queueSize = queueSize
	}
	if policy != "" {
		r.policy = policy
	}
}

// Subscribe registers a new subscription for room.
func (r *Registry) Subscribe(room chat.RoomID, opts ...SubscribeOption) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	o := subscribeOptions{queueSize: r.queueSize, policy: r.policy}
	for _, opt := range opts {
		opt(&o)
	}

	sub := newSubscription(r, r.nextID.Add(1), room, o)

	for {
		t := r.getOrCreate(room)
		t.mu.Lock()
		if t.evicted.Load() {
			// Lost a race with the last unsubscribe; the next lookup
			// replaces the dead topic.
			t.mu.Unlock()
			continue
		}
		t.subs[sub.id] = sub
		sub.topic = t
		t.mu.Unlock()
		break
	}

	r.subscriptions.Add(1)
	r.hooks.runOnSubscribe(sub)
	return sub, nil
}

// Unsubscribe removes sub from its topic. It is safe to call any number of
// times.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Close()
}

// Publish offers msg to every subscription registered for room at the time
// the topic is locked. It never blocks on a consumer and returns the number
// of subscriptions the message was offered to. A room without subscribers
// is a no-op.
func (r *Registry) Publish(room chat.RoomID, msg chat.Message) int {
	sh := r.shard(room)
	sh.mu.Lock()
	t := sh.topics[room]
	sh.mu.Unlock()

	if t == nil {
		return 0
	}

	var (
		offered   int
		overflows []overflow
	)

	t.mu.Lock()
	if !t.evicted.Load() {
		for _, sub := range t.subs {
			offered++
			if lost, ok := sub.offer(msg); ok {
				overflows = append(overflows, overflow{sub: sub, msg: lost})
			}
		}
	}
	t.mu.Unlock()

	if offered == 0 {
		return 0
	}

	r.published.Add(1)
	r.delivered.Add(uint64(offered - dropCount(overflows)))
	for _, o := range overflows {
		r.dropped.Add(1)
		r.hooks.runOnDrop(o.sub, o.msg)
	}
	r.hooks.runOnPublish(room, msg, offered)

	return offered
}

// overflow records the message a full subscription discarded.
type overflow struct {
	sub *Subscription
	msg chat.Message
}

// dropCount returns how many overflows discarded the incoming message
// rather than an older queued one.
func dropCount(overflows []overflow) int {
	n := 0
	for _, o := range overflows {
		if o.sub.policy == DropNewest {
			n++
		}
	}
	return n
}

// Subscribers returns the number of live subscriptions for room.
func (r *Registry) Subscribers(room chat.RoomID) int {
	t := r.lookup(room)
	if t == nil {
		return 0
	}
	return t.Len()
}

// Topics returns the number of resident topics.
func (r *Registry) Topics() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		n += len(sh.topics)
		sh.mu.Unlock()
	}
	return n
}

// Stats returns the current counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Topics:        r.Topics(),
		Subscriptions: r.subscriptions.Load(),
		Published:     r.published.Load(),
		Delivered:     r.delivered.Load(),
		Dropped:       r.dropped.Load(),
	}
}

// Close cancels every live subscription and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	var live []*Subscription
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for _, t := range sh.topics {
			t.mu.Lock()
			for _, sub := range t.subs {
				live = append(live, sub)
			}
			t.mu.Unlock()
		}
		sh.mu.Unlock()
	}

	for _, sub := range live {
		sub.Close()
	}
}

// getOrCreate returns the live topic for room, creating it when absent or
// when the resident one has been evicted.
func (r *Registry) getOrCreate(room chat.RoomID) *Topic {
	sh := r.shard(room)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if t, ok := sh.topics[room]; ok && !t.evicted.Load() {
		return t
	}

	t := newTopic(room)
	sh.topics[room] = t
	return t
}

func (r *Registry) lookup(room chat.RoomID) *Topic {
	sh := r.shard(room)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.topics[room]
}

// remove detaches sub from its topic and evicts the topic when it empties.
// Called exactly once per subscription, from Subscription.Close.
func (r *Registry) remove(sub *Subscription) {
	t := sub.topic
	if t == nil {
		return
	}

	t.mu.Lock()
	_, present := t.subs[sub.id]
	delete(t.subs, sub.id)
	evict := len(t.subs) == 0 && !t.evicted.Load()
	if evict {
		t.evicted.Store(true)
	}
	t.mu.Unlock()

	if !present {
		return
	}
	r.subscriptions.Add(-1)

	if evict {
		sh := r.shard(t.room)
		sh.mu.Lock()
		if sh.topics[t.room] == t {
			delete(sh.topics, t.room)
		}
		sh.mu.Unlock()
	}

	r.hooks.runOnUnsubscribe(sub)
}

func (r *Registry) shard(room chat.RoomID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(int64(room), 10)))
	return &r.shards[h.Sum32()%shardCount]
}
