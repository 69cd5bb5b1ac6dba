package pubsub

import (
	"sync"

	"github.com/colonyops/parley/internal/core/chat"
)

// hooks holds registry lifecycle callbacks. Hooks run synchronously on the
// goroutine that triggered them, outside of any topic lock.
type hooks struct {
	mu            sync.RWMutex
	onPublish     []func(chat.RoomID, chat.Message, int)
	onDrop        []func(*Subscription, chat.Message)
	onSubscribe   []func(*Subscription)
	onUnsubscribe []func(*Subscription)
	onPanic       []func(string, any)
}

// OnPublish registers a hook that fires after a message was offered to at
// least one subscription. The int is the number of subscriptions offered.
func (r *Registry) OnPublish(fn func(room chat.RoomID, msg chat.Message, offered int)) {
	r.hooks.mu.Lock()
	r.hooks.onPublish = append(r.hooks.onPublish, fn)
	r.hooks.mu.Unlock()
}

// OnDrop registers a hook that fires when a full queue discards a message.
func (r *Registry) OnDrop(fn func(sub *Subscription, msg chat.Message)) {
	r.hooks.mu.Lock()
	r.hooks.onDrop = append(r.hooks.onDrop, fn)
	r.hooks.mu.Unlock()
}

// OnSubscribe registers a hook that fires after a subscription is registered.
func (r *Registry) OnSubscribe(fn func(sub *Subscription)) {
	r.hooks.mu.Lock()
	r.hooks.onSubscribe = append(r.hooks.onSubscribe, fn)
	r.hooks.mu.Unlock()
}

// OnUnsubscribe registers a hook that fires once per subscription, after
// it has been removed from its topic.
func (r *Registry) OnUnsubscribe(fn func(sub *Subscription)) {
	r.hooks.mu.Lock()
	r.hooks.onUnsubscribe = append(r.hooks.onUnsubscribe, fn)
	r.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when another hook panics. The string
// names the hook kind.
func (r *Registry) OnPanic(fn func(hook string, recovered any)) {
	r.hooks.mu.Lock()
	r.hooks.onPanic = append(r.hooks.onPanic, fn)
	r.hooks.mu.Unlock()
}

func (h *hooks) runOnPublish(room chat.RoomID, msg chat.Message, offered int) {
	h.mu.RLock()
	fns := make([]func(chat.RoomID, chat.Message, int), len(h.onPublish))
	copy(fns, h.onPublish)
	h.mu.RUnlock()
	for _, fn := range fns {
		h.guard("publish", func() { fn(room, msg, offered) })
	}
}

func (h *hooks) runOnDrop(sub *Subscription, msg chat.Message) {
	h.mu.RLock()
	fns := make([]func(*Subscription, chat.Message), len(h.onDrop))
	copy(fns, h.onDrop)
	h.mu.RUnlock()
	for _, fn := range fns {
		h.guard("drop", func() { fn(sub, msg) })
	}
}

func (h *hooks) runOnSubscribe(sub *Subscription) {
	h.mu.RLock()
	fns := make([]func(*Subscription), len(h.onSubscribe))
	copy(fns, h.onSubscribe)
	h.mu.RUnlock()
	for _, fn := range fns {
		h.guard("subscribe", func() { fn(sub) })
	}
}

func (h *hooks) runOnUnsubscribe(sub *Subscription) {
	h.mu.RLock()
	fns := make([]func(*Subscription), len(h.onUnsubscribe))
	copy(fns, h.onUnsubscribe)
	h.mu.RUnlock()
	for _, fn := range fns {
		h.guard("unsubscribe", func() { fn(sub) })
	}
}

// guard keeps a misbehaving hook from unwinding into the publisher.
func (h *hooks) guard(kind string, fn func()) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		h.mu.RLock()
		fns := make([]func(string, any), len(h.onPanic))
		copy(fns, h.onPanic)
		h.mu.RUnlock()
		for _, p := range fns {
			func() {
				defer func() { recover() }() //nolint:errcheck
				p(kind, recovered)
			}()
		}
	}()
	fn()
}
