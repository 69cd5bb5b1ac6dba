package pubsub

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/colonyops/parley/internal/core/chat"
)

// RegisterDebugLogger registers registry hooks that log fan-out activity.
// Publishes and subscription changes log at debug, drops at warn and hook
// panics at error.
func RegisterDebugLogger(r *Registry, logger zerolog.Logger) {
	r.OnPublish(func(room chat.RoomID, msg chat.Message, offered int) {
		logger.Debug().
			Int64("room_id", int64(room)).
			Int64("message_id", int64(msg.ID)).
			Int("offered", offered).
			Msg("message published")
	})

	r.OnDrop(func(sub *Subscription, msg chat.Message) {
		logger.Warn().
			Err(chat.ErrOverflowDropped).
			Uint64("sub_id", sub.ID()).
			Int64("room_id", int64(sub.Room())).
			Int64("message_id", int64(msg.ID)).
			Str("policy", sub.Policy().String()).
			Uint64("dropped", sub.Dropped()).
			Msg("subscription queue overflow")
	})

	r.OnSubscribe(func(sub *Subscription) {
		logger.Debug().
			Uint64("sub_id", sub.ID()).
			Int64("room_id", int64(sub.Room())).
			Msg("subscribed")
	})

	r.OnUnsubscribe(func(sub *Subscription) {
		logger.Debug().
			Uint64("sub_id", sub.ID()).
			Int64("room_id", int64(sub.Room())).
			Uint64("dropped", sub.Dropped()).
			Msg("unsubscribed")
	})

	r.OnPanic(func(hook string, recovered any) {
		logger.Error().
			Str("hook", hook).
			Str("panic", fmt.Sprint(recovered)).
			Msg("pubsub hook panicked")
	})
}
