package parley

import (
	"context"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/pubsub"
)

// Fanout hands a persisted message to live subscribers.
type Fanout interface {
	Publish(ctx context.Context, msg chat.Message) error
}

// LocalFanout publishes straight into an in-process registry.
type LocalFanout struct {
	Registry *pubsub.Registry
}

var _ Fanout = LocalFanout{}

func (f LocalFanout) Publish(_ context.Context, msg chat.Message) error {
	f.Registry.Publish(msg.RoomID, msg)
	return nil
}
