// Package relay carries published messages between parley nodes so a
// subscriber on any node sees messages sent through every other node.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/logging"
	"github.com/colonyops/parley/internal/core/pubsub"
)

// Client is the subset of *redis.Client the relay needs.
type Client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

var _ Client = (*redis.Client)(nil)

// Redis publishes messages to a Redis channel per room and relays every
// room channel back into the local registry. Publishing never touches the
// local registry directly: a node sees its own messages through the relay,
// which keeps one delivery order per node.
type Redis struct {
	client   Client
	prefix   string
	registry *pubsub.Registry
	logger   zerolog.Logger
}

// NewClient builds a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedis(client Client, prefix string, registry *pubsub.Registry) *Redis {
	return &Redis{
		client:   client,
		prefix:   prefix,
		registry: registry,
		logger:   logging.Component("relay"),
	}
}

func (r *Redis) channel(room chat.RoomID) string {
	return r.prefix + "room." + strconv.FormatInt(int64(room), 10)
}

// Publish sends msg to the room's channel.
func (r *Redis) Publish(ctx context.Context, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(msg.RoomID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to every room channel and feeds received messages into the
// registry until ctx is cancelled.
func (r *Redis) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+"room.*")
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}
	r.logger.Info().Str("pattern", r.prefix+"room.*").Msg("relay subscribed")

	r.consume(ctx, ps.Channel())
	return nil
}

func (r *Redis) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if err := r.deliver(m.Channel, m.Payload); err != nil {
				r.logger.Warn().Err(err).Str("channel", m.Channel).Msg("relay message rejected")
			}
		}
	}
}

// deliver publishes one relayed payload locally. The room in the channel
// name must agree with the message.
func (r *Redis) deliver(channel, payload string) error {
	suffix, ok := strings.CutPrefix(channel, r.prefix+"room.")
	if !ok {
		return fmt.Errorf("unexpected channel %q", channel)
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}

	var msg chat.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if msg.RoomID != chat.RoomID(id) {
		return fmt.Errorf("message room %d does not match channel %q", msg.RoomID, channel)
	}

	r.registry.Publish(msg.RoomID, msg)
	return nil
}
