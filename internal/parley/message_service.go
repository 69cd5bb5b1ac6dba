package parley

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/logging"
)

// SendInput is a request to post a message.
type SendInput struct {
	Room    chat.RoomRef
	Sender  chat.AccountID
	Content string
	ReplyTo *chat.MessageID
	IsMedia bool
}

// MessageService persists messages and fans them out.
type MessageService struct {
	rooms  chat.RoomDirectory
	store  chat.MessageStore
	fanout Fanout
	limits config.MessagesConfig
	logger zerolog.Logger

	// seq serializes append+publish per room so live delivery order
	// matches store order.
	seq sequencer
}

// NewMessageService creates a new MessageService.
func NewMessageService(rooms chat.RoomDirectory, store chat.MessageStore, fanout Fanout, limits config.MessagesConfig) *MessageService {
	return &MessageService{
		rooms:  rooms,
		store:  store,
		fanout: fanout,
		limits: limits,
		logger: logging.Component("messages"),
	}
}

// Send validates, stores and publishes a message. Nothing is published
// when the store rejects the append.
func (s *MessageService) Send(ctx context.Context, in SendInput) (chat.Message, error) {
	room, err := s.authorize(ctx, in.Room, in.Sender)
	if err != nil {
		return chat.Message{}, err
	}

	if err := criterio.ValidateStruct(
		criterio.Run("content", in.Content, chat.Content(s.limits.MaxContentSize)),
	); err != nil {
		return chat.Message{}, chat.Invalid(err)
	}

	unlock := s.seq.lock(room)
	defer unlock()

	msg, err := s.store.Append(ctx, chat.AppendInput{
		RoomID:   room,
		SenderID: in.Sender,
		Content:  in.Content,
		ReplyTo:  in.ReplyTo,
		IsMedia:  in.IsMedia,
	})
	if err != nil {
		return chat.Message{}, storeErr("append message", err)
	}

	if err := s.fanout.Publish(ctx, msg); err != nil {
		// The message is durable; live subscribers recover it from history.
		s.logger.Warn().Ctx(ctx).Err(err).Int64("message_id", int64(msg.ID)).Msg("fanout failed")
	}

	return msg, nil
}

// History returns a page of a room's messages to one of its members. A
// count of 0 selects the configured default; counts are capped at the
// configured maximum.
func (s *MessageService) History(ctx context.Context, ref chat.RoomRef, account chat.AccountID, offset, count int) ([]chat.Message, error) {
	room, err := s.authorize(ctx, ref, account)
	if err != nil {
		return nil, err
	}

	if offset < 0 {
		return nil, chat.Invalid(criterio.NewFieldErrors("offset", fmt.Errorf("cannot be negative")))
	}
	switch {
	case count <= 0:
		count = s.limits.HistoryDefault
	case count > s.limits.HistoryMax:
		count = s.limits.HistoryMax
	}

	msgs, err := s.store.Recent(ctx, room, offset, count)
	if err != nil {
		return nil, storeErr("recent messages", err)
	}
	return msgs, nil
}

// Edit changes the content of a message. Only its sender may edit it, and
// the change is not pushed to live subscribers.
func (s *MessageService) Edit(ctx context.Context, id chat.MessageID, account chat.AccountID, content string) (chat.Message, error) {
	if err := criterio.ValidateStruct(
		criterio.Run("content", content, chat.Content(s.limits.MaxContentSize)),
	); err != nil {
		return chat.Message{}, chat.Invalid(err)
	}

	msg, err := s.store.Edit(ctx, id, account, content)
	if err != nil {
		return chat.Message{}, storeErr("edit message", err)
	}
	return msg, nil
}

// Delete removes a message sent by account.
func (s *MessageService) Delete(ctx context.Context, id chat.MessageID, account chat.AccountID) error {
	return storeErr("delete message", s.store.Delete(ctx, id, account))
}

// authorize resolves ref and checks that account belongs to the room.
func (s *MessageService) authorize(ctx context.Context, ref chat.RoomRef, account chat.AccountID) (chat.RoomID, error) {
	if strings.TrimSpace(ref.Name) == "" && ref.ID <= 0 {
		return 0, chat.ErrRoomNotFound
	}

	room, err := s.rooms.Resolve(ctx, ref)
	if err != nil {
		return 0, storeErr("resolve room", err)
	}

	ok, err := s.rooms.IsMember(ctx, room, account)
	if err != nil {
		return 0, storeErr("check membership", err)
	}
	if !ok {
		return 0, chat.ErrNotAMember
	}
	return room, nil
}
