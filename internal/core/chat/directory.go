package chat

import (
	"context"
	"time"
)

// AccountDirectory authenticates and looks up accounts.
type AccountDirectory interface {
	// Authenticate returns the account id for valid credentials, or
	// ErrAuthenticationFailed.
	Authenticate(ctx context.Context, username, credential string) (AccountID, error)
	// Lookup returns ErrAccountNotFound for unknown ids.
	Lookup(ctx context.Context, id AccountID) (Account, error)
}

// RoomDirectory resolves rooms and answers membership questions.
type RoomDirectory interface {
	// Resolve returns ErrRoomNotFound when the reference matches no room.
	Resolve(ctx context.Context, ref RoomRef) (RoomID, error)
	IsMember(ctx context.Context, room RoomID, account AccountID) (bool, error)
}

// AppendInput is the data persisted for a new message.
type AppendInput struct {
	RoomID   RoomID
	SenderID AccountID
	Content  string
	ReplyTo  *MessageID
	IsMedia  bool
}

// MessageStore persists messages.
type MessageStore interface {
	// Append durably stores a message and returns it with its id and
	// timestamp populated.
	Append(ctx context.Context, in AppendInput) (Message, error)

	// Recent returns up to count messages of a room, skipping the offset
	// newest ones, in chronological order.
	Recent(ctx context.Context, room RoomID, offset, count int) ([]Message, error)

	// Edit replaces the content of a message sent by account.
	Edit(ctx context.Context, id MessageID, account AccountID, content string) (Message, error)

	// Delete removes a message sent by account.
	Delete(ctx context.Context, id MessageID, account AccountID) error

	// Prune removes messages older than the given duration and returns the
	// number removed.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}
