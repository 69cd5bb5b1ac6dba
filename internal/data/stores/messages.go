package stores

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/db"
)

// MessageStore implements chat.MessageStore.
type MessageStore struct {
	db *db.DB
}

var _ chat.MessageStore = (*MessageStore)(nil)

func NewMessageStore(database *db.DB) *MessageStore {
	return &MessageStore{db: database}
}

const messageColumns = "id, room_id, sender_id, content, reply_to, is_media, sent_at, edited_at"

// Append stores a message. A ReplyTo that does not name a message in the
// same room is rejected with chat.ErrInvalidInput.
func (s *MessageStore) Append(ctx context.Context, in chat.AppendInput) (chat.Message, error) {
	sentAt := time.Now().UTC().UnixNano()

	var replyTo *int64
	if in.ReplyTo != nil {
		v := int64(*in.ReplyTo)
		replyTo = &v
	}

	var id int64
	err := retryBusy(func() error {
		return s.db.WithTx(ctx, func(tx *db.Tx) error {
			if replyTo != nil {
				var one int
				err := tx.QueryRowContext(ctx,
					"SELECT 1 FROM messages WHERE id = ? AND room_id = ?", *replyTo, int64(in.RoomID),
				).Scan(&one)
				if IsNotFoundError(err) {
					return chat.Invalid(fmt.Errorf("reply_to: message %d not found in room", *replyTo))
				}
				if err != nil {
					return fmt.Errorf("check reply target: %w", err)
				}
			}

			return tx.QueryRowContext(ctx,
				"INSERT INTO messages (room_id, sender_id, content, reply_to, is_media, sent_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id",
				int64(in.RoomID), int64(in.SenderID), in.Content, toNullInt64(replyTo), in.IsMedia, sentAt,
			).Scan(&id)
		})
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("append message: %w", err)
	}

	return chat.Message{
		ID:       chat.MessageID(id),
		RoomID:   in.RoomID,
		SenderID: in.SenderID,
		Content:  in.Content,
		SentAt:   fromNanos(sentAt),
		ReplyTo:  in.ReplyTo,
		IsMedia:  in.IsMedia,
	}, nil
}

// Recent returns up to count messages of a room after skipping the offset
// newest, oldest first.
func (s *MessageStore) Recent(ctx context.Context, room chat.RoomID, offset, count int) ([]chat.Message, error) {
	if offset < 0 {
		offset = 0
	}
	if count <= 0 {
		return []chat.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE room_id = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		int64(room), count, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]chat.Message, 0, count)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// Get returns a message by id.
func (s *MessageStore) Get(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", int64(id)))
}

// Edit replaces the content of a message sent by account and stamps
// edited_at.
func (s *MessageStore) Edit(ctx context.Context, id chat.MessageID, account chat.AccountID, content string) (chat.Message, error) {
	var edited chat.Message
	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		m, err := scanMessage(tx.QueryRowContext(ctx,
			"SELECT "+messageColumns+" FROM messages WHERE id = ?", int64(id)))
		if err != nil {
			return err
		}
		if m.SenderID != account {
			return chat.ErrForbidden
		}

		now := time.Now().UTC().UnixNano()
		_, err = tx.ExecContext(ctx,
			"UPDATE messages SET content = ?, edited_at = ? WHERE id = ?",
			content, now, int64(id),
		)
		if err != nil {
			return fmt.Errorf("edit message: %w", err)
		}

		editedAt := fromNanos(now)
		m.Content = content
		m.EditedAt = &editedAt
		edited = m
		return nil
	})
	return edited, err
}

// Delete removes a message sent by account.
func (s *MessageStore) Delete(ctx context.Context, id chat.MessageID, account chat.AccountID) error {
	return s.db.WithTx(ctx, func(tx *db.Tx) error {
		var sender int64
		err := tx.QueryRowContext(ctx, "SELECT sender_id FROM messages WHERE id = ?", int64(id)).Scan(&sender)
		if IsNotFoundError(err) {
			return chat.ErrMessageNotFound
		}
		if err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		if chat.AccountID(sender) != account {
			return chat.ErrForbidden
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", int64(id)); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		return nil
	})
}

// Prune deletes messages sent before now minus olderThan.
func (s *MessageStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UTC().UnixNano()

	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE sent_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	return int(n), nil
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var (
		m        chat.Message
		id       int64
		room     int64
		sender   int64
		replyTo  sql.NullInt64
		sentAt   int64
		editedAt sql.NullInt64
	)
	err := row.Scan(&id, &room, &sender, &m.Content, &replyTo, &m.IsMedia, &sentAt, &editedAt)
	if IsNotFoundError(err) {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("scan message: %w", err)
	}

	m.ID = chat.MessageID(id)
	m.RoomID = chat.RoomID(room)
	m.SenderID = chat.AccountID(sender)
	m.SentAt = fromNanos(sentAt)
	if replyTo.Valid {
		r := chat.MessageID(replyTo.Int64)
		m.ReplyTo = &r
	}
	if editedAt.Valid {
		e := fromNanos(editedAt.Int64)
		m.EditedAt = &e
	}
	return m, nil
}
