package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/db"
)

// RoomStore implements chat.RoomDirectory and room membership management.
type RoomStore struct {
	db *db.DB
}

var _ chat.RoomDirectory = (*RoomStore)(nil)

func NewRoomStore(database *db.DB) *RoomStore {
	return &RoomStore{db: database}
}

// NewRoom is the input for Create.
type NewRoom struct {
	Name    string
	Title   string
	About   string
	OwnerID chat.AccountID
}

const roomColumns = "r.id, r.name, r.title, r.about, r.owner_id, r.created_at"

// Create inserts a room and makes the owner its first member. Returns
// chat.ErrRoomExists when the name is taken.
func (s *RoomStore) Create(ctx context.Context, in NewRoom) (chat.Room, error) {
	now := time.Now().UTC().UnixNano()
	room := chat.Room{
		Name:      in.Name,
		Title:     in.Title,
		About:     in.About,
		OwnerID:   in.OwnerID,
		CreatedAt: fromNanos(now),
	}

	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			"INSERT INTO rooms (name, title, about, owner_id, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id",
			in.Name, in.Title, in.About, int64(in.OwnerID), now,
		).Scan(&id)
		if err != nil {
			if isUniqueConstraintError(err) {
				return chat.ErrRoomExists
			}
			return fmt.Errorf("create room: %w", err)
		}
		room.ID = chat.RoomID(id)

		_, err = tx.ExecContext(ctx,
			"INSERT INTO memberships (room_id, account_id, joined_at) VALUES (?, ?, ?)",
			id, int64(in.OwnerID), now,
		)
		if err != nil {
			return fmt.Errorf("add owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return chat.Room{}, err
	}

	return room, nil
}

// Get returns the room a reference points at.
func (s *RoomStore) Get(ctx context.Context, ref chat.RoomRef) (chat.Room, error) {
	var row rowScanner
	switch {
	case ref.ID > 0:
		row = s.db.QueryRowContext(ctx, "SELECT "+roomColumns+" FROM rooms r WHERE r.id = ?", int64(ref.ID))
	case ref.Name != "":
		row = s.db.QueryRowContext(ctx, "SELECT "+roomColumns+" FROM rooms r WHERE r.name = ?", ref.Name)
	default:
		return chat.Room{}, chat.ErrRoomNotFound
	}
	return scanRoom(row)
}

// Resolve returns the id of the referenced room.
func (s *RoomStore) Resolve(ctx context.Context, ref chat.RoomRef) (chat.RoomID, error) {
	if ref.ID > 0 {
		var id int64
		err := s.db.QueryRowContext(ctx, "SELECT id FROM rooms WHERE id = ?", int64(ref.ID)).Scan(&id)
		if IsNotFoundError(err) {
			return 0, chat.ErrRoomNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("resolve room: %w", err)
		}
		return chat.RoomID(id), nil
	}

	room, err := s.Get(ctx, ref)
	if err != nil {
		return 0, err
	}
	return room.ID, nil
}

// Delete removes a room owned by account. Memberships and messages are
// removed by cascade.
func (s *RoomStore) Delete(ctx context.Context, id chat.RoomID, account chat.AccountID) error {
	return s.db.WithTx(ctx, func(tx *db.Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx, "SELECT owner_id FROM rooms WHERE id = ?", int64(id)).Scan(&owner)
		if IsNotFoundError(err) {
			return chat.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		if chat.AccountID(owner) != account {
			return chat.ErrForbidden
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", int64(id)); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
}

// RoomUpdate carries optional room changes; nil fields are left as is.
type RoomUpdate struct {
	Title *string
	About *string
}

// Update applies the non-nil fields of upd to a room owned by account.
func (s *RoomStore) Update(ctx context.Context, id chat.RoomID, account chat.AccountID, upd RoomUpdate) (chat.Room, error) {
	var updated chat.Room
	err := s.db.WithTx(ctx, func(tx *db.Tx) error {
		current, err := scanRoom(tx.QueryRowContext(ctx,
			"SELECT "+roomColumns+" FROM rooms r WHERE r.id = ?", int64(id)))
		if err != nil {
			return err
		}
		if current.OwnerID != account {
			return chat.ErrForbidden
		}

		if upd.Title != nil {
			current.Title = *upd.Title
		}
		if upd.About != nil {
			current.About = *upd.About
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE rooms SET title = ?, about = ? WHERE id = ?",
			current.Title, current.About, int64(id),
		)
		if err != nil {
			return fmt.Errorf("update room: %w", err)
		}

		updated = current
		return nil
	})
	return updated, err
}

// Join adds account to the room. Joining twice is not an error.
func (s *RoomStore) Join(ctx context.Context, room chat.RoomID, account chat.AccountID) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO memberships (room_id, account_id, joined_at) VALUES (?, ?, ?) ON CONFLICT (room_id, account_id) DO NOTHING",
		int64(room), int64(account), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	return nil
}

// Leave removes account from the room. Returns chat.ErrNotAMember when it
// was not a member.
func (s *RoomStore) Leave(ctx context.Context, room chat.RoomID, account chat.AccountID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM memberships WHERE room_id = ? AND account_id = ?",
		int64(room), int64(account),
	)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	if n == 0 {
		return chat.ErrNotAMember
	}
	return nil
}

func (s *RoomStore) IsMember(ctx context.Context, room chat.RoomID, account chat.AccountID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM memberships WHERE room_id = ? AND account_id = ?",
		int64(room), int64(account),
	).Scan(&one)
	if IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// Members lists the accounts in a room ordered by join time.
func (s *RoomStore) Members(ctx context.Context, room chat.RoomID) ([]chat.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.username, a.name, a.profile, a.bio, a.status, a.created_at
		FROM memberships m
		JOIN accounts a ON a.id = m.account_id
		WHERE m.room_id = ?
		ORDER BY m.joined_at, a.id`, int64(room))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := make([]chat.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, a)
	}
	return members, rows.Err()
}

// ListForAccount returns the rooms account is a member of.
func (s *RoomStore) ListForAccount(ctx context.Context, account chat.AccountID) ([]chat.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms r
		JOIN memberships m ON m.room_id = r.id
		WHERE m.account_id = ?
		ORDER BY r.id`, int64(account))
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return collectRooms(rows)
}

// List returns every room.
func (s *RoomStore) List(ctx context.Context) ([]chat.Room, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+roomColumns+" FROM rooms r ORDER BY r.id")
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return collectRooms(rows)
}

type rowsScanner interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}

func collectRooms(rows rowsScanner) ([]chat.Room, error) {
	defer func() { _ = rows.Close() }()

	rooms := make([]chat.Room, 0)
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func scanRoom(row rowScanner) (chat.Room, error) {
	var (
		r         chat.Room
		id        int64
		owner     int64
		createdAt int64
	)
	err := row.Scan(&id, &r.Name, &r.Title, &r.About, &owner, &createdAt)
	if IsNotFoundError(err) {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, fmt.Errorf("scan room: %w", err)
	}
	r.ID = chat.RoomID(id)
	r.OwnerID = chat.AccountID(owner)
	r.CreatedAt = fromNanos(createdAt)
	return r, nil
}
