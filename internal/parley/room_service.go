package parley

import (
	"context"
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/stores"
)

// RoomService manages rooms and their memberships.
type RoomService struct {
	store *stores.RoomStore
}

func NewRoomService(store *stores.RoomStore) *RoomService {
	return &RoomService{store: store}
}

// CreateInput describes a new room.
type CreateInput struct {
	Name  string
	Title string
	About string
	Owner chat.AccountID
}

// Create makes a room owned by in.Owner, who joins it immediately.
func (s *RoomService) Create(ctx context.Context, in CreateInput) (chat.Room, error) {
	if err := criterio.ValidateStruct(
		criterio.Run("name", in.Name, chat.RoomName),
	); err != nil {
		return chat.Room{}, chat.Invalid(err)
	}
	if in.Title == "" {
		in.Title = in.Name
	}

	room, err := s.store.Create(ctx, stores.NewRoom{
		Name:    in.Name,
		Title:   in.Title,
		About:   in.About,
		OwnerID: in.Owner,
	})
	if err != nil {
		return chat.Room{}, storeErr("create room", err)
	}
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, ref chat.RoomRef) (chat.Room, error) {
	if ref.IsZero() {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	room, err := s.store.Get(ctx, ref)
	if err != nil {
		return chat.Room{}, storeErr("get room", err)
	}
	return room, nil
}

// Delete removes a room with its memberships and messages. Only the owner
// may delete a room.
func (s *RoomService) Delete(ctx context.Context, ref chat.RoomRef, account chat.AccountID) error {
	room, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	return storeErr("delete room", s.store.Delete(ctx, room.ID, account))
}

const (
	maxTitleSize = 128
	maxAboutSize = 1024
)

// Update changes a room's title or description. Only the owner may edit a
// room; its name is fixed.
func (s *RoomService) Update(ctx context.Context, ref chat.RoomRef, account chat.AccountID, upd stores.RoomUpdate) (chat.Room, error) {
	var errs criterio.FieldErrorsBuilder
	if upd.Title != nil {
		switch title := strings.TrimSpace(*upd.Title); {
		case title == "":
			errs = errs.Append("title", fmt.Errorf("cannot be empty"))
		case len(title) > maxTitleSize:
			errs = errs.Append("title", fmt.Errorf("must be at most %d bytes", maxTitleSize))
		default:
			upd.Title = &title
		}
	}
	if upd.About != nil && len(*upd.About) > maxAboutSize {
		errs = errs.Append("about", fmt.Errorf("must be at most %d bytes", maxAboutSize))
	}
	if err := errs.ToError(); err != nil {
		return chat.Room{}, chat.Invalid(err)
	}

	room, err := s.Get(ctx, ref)
	if err != nil {
		return chat.Room{}, err
	}

	updated, err := s.store.Update(ctx, room.ID, account, upd)
	if err != nil {
		return chat.Room{}, storeErr("update room", err)
	}
	return updated, nil
}

// Join adds account to the room. Joining twice is not an error.
func (s *RoomService) Join(ctx context.Context, ref chat.RoomRef, account chat.AccountID) (chat.Room, error) {
	room, err := s.Get(ctx, ref)
	if err != nil {
		return chat.Room{}, err
	}
	if err := s.store.Join(ctx, room.ID, account); err != nil {
		return chat.Room{}, storeErr("join room", err)
	}
	return room, nil
}

func (s *RoomService) Leave(ctx context.Context, ref chat.RoomRef, account chat.AccountID) error {
	room, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	return storeErr("leave room", s.store.Leave(ctx, room.ID, account))
}

// Members lists a room's members to one of them.
func (s *RoomService) Members(ctx context.Context, ref chat.RoomRef, account chat.AccountID) ([]chat.Account, error) {
	room, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.IsMember(ctx, room.ID, account)
	if err != nil {
		return nil, storeErr("check membership", err)
	}
	if !ok {
		return nil, chat.ErrNotAMember
	}

	members, err := s.store.Members(ctx, room.ID)
	if err != nil {
		return nil, storeErr("list members", err)
	}
	return members, nil
}

func (s *RoomService) ForAccount(ctx context.Context, account chat.AccountID) ([]chat.Room, error) {
	rooms, err := s.store.ListForAccount(ctx, account)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	return rooms, nil
}

func (s *RoomService) List(ctx context.Context) ([]chat.Room, error) {
	rooms, err := s.store.List(ctx)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	return rooms, nil
}
