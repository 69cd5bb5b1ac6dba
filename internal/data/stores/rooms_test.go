package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/parley/internal/core/chat"
)

func TestRoomStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create makes owner a member", func(t *testing.T) {
		f := newFixture(t)
		alice := f.account(t, "alice")
		general := f.room(t, "general", alice.ID)

		ok, err := f.rooms.IsMember(ctx, general.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = f.rooms.Create(ctx, NewRoom{Name: "general", Title: "dup", OwnerID: alice.ID})
		require.ErrorIs(t, err, chat.ErrRoomExists)
	})

	t.Run("get and resolve", func(t *testing.T) {
		f := newFixture(t)
		alice := f.account(t, "alice")
		general := f.room(t, "general", alice.ID)

		byName, err := f.rooms.Get(ctx, chat.RoomRef{Name: "general"})
		require.NoError(t, err)
		assert.Equal(t, general, byName)

		id, err := f.rooms.Resolve(ctx, chat.RoomRef{ID: general.ID})
		require.NoError(t, err)
		assert.Equal(t, general.ID, id)

		id, err = f.rooms.Resolve(ctx, chat.RoomRef{Name: "general"})
		require.NoError(t, err)
		assert.Equal(t, general.ID, id)

		_, err = f.rooms.Resolve(ctx, chat.RoomRef{ID: 999})
		require.ErrorIs(t, err, chat.ErrRoomNotFound)
		_, err = f.rooms.Resolve(ctx, chat.RoomRef{Name: "nope"})
		require.ErrorIs(t, err, chat.ErrRoomNotFound)
		_, err = f.rooms.Resolve(ctx, chat.RoomRef{})
		require.ErrorIs(t, err, chat.ErrRoomNotFound)
	})

	t.Run("update by owner only", func(t *testing.T) {
		f := newFixture(t)
		alice := f.account(t, "alice")
		bob := f.account(t, "bob")
		general := f.room(t, "general", alice.ID)

		title := "General chat"
		_, err := f.rooms.Update(ctx, general.ID, bob.ID, RoomUpdate{Title: &title})
		require.ErrorIs(t, err, chat.ErrForbidden)

		about := "anything goes"
		updated, err := f.rooms.Update(ctx, general.ID, alice.ID, RoomUpdate{About: &about})
		require.NoError(t, err)
		assert.Equal(t, general.Title, updated.Title, "nil title is left as is")
		assert.Equal(t, about, updated.About)

		updated, err = f.rooms.Update(ctx, general.ID, alice.ID, RoomUpdate{Title: &title})
		require.NoError(t, err)

		got, err := f.rooms.Get(ctx, chat.RoomRef{ID: general.ID})
		require.NoError(t, err)
		assert.Equal(t, updated, got)
		assert.Equal(t, "general", got.Name)

		_, err = f.rooms.Update(ctx, 999, alice.ID, RoomUpdate{Title: &title})
		require.ErrorIs(t, err, chat.ErrRoomNotFound)
	})

	t.Run("join leave members", func(t *testing.T) {
		f := newFixture(t)
		alice := f.account(t, "alice")
		bob := f.account(t, "bob")
		general := f.room(t, "general", alice.ID)

		require.NoError(t, f.rooms.Join(ctx, general.ID, bob.ID))
		require.NoError(t, f.rooms.Join(ctx, general.ID, bob.ID), "join is idempotent")

		members, err := f.rooms.Members(ctx, general.ID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, alice.ID, members[0].ID)
		assert.Equal(t, bob.ID, members[1].ID)

		rooms, err := f.rooms.ListForAccount(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, general.ID, rooms[0].ID)

		require.NoError(t, f.rooms.Leave(ctx, general.ID, bob.ID))
		require.ErrorIs(t, f.rooms.Leave(ctx, general.ID, bob.ID), chat.ErrNotAMember)

		ok, err := f.rooms.IsMember(ctx, general.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t)
		alice := f.account(t, "alice")
		bob := f.account(t, "bob")
		general := f.room(t, "general", alice.ID)
		require.NoError(t, f.rooms.Join(ctx, general.ID, bob.ID))

		_, err := f.messages.Append(ctx, chat.AppendInput{RoomID: general.ID, SenderID: bob.ID, Content: "hi"})
		require.NoError(t, err)

		require.ErrorIs(t, f.rooms.Delete(ctx, general.ID, bob.ID), chat.ErrForbidden)
		require.NoError(t, f.rooms.Delete(ctx, general.ID, alice.ID))
		require.ErrorIs(t, f.rooms.Delete(ctx, general.ID, alice.ID), chat.ErrRoomNotFound)

		ok, err := f.rooms.IsMember(ctx, general.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok, "memberships cascade")

		msgs, err := f.messages.Recent(ctx, general.ID, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, msgs, "messages cascade")

		all, err := f.rooms.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
