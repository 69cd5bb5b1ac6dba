package parley

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/config"
)

func TestSequencer_SerializesOneRoom(t *testing.T) {
	var seq sequencer

	unlock := seq.lock(1)

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		seq.lock(1)()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
	assert.Zero(t, seq.len())
}

func TestSequencer_RoomsAreIndependent(t *testing.T) {
	var seq sequencer

	unlockA := seq.lock(1)
	unlockB := seq.lock(65)
	assert.Equal(t, 2, seq.len())

	unlockB()
	unlockA()
	assert.Zero(t, seq.len())
}

type openRooms struct{}

func (openRooms) Resolve(_ context.Context, ref chat.RoomRef) (chat.RoomID, error) {
	return ref.ID, nil
}

func (openRooms) IsMember(context.Context, chat.RoomID, chat.AccountID) (bool, error) {
	return true, nil
}

type counterStore struct {
	chat.MessageStore

	mu   sync.Mutex
	next chat.MessageID
}

func (s *counterStore) Append(_ context.Context, in chat.AppendInput) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return chat.Message{ID: s.next, RoomID: in.RoomID, SenderID: in.SenderID, Content: in.Content}, nil
}

// stallingFanout blocks publishes to one room until release is closed.
type stallingFanout struct {
	room    chat.RoomID
	entered chan struct{}
	release chan struct{}
}

func (f *stallingFanout) Publish(_ context.Context, msg chat.Message) error {
	if msg.RoomID == f.room {
		close(f.entered)
		<-f.release
	}
	return nil
}

func TestMessageService_SlowFanoutDoesNotBlockOtherRooms(t *testing.T) {
	fan := &stallingFanout{room: 1, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewMessageService(openRooms{}, &counterStore{}, fan, config.DefaultConfig().Messages)
	ctx := context.Background()

	stalled := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, SendInput{Room: chat.RoomRef{ID: 1}, Sender: 7, Content: "slow"})
		stalled <- err
	}()
	<-fan.entered

	sent := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, SendInput{Room: chat.RoomRef{ID: 65}, Sender: 7, Content: "fast"})
		sent <- err
	}()

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send to another room waited on a stalled publish")
	}

	close(fan.release)
	require.NoError(t, <-stalled)
	assert.Zero(t, svc.seq.len())
}
