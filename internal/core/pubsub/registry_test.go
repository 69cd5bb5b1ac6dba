package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/parley/internal/core/chat"
)

const room chat.RoomID = 1

func msg(id int) chat.Message {
	return chat.Message{
		ID:       chat.MessageID(id),
		RoomID:   room,
		SenderID: 7,
		Content:  "m",
		SentAt:   time.Unix(int64(id), 0),
	}
}

func next(t *testing.T, sub *Subscription) chat.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := sub.Next(ctx)
	require.NoError(t, err)
	return m
}

func TestPublish_EverySubscriberReceivesOnceInOrder(t *testing.T) {
	r := New(16, DropOldest)
	defer r.Close()

	subs := make([]*Subscription, 3)
	for i := range subs {
		sub, err := r.Subscribe(room)
		require.NoError(t, err)
		subs[i] = sub
	}

	for i := 1; i <= 10; i++ {
		assert.Equal(t, 3, r.Publish(room, msg(i)))
	}

	for _, sub := range subs {
		for i := 1; i <= 10; i++ {
			assert.Equal(t, chat.MessageID(i), next(t, sub).ID)
		}
		assert.Zero(t, sub.Len(), "no duplicates left behind")
	}

	stats := r.Stats()
	assert.Equal(t, uint64(10), stats.Published)
	assert.Equal(t, uint64(30), stats.Delivered)
	assert.Zero(t, stats.Dropped)
}

func TestPublish_WithoutTopicIsNoop(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	assert.Zero(t, r.Publish(room, msg(1)))
	assert.Zero(t, r.Topics())
	assert.Zero(t, r.Stats().Published)
}

func TestPublish_OtherRoomsAreIsolated(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	a, err := r.Subscribe(1)
	require.NoError(t, err)
	b, err := r.Subscribe(2)
	require.NoError(t, err)

	r.Publish(1, msg(1))

	assert.Equal(t, 1, a.Len())
	assert.Zero(t, b.Len())
	assert.Equal(t, 2, r.Topics())
}

func TestUnsubscribe_NoDanglingDelivery(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	keep, err := r.Subscribe(room)
	require.NoError(t, err)
	gone, err := r.Subscribe(room)
	require.NoError(t, err)

	r.Unsubscribe(gone)
	assert.Equal(t, 1, r.Publish(room, msg(1)))

	assert.Zero(t, gone.Len())
	_, err = gone.Next(context.Background())
	require.ErrorIs(t, err, chat.ErrSubscriptionClosed)

	assert.Equal(t, chat.MessageID(1), next(t, keep).ID)
}

func TestSubscribe_NoRetroactiveDelivery(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	early, err := r.Subscribe(room)
	require.NoError(t, err)

	r.Publish(room, msg(1))

	late, err := r.Subscribe(room)
	require.NoError(t, err)
	assert.Zero(t, late.Len())

	r.Publish(room, msg(2))

	assert.Equal(t, chat.MessageID(2), next(t, late).ID)
	assert.Equal(t, chat.MessageID(1), next(t, early).ID)
	assert.Equal(t, chat.MessageID(2), next(t, early).ID)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	var unsubscribed int
	r.OnUnsubscribe(func(*Subscription) { unsubscribed++ })

	a, err := r.Subscribe(room)
	require.NoError(t, err)
	b, err := r.Subscribe(room)
	require.NoError(t, err)

	r.Unsubscribe(a)
	r.Unsubscribe(a)
	a.Close()
	r.Unsubscribe(nil)

	assert.Equal(t, 1, r.Subscribers(room))
	assert.Equal(t, int64(1), r.Stats().Subscriptions)
	assert.Equal(t, 1, unsubscribed)

	r.Unsubscribe(b)
	r.Unsubscribe(b)

	assert.Zero(t, r.Subscribers(room))
	assert.Zero(t, r.Stats().Subscriptions)
	assert.Equal(t, 2, unsubscribed)
}

func TestEviction_FreshTopicAfterLastSubscriberLeaves(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	sub, err := r.Subscribe(room)
	require.NoError(t, err)
	stale := r.lookup(room)
	require.NotNil(t, stale)

	sub.Close()

	assert.Zero(t, r.Topics())
	assert.Nil(t, r.lookup(room))

	fresh := r.getOrCreate(room)
	assert.NotSame(t, stale, fresh)
	assert.Zero(t, fresh.Len())

	again, err := r.Subscribe(room)
	require.NoError(t, err)
	assert.Same(t, fresh, again.topic)
	assert.Equal(t, 1, r.Subscribers(room))
	again.Close()
	assert.Zero(t, r.Topics())
}

func TestOverflow(t *testing.T) {
	tests := []struct {
		policy      OverflowPolicy
		want        []chat.MessageID
		wantDropped []chat.MessageID
	}{
		{DropOldest, []chat.MessageID{4, 5, 6, 7, 8}, []chat.MessageID{1, 2, 3}},
		{DropNewest, []chat.MessageID{1, 2, 3, 4, 5}, []chat.MessageID{6, 7, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			r := New(64, DropOldest)
			defer r.Close()

			var drops []chat.MessageID
			r.OnDrop(func(_ *Subscription, m chat.Message) { drops = append(drops, m.ID) })

			sub, err := r.Subscribe(room, WithQueueSize(5), WithOverflowPolicy(tt.policy))
			require.NoError(t, err)
			require.Equal(t, 5, sub.Cap())

			for i := 1; i <= 8; i++ {
				assert.Equal(t, 1, r.Publish(room, msg(i)))
			}

			assert.Equal(t, 5, sub.Len())
			assert.Equal(t, uint64(3), sub.Dropped())
			assert.Equal(t, uint64(3), r.Stats().Dropped)
			assert.Equal(t, tt.wantDropped, drops)

			got := make([]chat.MessageID, 0, 5)
			for range 5 {
				got = append(got, next(t, sub).ID)
			}
			assert.Equal(t, tt.want, got)
			for _, id := range tt.wantDropped {
				assert.NotContains(t, got, id, "dropped message %d was delivered", id)
			}
		})
	}
}

func TestNext_ContextCancelled(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	sub, err := r.Subscribe(room)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(ctx)
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after cancel")
	}
}

func TestNext_WakesOnPublishAndClose(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	sub, err := r.Subscribe(room)
	require.NoError(t, err)

	got := make(chan chat.Message, 1)
	go func() {
		m, err := sub.Next(context.Background())
		if err == nil {
			got <- m
		}
		close(got)
	}()

	r.Publish(room, msg(9))
	select {
	case m := <-got:
		assert.Equal(t, chat.MessageID(9), m.ID)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on publish")
	}

	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()

	sub.Close()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, chat.ErrSubscriptionClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on close")
	}

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestClose_CancelsSubscriptionsAndRejectsNew(t *testing.T) {
	r := New(4, DropOldest)

	a, err := r.Subscribe(1)
	require.NoError(t, err)
	b, err := r.Subscribe(2)
	require.NoError(t, err)

	r.Close()
	r.Close()

	for _, sub := range []*Subscription{a, b} {
		_, err := sub.Next(context.Background())
		require.ErrorIs(t, err, chat.ErrSubscriptionClosed)
	}
	assert.Zero(t, r.Topics())

	_, err = r.Subscribe(1)
	require.ErrorIs(t, err, ErrRegistryClosed)
}

func TestSetDefaults_AppliesToNewSubscriptions(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	before, err := r.Subscribe(room)
	require.NoError(t, err)

	r.SetDefaults(2, DropNewest)
	after, err := r.Subscribe(room)
	require.NoError(t, err)

	assert.Equal(t, 4, before.Cap())
	assert.Equal(t, DropOldest, before.Policy())
	assert.Equal(t, 2, after.Cap())
	assert.Equal(t, DropNewest, after.Policy())
}

func TestHooks_PanicIsRecovered(t *testing.T) {
	r := New(4, DropOldest)
	defer r.Close()

	var recovered []string
	r.OnPanic(func(hook string, _ any) { recovered = append(recovered, hook) })
	r.OnPublish(func(chat.RoomID, chat.Message, int) { panic("boom") })

	sub, err := r.Subscribe(room)
	require.NoError(t, err)

	assert.NotPanics(t, func() { r.Publish(room, msg(1)) })
	assert.Equal(t, []string{"publish"}, recovered)
	assert.Equal(t, 1, sub.Len())
}

func TestConcurrentChurn_LeavesNoTopics(t *testing.T) {
	r := New(8, DropOldest)
	defer r.Close()

	const workers = 16
	var wg sync.WaitGroup

	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rm := chat.RoomID(w % 4)
			for i := range 200 {
				sub, err := r.Subscribe(rm)
				if err != nil {
					t.Error(err)
					return
				}
				r.Publish(rm, msg(i))
				sub.Close()
			}
		}()
	}

	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				r.Publish(chat.RoomID(w), msg(i))
			}
		}()
	}

	wg.Wait()

	assert.Zero(t, r.Topics())
	assert.Zero(t, r.Stats().Subscriptions)
}

func TestConcurrentConsumers_PreserveOrder(t *testing.T) {
	r := New(256, DropOldest)
	defer r.Close()

	const (
		consumers = 8
		messages  = 200
	)

	subs := make([]*Subscription, consumers)
	for i := range subs {
		sub, err := r.Subscribe(room)
		require.NoError(t, err)
		subs[i] = sub
	}

	results := make([][]chat.MessageID, consumers)
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for range messages {
				m, err := sub.Next(ctx)
				if err != nil {
					return
				}
				results[i] = append(results[i], m.ID)
			}
		}()
	}

	for i := 1; i <= messages; i++ {
		r.Publish(room, msg(i))
	}
	wg.Wait()

	for i := range consumers {
		require.Len(t, results[i], messages)
		for j, id := range results[i] {
			assert.Equal(t, chat.MessageID(j+1), id)
		}
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	p, err := ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropOldest, p)

	p, err = ParseOverflowPolicy("drop-newest")
	require.NoError(t, err)
	assert.Equal(t, DropNewest, p)

	_, err = ParseOverflowPolicy("block")
	assert.Error(t, err)
}
