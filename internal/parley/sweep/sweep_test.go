package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/parley/internal/core/chat"
)

type countingStore struct {
	chat.MessageStore
	calls atomic.Int32
}

func (s *countingStore) Prune(_ context.Context, olderThan time.Duration) (int, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestStart_PrunesOnInterval(t *testing.T) {
	store := &countingStore{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Start(ctx, store, time.Hour, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestStart_DisabledWithoutRetention(t *testing.T) {
	store := &countingStore{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	Start(ctx, store, 0, time.Millisecond)
	assert.Zero(t, store.calls.Load())
}
