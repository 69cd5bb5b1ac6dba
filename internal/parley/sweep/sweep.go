// Package sweep prunes messages that have outlived the retention window.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/parley/internal/core/chat"
)

// Start prunes messages older than retention every interval. It blocks
// until the context is cancelled. A non-positive retention disables the
// sweep.
func Start(ctx context.Context, store chat.MessageStore, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Once(ctx, store, retention)
		}
	}
}

// Once runs a single prune pass.
func Once(ctx context.Context, store chat.MessageStore, retention time.Duration) {
	n, err := store.Prune(ctx, retention)
	if err != nil {
		log.Debug().Err(err).Msg("message sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("pruned", n).Dur("retention", retention).Msg("pruned expired messages")
	}
}
