package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies request, connection, account and room identifiers from
// the event context onto log events written with .Ctx(ctx).
type ContextHook struct{}

func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if id := GetRequestID(ctx); id != "" {
		e.Str("request_id", id)
	}
	if id := GetConnID(ctx); id != "" {
		e.Str("conn_id", id)
	}
	if id := GetAccountID(ctx); id != 0 {
		e.Int64("account_id", id)
	}
	if id := GetRoomID(ctx); id != 0 {
		e.Int64("room_id", id)
	}
}
