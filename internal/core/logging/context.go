package logging

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	connIDKey    contextKey = "conn_id"
	accountIDKey contextKey = "account_id"
	roomIDKey    contextKey = "room_id"
)

// WithRequestID adds an HTTP request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithConnID adds a streaming connection ID to the context.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// WithAccountID adds the authenticated account to the context.
func WithAccountID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

// WithRoomID adds the room being served to the context.
func WithRoomID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, roomIDKey, id)
}

// GetRequestID returns the request ID, or "" if not present.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetConnID returns the connection ID, or "" if not present.
func GetConnID(ctx context.Context) string {
	if id, ok := ctx.Value(connIDKey).(string); ok {
		return id
	}
	return ""
}

// GetAccountID returns the account ID, or 0 if not present.
func GetAccountID(ctx context.Context) int64 {
	if id, ok := ctx.Value(accountIDKey).(int64); ok {
		return id
	}
	return 0
}

// GetRoomID returns the room ID, or 0 if not present.
func GetRoomID(ctx context.Context) int64 {
	if id, ok := ctx.Value(roomIDKey).(int64); ok {
		return id
	}
	return 0
}
