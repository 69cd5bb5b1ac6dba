package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/parley"
)

type streamFunc func(ctx context.Context, room string, fn func(chat.Message) error) error

// follow runs a stream in the background until the test cancels it.
func follow(t *testing.T, stream streamFunc, room string) (<-chan chat.Message, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan chat.Message, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- stream(ctx, room, func(m chat.Message) error {
			msgs <- m
			return nil
		})
	}()
	return msgs, cancel, errc
}

func (e *testEnv) waitSubscribers(t *testing.T, room chat.RoomID, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.app.Registry.Subscribers(room) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func setupHello(t *testing.T, env *testEnv) chat.Room {
	t.Helper()
	ctx := context.Background()
	alice := env.register(t, "alice")
	env.register(t, "bob")

	room, err := env.app.Rooms.Create(ctx, parley.CreateInput{Name: "general", Owner: alice.ID})
	require.NoError(t, err)
	_, err = env.app.Rooms.Join(ctx, chat.RoomRef{Name: "general"}, env.mustID(t, "bob"))
	require.NoError(t, err)
	return room
}

func (e *testEnv) mustID(t *testing.T, username string) chat.AccountID {
	t.Helper()
	acct, err := e.app.Accounts.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return acct.ID
}

func TestStreamEndpoints_Hello(t *testing.T) {
	tests := []struct {
		name   string
		stream func(*Client) streamFunc
	}{
		{"ndjson", func(c *Client) streamFunc { return c.Stream }},
		{"websocket", func(c *Client) streamFunc { return c.StreamWebsocket }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			room := setupHello(t, env)

			msgs, cancel, errc := follow(t, tt.stream(env.client("bob")), "1")
			env.waitSubscribers(t, room.ID, 1)

			sent, err := env.client("alice").Send(context.Background(), "general", SendRequest{Content: "hello"})
			require.NoError(t, err)

			select {
			case got := <-msgs:
				assert.Equal(t, sent.ID, got.ID)
				assert.Equal(t, "hello", got.Content)
				assert.Equal(t, env.mustID(t, "alice"), got.SenderID)
				assert.Equal(t, room.ID, got.RoomID)
			case <-time.After(2 * time.Second):
				t.Fatal("no message streamed")
			}

			cancel()
			require.NoError(t, <-errc)
			env.waitSubscribers(t, room.ID, 0)
		})
	}
}

func TestStreamEndpoints_SetupErrors(t *testing.T) {
	env := newTestEnv(t)
	setupHello(t, env)
	env.register(t, "mallory")

	tests := []struct {
		name   string
		client *Client
		room   string
		want   int
	}{
		{"bad credentials", &Client{BaseURL: env.url, Username: "bob", Password: "nope"}, "general", http.StatusUnauthorized},
		{"no credentials", &Client{BaseURL: env.url}, "general", http.StatusUnauthorized},
		{"unknown room", env.client("bob"), "random", http.StatusNotFound},
		{"not a member", env.client("mallory"), "general", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, stream := range map[string]streamFunc{"ndjson": tt.client.Stream, "websocket": tt.client.StreamWebsocket} {
				err := stream(context.Background(), tt.room, func(chat.Message) error { return nil })

				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr), "%s: got %v", name, err)
				assert.Equal(t, tt.want, apiErr.Status, name)
			}
		})
	}
}

func TestStreamEndpoints_EndOnRegistryClose(t *testing.T) {
	env := newTestEnv(t)
	room := setupHello(t, env)

	_, cancel, errc := follow(t, env.client("bob").Stream, "general")
	defer cancel()
	env.waitSubscribers(t, room.ID, 1)

	env.app.Registry.Close()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end on shutdown")
	}
}

func TestWebsocket_CancelFrame(t *testing.T) {
	env := newTestEnv(t)
	room := setupHello(t, env)

	header := http.Header{}
	header.Set("Authorization", basicAuth("bob", "password1"))
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.url, "http")+"/rooms/general/ws", header)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	env.waitSubscribers(t, room.ID, 1)
	require.NoError(t, conn.WriteJSON(ControlFrame{Type: FrameCancel}))
	env.waitSubscribers(t, room.ID, 0)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebsocket_OriginRejected(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"https://*.example.com"}
	})
	room := setupHello(t, env)

	header := http.Header{}
	header.Set("Authorization", basicAuth("bob", "password1"))
	header.Set("Origin", "https://evil.test")

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.url, "http")+"/rooms/general/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	env.waitSubscribers(t, room.ID, 0)
}

func TestCheckOrigin(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		patterns []string
		origin   string
		host     string
		want     bool
	}{
		{"no origin", nil, "", "chat.example.com", true},
		{"same host without list", nil, "https://chat.example.com", "chat.example.com", true},
		{"cross host without list", nil, "https://evil.test", "chat.example.com", false},
		{"glob on full origin", []string{"https://*.example.com"}, "https://app.example.com", "x", true},
		{"glob on host", []string{"*.example.com"}, "http://app.example.com", "x", true},
		{"scheme mismatch", []string{"https://*.example.com"}, "http://app.example.com", "x", false},
		{"not listed", []string{"https://*.example.com"}, "https://example.org", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.server.SetAllowedOrigins(tt.patterns)
			r := httptest.NewRequest(http.MethodGet, "/rooms/1/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, env.server.checkOrigin(r))
		})
	}
}

func basicAuth(user, pass string) string {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetBasicAuth(user, pass)
	return r.Header.Get("Authorization")
}
