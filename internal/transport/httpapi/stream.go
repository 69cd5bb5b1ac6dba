package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gorilla/websocket"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/logging"
	"github.com/colonyops/parley/internal/parley"
)

// ControlFrame is a client-to-server websocket message.
type ControlFrame struct {
	Type string `json:"type"`
}

// FrameCancel asks the server to end the stream.
const FrameCancel = "cancel"

// openStream authenticates with Basic credentials and opens a stream for
// the room in the request path. Failures are written as JSON errors.
func (s *Server) openStream(w http.ResponseWriter, r *http.Request) (*parley.Stream, context.Context, bool) {
	username, password, _ := r.BasicAuth()

	stream, err := s.app.Streams.Open(r.Context(), parley.StreamRequest{
		Username: username,
		Password: password,
		Room:     roomRef(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}

	ctx := logging.WithConnID(r.Context(), stream.ID())
	ctx = logging.WithAccountID(ctx, int64(stream.Account()))
	ctx = logging.WithRoomID(ctx, int64(stream.Room()))
	s.logger.Debug().Ctx(ctx).Msg("stream opened")

	return stream, ctx, true
}

// handleStream writes one JSON object per line for every delivered
// message until the client goes away or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	stream, ctx, ok := s.openStream(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	enc := json.NewEncoder(w)
	err := stream.Run(ctx, func(m chat.Message) error {
		if s.cfg.WriteTimeout > 0 {
			_ = rc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := enc.Encode(m); err != nil {
			return err
		}
		return rc.Flush()
	})
	s.logStreamEnd(ctx, err)
}

// handleWebsocket sends one text frame per delivered message. Pings keep
// the connection alive; a {"type":"cancel"} frame from the client or a
// close frame ends the stream.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	stream, ctx, ok := s.openStream(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		stream.Cancel()
		s.logger.Debug().Ctx(ctx).Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ping := s.stream.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pongWait := ping * 2

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame ControlFrame
			if json.Unmarshal(data, &frame) == nil && frame.Type == FrameCancel {
				stream.Cancel()
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ping)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout())); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err = stream.Run(ctx, func(m chat.Message) error {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
		return conn.WriteJSON(m)
	})
	s.logStreamEnd(ctx, err)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	cancel()
	_ = conn.Close()
	wg.Wait()
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout > 0 {
		return s.cfg.WriteTimeout
	}
	return 10 * time.Second
}

func (s *Server) logStreamEnd(ctx context.Context, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug().Ctx(ctx).Err(err).Msg("stream ended by connection error")
		return
	}
	s.logger.Debug().Ctx(ctx).Msg("stream ended")
}

// checkOrigin allows requests without an Origin header, same-host origins
// when no allow-list is configured, and otherwise origins matching one of
// the configured glob patterns.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	patterns := *s.origins.Load()
	if len(patterns) == 0 {
		return u.Host == r.Host
	}

	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, origin); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, u.Host); ok {
			return true
		}
	}

	s.logger.Warn().Ctx(r.Context()).Str("origin", origin).Msg("websocket origin rejected")
	return false
}
