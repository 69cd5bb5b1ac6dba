// Package httpapi exposes parley over HTTP: JSON request/response endpoints,
// newline-delimited JSON streams and websockets.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/logging"
	"github.com/colonyops/parley/internal/parley"
)

// maxBodySize bounds JSON request bodies. Message content has its own,
// smaller limit.
const maxBodySize = 1 << 20

// Server serves the parley HTTP API.
type Server struct {
	app      *parley.App
	cfg      config.ServerConfig
	stream   config.StreamConfig
	origins  atomic.Pointer[[]string]
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func New(app *parley.App) *Server {
	s := &Server{
		app:    app,
		cfg:    app.Config.Server,
		stream: app.Config.Stream,
		logger: logging.Component("http"),
	}
	s.SetAllowedOrigins(app.Config.Server.AllowedOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetAllowedOrigins replaces the websocket origin allow-list.
func (s *Server) SetAllowedOrigins(patterns []string) {
	cp := append([]string(nil), patterns...)
	s.origins.Store(&cp)
}

// Handler returns the routed handler wrapped in request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /users/register", s.handleRegister)
	mux.HandleFunc("POST /users/login", s.handleLogin)
	mux.HandleFunc("GET /users/{id}", s.handleGetUser)
	mux.HandleFunc("PATCH /users/me", s.authed(s.handleUpdateProfile))
	mux.HandleFunc("GET /me/rooms", s.authed(s.handleMyRooms))

	mux.HandleFunc("GET /rooms", s.authed(s.handleListRooms))
	mux.HandleFunc("POST /rooms", s.authed(s.handleCreateRoom))
	mux.HandleFunc("GET /rooms/{ref}", s.authed(s.handleGetRoom))
	mux.HandleFunc("PATCH /rooms/{ref}", s.authed(s.handleUpdateRoom))
	mux.HandleFunc("DELETE /rooms/{ref}", s.authed(s.handleDeleteRoom))
	mux.HandleFunc("POST /rooms/{ref}/join", s.authed(s.handleJoinRoom))
	mux.HandleFunc("POST /rooms/{ref}/leave", s.authed(s.handleLeaveRoom))
	mux.HandleFunc("GET /rooms/{ref}/members", s.authed(s.handleMembers))

	mux.HandleFunc("POST /rooms/{ref}/messages", s.authed(s.handleSend))
	mux.HandleFunc("GET /rooms/{ref}/messages", s.authed(s.handleHistory))
	mux.HandleFunc("PATCH /messages/{id}", s.authed(s.handleEdit))
	mux.HandleFunc("DELETE /messages/{id}", s.authed(s.handleDelete))

	mux.HandleFunc("GET /rooms/{ref}/stream", s.handleStream)
	mux.HandleFunc("GET /rooms/{ref}/ws", s.handleWebsocket)

	mux.HandleFunc("POST /media", s.authed(s.handleUpload))
	mux.HandleFunc("GET /media/{name}", s.handleMedia)

	return s.withRequestID(s.withAccessLog(mux))
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully. Open streams end when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"pubsub": s.app.Registry.Stats(),
	}
	status := http.StatusOK
	if err := s.app.DB.Ping(r.Context()); err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
