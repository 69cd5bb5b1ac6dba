package parley

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/core/logging"
	"github.com/colonyops/parley/internal/core/pubsub"
)

// StreamState is the lifecycle stage of a stream session.
type StreamState int32

const (
	StateAuthenticating StreamState = iota
	StateResolvingRoom
	StateVerifyingMembership
	StateSubscribed
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateResolvingRoom:
		return "RESOLVING_ROOM"
	case StateVerifyingMembership:
		return "VERIFYING_MEMBERSHIP"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("StreamState(%d)", int32(s))
	}
}

// StreamRequest asks to stream a room's live messages.
type StreamRequest struct {
	Username string
	Password string
	Room     chat.RoomRef
}

// StreamHandler opens stream sessions: it authenticates, resolves the room,
// verifies membership and subscribes.
type StreamHandler struct {
	accounts chat.AccountDirectory
	rooms    chat.RoomDirectory
	registry *pubsub.Registry
	logger   zerolog.Logger
}

func NewStreamHandler(accounts chat.AccountDirectory, rooms chat.RoomDirectory, registry *pubsub.Registry) *StreamHandler {
	return &StreamHandler{
		accounts: accounts,
		rooms:    rooms,
		registry: registry,
		logger:   logging.Component("stream"),
	}
}

// Open runs the setup states. On any failure no subscription exists and
// the returned error is one of chat.ErrAuthenticationFailed,
// chat.ErrRoomNotFound, chat.ErrNotAMember or a wrapped
// chat.ErrStoreUnavailable.
func (h *StreamHandler) Open(ctx context.Context, req StreamRequest) (*Stream, error) {
	s := &Stream{
		id:     uuid.NewString(),
		logger: h.logger,
	}
	s.setState(StateAuthenticating)

	fail := func(err error) (*Stream, error) {
		s.setState(StateClosed)
		h.logger.Debug().Ctx(ctx).Err(err).Str("stream_id", s.id).Msg("stream rejected")
		return nil, err
	}

	account, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return fail(storeErr("authenticate", err))
	}
	s.account = account

	s.setState(StateResolvingRoom)
	room, err := h.rooms.Resolve(ctx, req.Room)
	if err != nil {
		return fail(storeErr("resolve room", err))
	}
	s.room = room

	s.setState(StateVerifyingMembership)
	ok, err := h.rooms.IsMember(ctx, room, account)
	if err != nil {
		return fail(storeErr("check membership", err))
	}
	if !ok {
		return fail(chat.ErrNotAMember)
	}

	sub, err := h.registry.Subscribe(room)
	if err != nil {
		return fail(fmt.Errorf("subscribe: %w", err))
	}
	s.sub = sub
	s.setState(StateSubscribed)

	return s, nil
}

// Stream is one client's live view of a room.
type Stream struct {
	id      string
	account chat.AccountID
	room    chat.RoomID
	sub     *pubsub.Subscription
	state   atomic.Int32
	logger  zerolog.Logger
}

func (s *Stream) ID() string              { return s.id }
func (s *Stream) Account() chat.AccountID { return s.account }
func (s *Stream) Room() chat.RoomID       { return s.room }
func (s *Stream) State() StreamState      { return StreamState(s.state.Load()) }

func (s *Stream) setState(st StreamState) { s.state.Store(int32(st)) }

// Cancel ends the stream. A blocked Run returns promptly.
func (s *Stream) Cancel() {
	s.close()
}

// Run delivers messages to emit until ctx is done, the stream is cancelled,
// the registry shuts down or emit fails. Only an emit failure is returned.
// The subscription is always released before Run returns.
func (s *Stream) Run(ctx context.Context, emit func(chat.Message) error) error {
	defer s.close()

	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			if errors.Is(err, chat.ErrSubscriptionClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := emit(msg); err != nil {
			return fmt.Errorf("emit message %d: %w", msg.ID, err)
		}
	}
}

func (s *Stream) close() {
	if s.sub == nil {
		return
	}
	s.sub.Close()
	if StreamState(s.state.Swap(int32(StateClosed))) != StateClosed {
		s.logger.Debug().
			Str("stream_id", s.id).
			Int64("room_id", int64(s.room)).
			Int64("account_id", int64(s.account)).
			Uint64("dropped", s.sub.Dropped()).
			Msg("stream closed")
	}
}
