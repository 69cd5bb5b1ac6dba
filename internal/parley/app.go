package parley

import (
	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/pubsub"
	"github.com/colonyops/parley/internal/data/db"
	"github.com/colonyops/parley/internal/data/stores"
)

// App is the central entry point for all parley operations.
// Commands and transports consume App instead of cherry-picking raw dependencies.
type App struct {
	Accounts *AccountService
	Rooms    *RoomService
	Messages *MessageService
	Streams  *StreamHandler
	Media    *MediaStore

	AccountStore *stores.AccountStore
	RoomStore    *stores.RoomStore
	MessageStore *stores.MessageStore

	Registry *pubsub.Registry
	Config   *config.Config
	DB       *db.DB
}

type appOptions struct {
	hashCost int
}

// Option customizes NewApp.
type Option func(*appOptions)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) Option {
	return func(o *appOptions) { o.hashCost = cost }
}

// NewApp constructs an App from explicit dependencies. A nil fanout
// publishes straight to registry.
func NewApp(cfg *config.Config, database *db.DB, registry *pubsub.Registry, fanout Fanout, opts ...Option) *App {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	if fanout == nil {
		fanout = LocalFanout{Registry: registry}
	}

	accounts := stores.NewAccountStore(database, o.hashCost)
	rooms := stores.NewRoomStore(database)
	messages := stores.NewMessageStore(database)

	return &App{
		Accounts: NewAccountService(accounts),
		Rooms:    NewRoomService(rooms),
		Messages: NewMessageService(rooms, messages, fanout, cfg.Messages),
		Streams:  NewStreamHandler(accounts, rooms, registry),
		Media:    NewMediaStore(cfg.MediaDir(), cfg.Media.MaxSize),

		AccountStore: accounts,
		RoomStore:    rooms,
		MessageStore: messages,

		Registry: registry,
		Config:   cfg,
		DB:       database,
	}
}
