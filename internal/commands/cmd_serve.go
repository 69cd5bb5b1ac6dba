package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/parley/internal/core/config"
	"github.com/colonyops/parley/internal/core/pubsub"
	"github.com/colonyops/parley/internal/parley"
	"github.com/colonyops/parley/internal/parley/sweep"
	"github.com/colonyops/parley/internal/profiler"
	"github.com/colonyops/parley/internal/relay"
	"github.com/colonyops/parley/internal/transport/httpapi"
)

type ServeCmd struct {
	flags *Flags
	addr  string
	watch bool
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the chat server",
		UsageText: "parley serve [options]",
		Description: `Starts the HTTP API and live message streams.

With redis.enabled, messages are relayed through Redis so clients connected
to any node receive every message of their rooms. The retention sweep runs
when messages.retention is set.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides server.addr)",
				Sources:     cli.EnvVars("PARLEY_ADDR"),
				Destination: &cmd.addr,
			},
			&cli.BoolFlag{
				Name:        "watch",
				Usage:       "reload stream and origin settings when the config file changes",
				Value:       true,
				Destination: &cmd.watch,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if cmd.addr != "" {
		cfg.Server.Addr = cmd.addr
	}

	database, err := cmd.flags.openDB(false)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	registry := pubsub.New(cfg.Stream.QueueSize, cfg.Stream.Policy())
	defer registry.Close()
	pubsub.RegisterDebugLogger(registry, log.Logger.With().Str("cmp", "pubsub").Logger())

	g, ctx := errgroup.WithContext(ctx)

	var fanout parley.Fanout
	if cfg.Redis.Enabled {
		client := relay.NewClient(cfg.Redis)
		defer func() { _ = client.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		r := relay.NewRedis(client, cfg.Redis.ChannelPrefix, registry)
		fanout = r
		g.Go(func() error { return r.Run(ctx) })
	}

	app := parley.NewApp(cfg, database, registry, fanout)
	server := httpapi.New(app)

	g.Go(func() error {
		sweep.Start(ctx, app.MessageStore, cfg.Messages.Retention, cfg.Messages.SweepInterval)
		return nil
	})

	if cfg.Profiler.Enabled {
		prof := profiler.New(cfg.Profiler.Port, registry)
		if err := prof.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return prof.Shutdown(shutdownCtx)
		})
	}

	if cmd.watch && fileExists(cmd.flags.ConfigPath) {
		g.Go(func() error {
			return config.Watch(ctx, cmd.flags.ConfigPath, cfg.DataDir, func(next *config.Config) {
				registry.SetDefaults(next.Stream.QueueSize, next.Stream.Policy())
				server.SetAllowedOrigins(next.Server.AllowedOrigins)
				log.Info().
					Int("queue_size", next.Stream.QueueSize).
					Str("overflow_policy", next.Stream.OverflowPolicy).
					Msg("config reloaded")
			})
		})
	}

	g.Go(func() error {
		err := server.Run(ctx)
		// Registry shutdown ends any stream still attached.
		registry.Close()
		return err
	})

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("database", cfg.Database.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Msg("parley started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
