package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/parley"
	"github.com/colonyops/parley/internal/printer"
	"github.com/colonyops/parley/pkg/iojson"
)

type RoomCmd struct {
	flags *Flags

	user    string
	title   string
	about   string
	jsonOut bool
}

// NewRoomCmd creates a new room command.
func NewRoomCmd(flags *Flags) *RoomCmd {
	return &RoomCmd{flags: flags}
}

// Register adds the room command to the application.
func (cmd *RoomCmd) Register(app *cli.Command) *cli.Command {
	userFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "username to act as",
			Sources:     cli.EnvVars("PARLEY_USER"),
			Destination: &cmd.user,
		}
	}
	jsonFlag := func() cli.Flag {
		return &cli.BoolFlag{
			Name:        "json",
			Usage:       "output as JSON",
			Destination: &cmd.jsonOut,
		}
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:  "room",
		Usage: "Manage rooms and memberships",
		Description: `Room commands operate directly on the database. Rooms are addressed by
numeric id or by name.`,
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a room owned by --user",
				UsageText: "parley room create --user <owner> [--title <title>] <name>",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "title", Usage: "display title", Destination: &cmd.title},
					&cli.StringFlag{Name: "about", Usage: "room description", Destination: &cmd.about},
				},
				Action: cmd.runCreate,
			},
			{
				Name:      "join",
				Usage:     "Add --user to a room",
				UsageText: "parley room join --user <username> <room>",
				Flags:     []cli.Flag{userFlag()},
				Action:    cmd.runJoin,
			},
			{
				Name:      "leave",
				Usage:     "Remove --user from a room",
				UsageText: "parley room leave --user <username> <room>",
				Flags:     []cli.Flag{userFlag()},
				Action:    cmd.runLeave,
			},
			{
				Name:      "ls",
				Usage:     "List rooms, or the rooms of --user",
				UsageText: "parley room ls [--user <username>]",
				Flags:     []cli.Flag{userFlag(), jsonFlag()},
				Action:    cmd.runList,
			},
			{
				Name:      "members",
				Usage:     "List the members of a room",
				UsageText: "parley room members <room>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    cmd.runMembers,
			},
		},
	})

	return app
}

// withUser opens the app and resolves --user.
func (cmd *RoomCmd) withUser(ctx context.Context, fn func(*parley.App, chat.Account) error) error {
	if cmd.user == "" {
		return fmt.Errorf("--user is required")
	}

	app, closer, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	acct, err := app.Accounts.GetByUsername(ctx, cmd.user)
	if err != nil {
		return fmt.Errorf("user %q: %w", cmd.user, err)
	}
	return fn(app, acct)
}

func roomArg(c *cli.Command) (chat.RoomRef, error) {
	ref := chat.ParseRoomRef(c.Args().First())
	if ref.IsZero() {
		return ref, fmt.Errorf("room is required")
	}
	return ref, nil
}

func (cmd *RoomCmd) runCreate(ctx context.Context, c *cli.Command) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("room name is required")
	}

	return cmd.withUser(ctx, func(app *parley.App, owner chat.Account) error {
		room, err := app.Rooms.Create(ctx, parley.CreateInput{
			Name:  name,
			Title: cmd.title,
			About: cmd.about,
			Owner: owner.ID,
		})
		if err != nil {
			return err
		}
		printer.Ctx(ctx).Successf("Created room %s (id %d)", room.Name, room.ID)
		return nil
	})
}

func (cmd *RoomCmd) runJoin(ctx context.Context, c *cli.Command) error {
	ref, err := roomArg(c)
	if err != nil {
		return err
	}

	return cmd.withUser(ctx, func(app *parley.App, acct chat.Account) error {
		room, err := app.Rooms.Join(ctx, ref, acct.ID)
		if err != nil {
			return err
		}
		printer.Ctx(ctx).Successf("%s joined %s", acct.Username, room.Name)
		return nil
	})
}

func (cmd *RoomCmd) runLeave(ctx context.Context, c *cli.Command) error {
	ref, err := roomArg(c)
	if err != nil {
		return err
	}

	return cmd.withUser(ctx, func(app *parley.App, acct chat.Account) error {
		if err := app.Rooms.Leave(ctx, ref, acct.ID); err != nil {
			return err
		}
		printer.Ctx(ctx).Successf("%s left %s", acct.Username, ref)
		return nil
	})
}

func (cmd *RoomCmd) runList(ctx context.Context, c *cli.Command) error {
	app, closer, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	var rooms []chat.Room
	if cmd.user != "" {
		acct, err := app.Accounts.GetByUsername(ctx, cmd.user)
		if err != nil {
			return fmt.Errorf("user %q: %w", cmd.user, err)
		}
		rooms, err = app.Rooms.ForAccount(ctx, acct.ID)
		if err != nil {
			return err
		}
	} else {
		rooms, err = app.Rooms.List(ctx)
		if err != nil {
			return err
		}
	}

	if cmd.jsonOut {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, rooms)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTITLE\tOWNER")
	for _, r := range rooms {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", r.ID, r.Name, r.Title, r.OwnerID)
	}
	return w.Flush()
}

func (cmd *RoomCmd) runMembers(ctx context.Context, c *cli.Command) error {
	ref, err := roomArg(c)
	if err != nil {
		return err
	}

	app, closer, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	room, err := app.Rooms.Get(ctx, ref)
	if err != nil {
		return err
	}
	members, err := app.RoomStore.Members(ctx, room.ID)
	if err != nil {
		return err
	}

	if cmd.jsonOut {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, members)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tNAME")
	for _, m := range members {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Username, m.Name)
	}
	return w.Flush()
}
