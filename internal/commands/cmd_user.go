package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/parley/internal/printer"
	"github.com/colonyops/parley/pkg/iojson"
)

type UserCmd struct {
	flags *Flags

	name     string
	password string
	jsonOut  bool
}

// NewUserCmd creates a new user command.
func NewUserCmd(flags *Flags) *UserCmd {
	return &UserCmd{flags: flags}
}

// Register adds the user command to the application.
func (cmd *UserCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "user",
		Usage: "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Register a new account",
				UsageText: "parley user add [--name <display name>] <username>",
				Description: `Registers an account directly in the database.

The password is read from --password, $PARLEY_PASSWORD, an interactive prompt,
or the first line of stdin.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "name",
						Usage:       "display name (defaults to the username)",
						Destination: &cmd.name,
					},
					&cli.StringFlag{
						Name:        "password",
						Sources:     cli.EnvVars("PARLEY_PASSWORD"),
						Usage:       "account password",
						Destination: &cmd.password,
					},
				},
				Action: cmd.runAdd,
			},
			{
				Name:      "show",
				Usage:     "Show an account",
				UsageText: "parley user show <username>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOut,
					},
				},
				Action: cmd.runShow,
			},
		},
	})

	return app
}

func (cmd *UserCmd) runAdd(ctx context.Context, c *cli.Command) error {
	username := c.Args().First()
	if username == "" {
		return fmt.Errorf("username is required")
	}

	password, err := readPassword(cmd.password, "Password: ")
	if err != nil {
		return err
	}

	app, closer, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	acct, err := app.Accounts.Register(ctx, username, cmd.name, password)
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Created account %s (id %d)", acct.Username, acct.ID)
	return nil
}

func (cmd *UserCmd) runShow(ctx context.Context, c *cli.Command) error {
	username := c.Args().First()
	if username == "" {
		return fmt.Errorf("username is required")
	}

	app, closer, err := cmd.flags.openApp(ctx)
	if err != nil {
		return err
	}
	defer closer()

	acct, err := app.Accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if cmd.jsonOut {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, acct)
	}

	p := printer.New(c.Root().Writer)
	p.Section(acct.Username)
	p.Item("id", fmt.Sprint(acct.ID))
	p.Item("name", acct.Name)
	if acct.Status != "" {
		p.Item("status", acct.Status)
	}
	if acct.Bio != "" {
		p.Item("bio", acct.Bio)
	}
	p.Item("created", acct.CreatedAt.Local().Format("2006-01-02 15:04"))
	return nil
}
