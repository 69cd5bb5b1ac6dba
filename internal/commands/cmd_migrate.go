package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/parley/internal/printer"
)

type MigrateCmd struct {
	flags *Flags
	steps int
}

// NewMigrateCmd creates a new migrate command.
func NewMigrateCmd(flags *Flags) *MigrateCmd {
	return &MigrateCmd{flags: flags}
}

// Register adds the migrate command to the application.
func (cmd *MigrateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Description: `Schema migrations are applied automatically when the server starts.
These commands inspect or change the schema explicitly.`,
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: cmd.runUp,
			},
			{
				Name:  "down",
				Usage: "Revert applied migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Aliases:     []string{"n"},
						Usage:       "number of migrations to revert",
						Value:       1,
						Destination: &cmd.steps,
					},
				},
				Action: cmd.runDown,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: cmd.runStatus,
			},
		},
	})

	return app
}

func (cmd *MigrateCmd) runUp(ctx context.Context, _ *cli.Command) error {
	database, err := cmd.flags.openDB(true)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := database.MigrateUp(ctx); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Schema is up to date")
	return nil
}

func (cmd *MigrateCmd) runDown(ctx context.Context, _ *cli.Command) error {
	if cmd.steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}

	database, err := cmd.flags.openDB(true)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := database.MigrateDown(ctx, cmd.steps); err != nil {
		return err
	}
	printer.Ctx(ctx).Successf("Reverted %d migration(s)", cmd.steps)
	return nil
}

func (cmd *MigrateCmd) runStatus(ctx context.Context, c *cli.Command) error {
	database, err := cmd.flags.openDB(true)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	states, err := database.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, s := range states {
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.Local().Format(time.DateTime)
		}
		_, _ = fmt.Fprintf(w, "%04d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	return w.Flush()
}
