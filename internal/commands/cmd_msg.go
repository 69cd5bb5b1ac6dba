package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/printer"
	"github.com/colonyops/parley/internal/transport/httpapi"
	"github.com/colonyops/parley/pkg/iojson"
)

type MsgCmd struct {
	flags *Flags

	server   string
	user     string
	password string

	// send flags
	replyTo int64
	media   string

	// history flags
	offset int
	count  int

	jsonOut bool
	ws      bool
}

// NewMsgCmd creates a new msg command.
func NewMsgCmd(flags *Flags) *MsgCmd {
	return &MsgCmd{flags: flags}
}

// Register adds the msg command to the application.
func (cmd *MsgCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "msg",
		Usage: "Send, read and follow room messages",
		Description: `Message commands talk to a running parley server over HTTP using Basic
credentials from --user and --password.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "server base URL",
				Sources:     cli.EnvVars("PARLEY_SERVER"),
				Value:       "http://localhost:8080",
				Destination: &cmd.server,
			},
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "username",
				Sources:     cli.EnvVars("PARLEY_USER"),
				Destination: &cmd.user,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "password (prompted when omitted)",
				Sources:     cli.EnvVars("PARLEY_PASSWORD"),
				Destination: &cmd.password,
			},
		},
		Commands: []*cli.Command{
			cmd.sendCmd(),
			cmd.historyCmd(),
			cmd.tailCmd(),
		},
	})

	return app
}

func (cmd *MsgCmd) sendCmd() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message to a room",
		UsageText: "parley msg send <room> [message]",
		Description: `Sends a message. The content is taken from the arguments after the room,
or from stdin when none are given.

Examples:
  parley msg send general "hello"
  echo "build finished" | parley msg send 3
  parley msg send general --media ./cat.png`,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "reply-to",
				Usage:       "id of the message being answered",
				Destination: &cmd.replyTo,
			},
			&cli.StringFlag{
				Name:        "media",
				Usage:       "upload a file and send its URL as a media message",
				Destination: &cmd.media,
			},
		},
		Action: cmd.runSend,
	}
}

func (cmd *MsgCmd) historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show recent messages of a room",
		UsageText: "parley msg history [--count n] [--offset n] <room>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "offset",
				Usage:       "skip this many of the newest messages",
				Destination: &cmd.offset,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "number of messages (server default when 0)",
				Destination: &cmd.count,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOut,
			},
		},
		Action: cmd.runHistory,
	}
}

func (cmd *MsgCmd) tailCmd() *cli.Command {
	return &cli.Command{
		Name:      "tail",
		Usage:     "Follow a room's live messages",
		UsageText: "parley msg tail [--ws] <room>",
		Description: `Prints messages as they are sent until interrupted. Messages sent while
not connected are not replayed; use 'parley msg history' to catch up.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "ws",
				Usage:       "use the websocket endpoint instead of the NDJSON stream",
				Destination: &cmd.ws,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print each message as JSON",
				Destination: &cmd.jsonOut,
			},
		},
		Action: cmd.runTail,
	}
}

func (cmd *MsgCmd) client() (*httpapi.Client, error) {
	if cmd.user == "" {
		return nil, fmt.Errorf("--user is required")
	}
	password, err := readPassword(cmd.password, "Password for "+cmd.user+": ")
	if err != nil {
		return nil, err
	}
	return &httpapi.Client{BaseURL: cmd.server, Username: cmd.user, Password: password}, nil
}

func (cmd *MsgCmd) runSend(ctx context.Context, c *cli.Command) error {
	room := c.Args().First()
	if room == "" {
		return fmt.Errorf("room is required")
	}

	client, err := cmd.client()
	if err != nil {
		return err
	}

	req := httpapi.SendRequest{}
	if cmd.replyTo > 0 {
		id := chat.MessageID(cmd.replyTo)
		req.ReplyTo = &id
	}

	switch {
	case cmd.media != "":
		f, err := os.Open(cmd.media)
		if err != nil {
			return fmt.Errorf("open media: %w", err)
		}
		defer func() { _ = f.Close() }()

		url, err := client.Upload(ctx, f)
		if err != nil {
			return err
		}
		req.Content = url
		req.IsMedia = true
	case c.Args().Len() > 1:
		req.Content = strings.Join(c.Args().Slice()[1:], " ")
	default:
		bits, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		req.Content = strings.TrimRight(string(bits), "\n")
	}

	msg, err := client.Send(ctx, room, req)
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Sent message %d", msg.ID)
	return nil
}

func (cmd *MsgCmd) runHistory(ctx context.Context, c *cli.Command) error {
	room := c.Args().First()
	if room == "" {
		return fmt.Errorf("room is required")
	}

	client, err := cmd.client()
	if err != nil {
		return err
	}

	msgs, err := client.History(ctx, room, cmd.offset, cmd.count)
	if err != nil {
		return err
	}

	if cmd.jsonOut {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, msgs)
	}

	p := printer.New(c.Root().Writer)
	for _, m := range msgs {
		p.Message(m, "")
	}
	return nil
}

func (cmd *MsgCmd) runTail(ctx context.Context, c *cli.Command) error {
	room := c.Args().First()
	if room == "" {
		return fmt.Errorf("room is required")
	}

	client, err := cmd.client()
	if err != nil {
		return err
	}

	out := c.Root().Writer
	p := printer.New(out)
	emit := func(m chat.Message) error {
		if cmd.jsonOut {
			return iojson.WriteWith(out, c.Root().ErrWriter, m)
		}
		p.Message(m, "")
		return nil
	}

	printer.Ctx(ctx).Infof("following %s (ctrl-c to stop)", room)
	if cmd.ws {
		return client.StreamWebsocket(ctx, room, emit)
	}
	return client.Stream(ctx, room, emit)
}
