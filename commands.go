package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"slack-handler/internal/message"
)

const defaultFetchLimit = 10

func channelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "channel",
		Aliases: []string{"c"},
		Usage:   "channel ID (e.g. G016KSW5GA1, C0117N64B47); defaults to SLACK_CHANNEL_ID",
	}
}

func formatFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "output as JSON"},
		&cli.BoolFlag{Name: "yaml", Usage: "output as YAML"},
	}
}

func fetchCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "fetch the latest messages",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   defaultFetchLimit,
				Usage:   "number of messages to fetch",
			},
			channelFlag(),
		}, formatFlags()...),
		Action: func(c *cli.Context) error {
			mode, err := outputFormat(c)
			if err != nil {
				return err
			}
			limit := c.Int("limit")
			if limit < 0 {
				return &ValidationError{Msg: fmt.Sprintf("limit must not be negative, got %d", limit)}
			}

			client, err := e.newClient(c)
			if err != nil {
				return err
			}
			raws, err := client.FetchHistory(c.Context, c.String("channel"), limit)
			if err != nil {
				return err
			}

			n := &message.Normalizer{
				Resolver: client,
				Location: e.location,
				Log:      e.log.WithField("component", "normalizer"),
			}
			return renderMessages(e.stdout, mode, n.Normalize(c.Context, raws))
		},
	}
}

func postCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "post a message (reads stdin when no message is given)",
		ArgsUsage: "[MESSAGE...]",
		Description: "-c/--channel and --json may also follow the message words. Words after\n" +
			"   a bare -- are always part of the message.",
		Flags: []cli.Flag{
			channelFlag(),
			&cli.BoolFlag{Name: "json", Usage: "output the acknowledgment as JSON"},
		},
		Action: func(c *cli.Context) error {
			words, trailing, err := splitPostArgs(c.Args().Slice())
			if err != nil {
				return err
			}
			text, err := e.messageText(words)
			if err != nil {
				return err
			}
			if text == "" {
				return &ValidationError{Msg: "No message provided"}
			}

			client, err := e.newClient(c)
			if err != nil {
				return err
			}
			channel := c.String("channel")
			if trailing.channel != "" {
				channel = trailing.channel
			}
			ack, err := client.PostMessage(c.Context, text, channel)
			if err != nil {
				return err
			}

			mode := modeHuman
			if c.Bool("json") || trailing.json {
				mode = modeJSON
			}
			return renderPostAck(e.stdout, mode, ack)
		},
	}
}

func channelsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "channels",
		Usage: "list available public and private channels",
		Flags: formatFlags(),
		Action: func(c *cli.Context) error {
			mode, err := outputFormat(c)
			if err != nil {
				return err
			}

			client, err := e.newClient(c)
			if err != nil {
				return err
			}
			channels, err := client.ListChannels(c.Context)
			if err != nil {
				return err
			}
			return renderChannels(e.stdout, mode, channels)
		},
	}
}

type postFlags struct {
	channel string
	json    bool
}

// splitPostArgs pulls -c/--channel and --json out of the positional words.
// The flag parser stops at the first word, so these land here when they
// follow the message.
func splitPostArgs(args []string) ([]string, postFlags, error) {
	var (
		words []string
		flags postFlags
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(words, args[i+1:]...), flags, nil
		case arg == "-c" || arg == "--channel":
			if i+1 >= len(args) {
				return nil, flags, &ValidationError{Msg: fmt.Sprintf("flag needs an argument: %s", arg)}
			}
			i++
			flags.channel = args[i]
		case strings.HasPrefix(arg, "--channel="):
			flags.channel = strings.TrimPrefix(arg, "--channel=")
		case strings.HasPrefix(arg, "-c="):
			flags.channel = strings.TrimPrefix(arg, "-c=")
		case arg == "--json":
			flags.json = true
		default:
			words = append(words, arg)
		}
	}
	return words, flags, nil
}

// messageText joins the positional words, or reads all of stdin when there
// are none. The result is trimmed.
func (e *env) messageText(words []string) (string, error) {
	if len(words) > 0 {
		return strings.TrimSpace(strings.Join(words, " ")), nil
	}

	if f, ok := e.stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintln(e.stderr, "Enter message (Ctrl+D to send):")
	}
	data, err := io.ReadAll(e.stdin)
	if err != nil {
		return "", errors.Wrap(err, "reading message from stdin")
	}
	return strings.TrimSpace(string(data)), nil
}

func outputFormat(c *cli.Context) (outputMode, error) {
	switch {
	case c.Bool("json") && c.Bool("yaml"):
		return "", &ValidationError{Msg: "--json and --yaml are mutually exclusive"}
	case c.Bool("json"):
		return modeJSON, nil
	case c.Bool("yaml"):
		return modeYAML, nil
	default:
		return modeHuman, nil
	}
}
