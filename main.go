package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"slack-handler/internal/config"
	"slack-handler/internal/platform"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1 // any failure, including usage
)

// errUsage is returned when no command was given; help has already been shown.
var errUsage = errors.New("no command given")

// ValidationError is bad user input caught before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// env is everything one invocation reads from or writes to.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// searchFiles are the fallback .env locations used without --env-file.
	searchFiles []string
	// apiURL overrides the Slack API base URL when non-empty.
	apiURL   string
	location *time.Location

	log *logrus.Logger
}

func main() {
	e := &env{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		getenv:      os.Getenv,
		searchFiles: config.DefaultSearchFiles(),
		location:    time.Local,
	}
	os.Exit(run(context.Background(), e, os.Args))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, e *env, args []string) int {
	e.log = logrus.New()
	e.log.SetOutput(e.stderr)
	e.log.SetLevel(logrus.WarnLevel)
	e.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	err := newApp(e).RunContext(ctx, args)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errUsage):
		return ExitError
	default:
		fmt.Fprintf(e.stderr, "❌ Error: %v\n", err)
		return ExitError
	}
}

func newApp(e *env) *cli.App {
	app := cli.NewApp()
	app.Name = "slack-handler"
	app.Usage = "fetch, post, and list Slack conversation data"
	app.Version = "1.0.0"
	app.Writer = e.stdout
	app.ErrWriter = e.stderr
	app.Description = `Examples:
   slack-handler fetch                          # fetch from the default channel
   slack-handler fetch -c G016KSW5GA1           # fetch from another channel
   slack-handler fetch -c C0117N64B47 -n 20     # fetch 20 messages
   slack-handler fetch --json                   # output as JSON
   slack-handler post "Hello"                   # post to the default channel
   slack-handler post -c G016KSW5GA1 "Hello"    # post to another channel
   echo "Hello" | slack-handler post            # post from stdin
   slack-handler channels                       # list channels`
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "fallback KEY=value file for " + config.TokenKey + " and " + config.ChannelKey,
			EnvVars: []string{config.EnvFileKey},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "log API calls and lookup fallbacks to stderr",
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.Bool("debug") {
			e.log.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	app.Commands = []*cli.Command{
		fetchCommand(e),
		postCommand(e),
		channelsCommand(e),
	}
	app.Action = func(c *cli.Context) error {
		if c.Args().Present() {
			fmt.Fprintf(e.stderr, "unknown command %q\n\n", c.Args().First())
		}
		if err := cli.ShowAppHelp(c); err != nil {
			return err
		}
		return errUsage
	}
	return app
}

// loadCredentials resolves credentials for this invocation.
func (e *env) loadCredentials(c *cli.Context) (config.Credentials, error) {
	return config.Load(config.Options{
		Getenv:      e.getenv,
		EnvFile:     c.String("env-file"),
		SearchFiles: e.searchFiles,
	})
}

// newClient loads credentials and builds the Slack client. Nothing here
// touches the network.
func (e *env) newClient(c *cli.Context) (*platform.Client, error) {
	creds, err := e.loadCredentials(c)
	if err != nil {
		return nil, err
	}
	opts := []platform.Option{platform.WithLogger(e.log, c.Bool("debug"))}
	if e.apiURL != "" {
		opts = append(opts, platform.WithAPIURL(e.apiURL))
	}
	return platform.New(creds, opts...)
}
