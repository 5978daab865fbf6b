// Package cli implements the apirequest command line application.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/fetchkit/go-apirequest/pkg/logging"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

const (
	appName  = "apirequest"
	appUsage = `Send one API call, the outcome is printed as JSON.`
)

// ErrCallFailed is returned if the outcome of the call is a failure.
var ErrCallFailed = errors.New("call failed")

// NewApp creates the application, the outcome is written to stdout, traces and logs to stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	app := &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Writer:          stdout,
		ErrWriter:       stderr,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "set the log format. Options: production, development.",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load the configuration from a JSON file.",
				Aliases: []string{"c"},
			},
			// client flags
			&cli.StringFlag{
				Name:     "location",
				Usage:    "the page location, relative endpoints are resolved against it.",
				Aliases:  []string{"l"},
				Category: "client",
			},
			&cli.StringFlag{
				Name:     "user-agent",
				Usage:    "the User-Agent header.",
				Category: "client",
			},
			&cli.BoolFlag{
				Name:     "http2",
				Usage:    "force HTTP/2 transport.",
				Category: "client",
			},
			&cli.StringFlag{
				Name:     "trace",
				Usage:    "write the trace of the call to stderr. Options: log, dump.",
				Category: "client",
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := logging.New(ctx.String("log-level"), ctx.String("log-format"))
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)
			return nil
		},
		After: func(ctx *cli.Context) error {
			_ = logging.LoggerFromContextOrNop(ctx.Context).Sync()
			return nil
		},
	}

	for _, verb := range request.Verbs() {
		app.Commands = append(app.Commands, newVerbCommand(verb))
	}

	return app
}

// Run runs the application with the arguments, args[0] is the program name.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	return NewApp(stdout, stderr).RunContext(ctx, args)
}
