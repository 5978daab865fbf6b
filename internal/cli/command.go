package cli

import (
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/urfave/cli/v2"

	"github.com/fetchkit/go-apirequest/pkg/client"
	"github.com/fetchkit/go-apirequest/pkg/config"
	"github.com/fetchkit/go-apirequest/pkg/logging"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// output is the printed form of the client.Outcome.
type output struct {
	Value    any            `json:"value"`
	Status   int            `json:"status,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
	Failure  *outputFailure `json:"failure,omitempty"`
}

type outputFailure struct {
	Kind  request.FailureKind `json:"kind"`
	Error string              `json:"error"`
}

func newVerbCommand(verb request.Verb) *cli.Command {
	name := strings.ToLower(verb.String())
	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("Send the %s call to the endpoint.", verb),
		ArgsUsage: "[endpoint]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "data",
				Usage:   `payload field "key=value", can be repeated.`,
				Aliases: []string{"d"},
			},
			&cli.BoolFlag{
				Name:  "form",
				Usage: "send the payload form-encoded instead of JSON.",
			},
			&cli.StringSliceFlag{
				Name:    "header",
				Usage:   `request header "Name: value", can be repeated.`,
				Aliases: []string{"H"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log the diagnostic entry if the call fails.",
			},
		},
		Action: func(ctx *cli.Context) error {
			return verbAction(ctx, verb)
		},
	}
}

func verbAction(ctx *cli.Context, verb request.Verb) error {
	log := logging.LoggerFromContextOrNop(ctx.Context)

	cfg, err := config.Parse(config.ParseOptions{
		Cli:       ctx,
		Defaults:  config.DefaultConfig,
		EnvPrefix: config.EnvPrefix,
		FileName:  ctx.Path("config"),
		Log:       log,
	})
	if err != nil {
		return err
	}

	c, err := cfg.NewClient(log, ctx.App.ErrWriter)
	if err != nil {
		return err
	}

	opts, err := optionsFromFlags(ctx, verb, cfg.Debug)
	if err != nil {
		return err
	}

	out := c.Execute(ctx.Context, opts)
	if err := printOutcome(ctx, out); err != nil {
		return err
	}
	if out.Failed() {
		return ErrCallFailed
	}
	return nil
}

func optionsFromFlags(ctx *cli.Context, verb request.Verb, debug bool) (request.Options, error) {
	opts := request.Options{
		Endpoint: ctx.Args().First(),
		Verb:     verb,
		Debug:    debug,
		Headers:  make(http.Header),
	}

	// Payload
	var pairs []orderedmap.Pair
	for _, item := range ctx.StringSlice("data") {
		key, value, found := strings.Cut(item, "=")
		if !found || key == "" {
			return opts, fmt.Errorf(`data "%s" is not valid, expected "key=value"`, item)
		}
		pairs = append(pairs, orderedmap.Pair{Key: key, Value: value})
	}
	if ctx.Bool("form") {
		form := request.NewForm()
		for _, pair := range pairs {
			form.Append(pair.Key, pair.Value.(string))
		}
		opts.Payload = form
	} else {
		opts.Payload = request.NewJSON(pairs...)
	}

	// Headers
	for _, item := range ctx.StringSlice("header") {
		name, value, found := strings.Cut(item, ":")
		if !found || strings.TrimSpace(name) == "" {
			return opts, fmt.Errorf(`header "%s" is not valid, expected "Name: value"`, item)
		}
		opts.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	return opts, opts.Validate()
}

func printOutcome(ctx *cli.Context, out client.Outcome) error {
	v := output{Value: out.Value, Status: out.Status}
	if out.Redirect != nil {
		v.Redirect = out.Redirect.String()
	}
	if out.Failure != nil {
		v.Failure = &outputFailure{Kind: out.Failure.Kind, Error: out.Failure.Error()}
	}

	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode outcome: %w", err)
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(bytes))
	return err
}
