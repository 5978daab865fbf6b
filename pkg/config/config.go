// Package config loads the configuration of the apirequest command.
//
// Layers, from the lowest to the highest priority:
//   - defaults, see DefaultConfig
//   - an optional JSON file
//   - environment variables with the APIREQUEST_ prefix, "__" separates nested keys
//   - command line flags
package config

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fetchkit/go-apirequest/internal/cliflags"
	"github.com/fetchkit/go-apirequest/pkg/client"
	"github.com/fetchkit/go-apirequest/pkg/client/trace"
	"github.com/fetchkit/go-apirequest/pkg/request"
)

const (
	EnvPrefix = "APIREQUEST_"
	TraceLog  = "log"
	TraceDump = "dump"
)

type Config struct {
	// Location is the initial location of the page, relative endpoints are resolved against it.
	Location string `conf:"location"`
	// UserAgent is sent if the call does not set its own.
	UserAgent string `conf:"user_agent"`
	// Debug enables the diagnostic log of failed calls.
	Debug bool `conf:"debug"`
	// HTTP2 forces HTTP/2 transport.
	HTTP2 bool `conf:"http2"`
	// Trace is one of "", "log", "dump".
	Trace string `conf:"trace"`
	// LogLevel is the log level of the application.
	LogLevel string `conf:"log_level"`
	// LogFormat is "production" or "development".
	LogFormat string `conf:"log_format"`
	// Headers are sent with each call.
	Headers map[string]string `conf:"headers"`
}

// DefaultConfig is the lowest config layer.
var DefaultConfig = map[string]any{
	"user_agent": client.DefaultUserAgent,
	"debug":      false,
	"http2":      false,
	"trace":      "",
	"log_level":  "info",
	"log_format": "production",
}

type ParseOptions struct {
	// Cli is the cli.Context from urfave/cli
	Cli *cli.Context
	// CliMap is a map of cli flag names to config keys
	CliMap map[string]string
	// Defaults is a map of default values
	Defaults map[string]any
	// EnvPrefix is the prefix for env vars
	EnvPrefix string
	// FileName is the name of the JSON configuration file to load
	FileName string
	// Log is the logger to use
	Log *zap.Logger
}

// Parse loads and validates the configuration.
func Parse(opt ParseOptions) (Config, error) {
	log := opt.Log
	if log == nil {
		log = zap.NewNop()
	}

	var config Config
	k := koanf.New(".")

	if opt.Defaults != nil {
		if err := k.Load(confmap.Provider(opt.Defaults, "."), nil); err != nil {
			return config, fmt.Errorf("cannot load defaults: %w", err)
		}
	}

	if opt.FileName != "" {
		if err := k.Load(file.Provider(opt.FileName), json.Parser()); err != nil {
			log.Error("error parsing file", zap.Error(err), zap.String("file", opt.FileName))
			return config, fmt.Errorf(`cannot load config file "%s": %w`, opt.FileName, err)
		}
	}

	if opt.EnvPrefix != "" {
		transformPrefixedEnv := func(s string) string {
			return transformEnv(s, opt.EnvPrefix)
		}
		if err := k.Load(env.Provider(opt.EnvPrefix, ".", transformPrefixedEnv), nil); err != nil {
			log.Error("error parsing env vars", zap.Error(err))
			return config, err
		}
	}

	if opt.Cli != nil {
		transformFlag := func(s string) string {
			if name, ok := opt.CliMap[s]; ok {
				return name
			}
			return strings.ReplaceAll(strings.ToLower(s), "-", "_")
		}
		if err := k.Load(cliflags.Provider(opt.Cli, ".", transformFlag), nil); err != nil {
			log.Error("error parsing cli flags", zap.Error(err))
			return config, err
		}
	}

	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "conf"}); err != nil {
		log.Error("error unmarshalling config", zap.Error(err))
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Validate returns all problems found in the config, if any.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.Location != "" {
		if u, err := url.Parse(c.Location); err != nil || !u.IsAbs() {
			errs = multierror.Append(errs, fmt.Errorf(`location "%s" is not an absolute URL`, c.Location))
		}
	}

	switch c.Trace {
	case "", TraceLog, TraceDump:
	default:
		errs = multierror.Append(errs, fmt.Errorf(`trace "%s" is not valid, expected one of: "%s", "%s"`, c.Trace, TraceLog, TraceDump))
	}

	if err := (request.Options{Headers: request.HeadersFromMap(c.Headers)}).Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	// If there is only one error, then unwrap multierror
	if errs != nil && len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.ErrorOrNil()
}

// NewClient creates the client, trace output is written to the traceOut.
func (c Config) NewClient(logger *zap.Logger, traceOut io.Writer) (client.Client, error) {
	if err := c.Validate(); err != nil {
		return client.Client{}, err
	}

	out := client.New().
		WithLogger(logger).
		WithTransport(client.Transport(c.HTTP2)).
		WithHeaders(c.Headers)

	if c.UserAgent != "" {
		out = out.WithUserAgent(c.UserAgent)
	}

	if c.Location != "" {
		out = out.WithLocation(c.Location)
	}

	switch c.Trace {
	case TraceLog:
		out = out.AndTrace(trace.LogTracer(traceOut))
	case TraceDump:
		out = out.AndTrace(trace.DumpTracer(traceOut))
	}

	return out, nil
}

func transformEnv(s, prefix string) string {
	// allow specifying nested env vars w/ __
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "__", ".")
	return strings.Trim(normalized, ".")
}
