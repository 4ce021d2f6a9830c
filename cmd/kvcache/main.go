package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/kvcache/cmd/kvcache/app"
	"github.com/grafana/kvcache/pkg/util/log"
)

type globalOptions struct {
	ConfigFile      string `name:"config.file" help:"Configuration file to load" type:"path"`
	ConfigExpandEnv bool   `name:"config.expand-env" help:"Whether to expand environment variables in config file"`
	LogLevel        string `name:"log.level" help:"Overrides log_level from the config file"`
	LogFormat       string `name:"log.format" help:"Overrides log_format from the config file (logfmt or json)"`
	RedisEndpoint   string `name:"redis.endpoint" help:"Overrides redis.endpoint from the config file"`

	Stdout io.Writer `kong:"-"`
}

var cli struct {
	globalOptions

	Store   storeCmd   `cmd:"" help:"Store a value under a new random key and print the key"`
	Get     getCmd     `cmd:"" help:"Read the value stored at a key"`
	Replay  replayCmd  `cmd:"" help:"Print the recorded call history of an operation"`
	History historyCmd `cmd:"" help:"Show the recorded call history of an operation as a table or json"`
	Page    pageCmd    `cmd:"" help:"Fetch a page through the page cache"`
	Flush   flushCmd   `cmd:"" help:"Delete every key in the redis db"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("kvcache"),
		kong.Description("Instrumented redis cache and timed page cache"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	cli.Stdout = os.Stdout

	err := ctx.Run(&cli.globalOptions)
	ctx.FatalIfErrorf(err)
}

// loadApp builds the config (defaults, then the config file, then flags),
// initialises the logger and connects to redis. tweak, if set, runs before
// validation.
func loadApp(opts *globalOptions, tweak func(*app.Config)) (*app.App, error) {
	cfg := app.NewDefaultConfig()

	if opts.ConfigFile != "" {
		if err := cfg.LoadFile(opts.ConfigFile, opts.ConfigExpandEnv); err != nil {
			return nil, err
		}
	}
	if opts.LogLevel != "" {
		if err := cfg.LogLevel.Set(opts.LogLevel); err != nil {
			return nil, err
		}
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if opts.RedisEndpoint != "" {
		cfg.Redis.Endpoint = opts.RedisEndpoint
	}
	if tweak != nil {
		tweak(cfg)
	}

	logger := log.InitLogger(cfg.LogFormat, cfg.LogLevel)
	warnConfig(logger, cfg.CheckConfig())

	// nothing scrapes a short lived cli, keep the metrics off the default registry
	return app.New(context.Background(), *cfg, prometheus.NewRegistry(), logger)
}

// warnConfig logs suspect configuration values.
func warnConfig(logger kitlog.Logger, warnings []app.ConfigWarning) {
	if len(warnings) == 0 {
		return
	}
	level.Warn(logger).Log("msg", "-- CONFIGURATION WARNINGS --")
	for _, w := range warnings {
		output := []any{"msg", w.Message}
		if w.Explain != "" {
			output = append(output, "explain", w.Explain)
		}
		level.Warn(logger).Log(output...)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func stdout(opts *globalOptions) io.Writer {
	if opts.Stdout == nil {
		return os.Stdout
	}
	return opts.Stdout
}
