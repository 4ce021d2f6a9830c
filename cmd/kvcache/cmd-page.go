package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"

	"github.com/grafana/kvcache/cmd/kvcache/app"
	"github.com/grafana/kvcache/pkg/util/log"
)

type pageCmd struct {
	URL     string        `arg:"" help:"url of the page"`
	Timeout time.Duration `help:"fetch timeout used when the config sets none" default:"30s"`
	Quiet   bool          `short:"q" help:"do not print the page body"`
}

func (cmd *pageCmd) Run(opts *globalOptions) error {
	a, err := loadApp(opts, func(cfg *app.Config) {
		if cfg.PageCache.Fetch.Timeout == 0 {
			cfg.PageCache.Fetch.Timeout = cmd.Timeout
		}
	})
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	page, err := a.PageCache.GetPage(ctx, cmd.URL)
	if err != nil {
		return err
	}
	accesses, err := a.PageCache.Accesses(ctx, cmd.URL)
	if err != nil {
		return err
	}

	level.Info(log.Logger).Log("msg", "page read", "url", cmd.URL, "size", humanize.Bytes(uint64(len(page))), "accesses", accesses)
	if cmd.Quiet {
		return nil
	}
	_, err = fmt.Fprint(stdout(opts), page)
	return err
}
