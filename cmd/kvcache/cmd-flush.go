package main

import (
	"github.com/go-kit/log/level"

	"github.com/grafana/kvcache/pkg/util/log"
)

type flushCmd struct{}

func (cmd *flushCmd) Run(opts *globalOptions) error {
	a, err := loadApp(opts, nil)
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Cache.Flush(ctx); err != nil {
		return err
	}
	level.Info(log.Logger).Log("msg", "flushed", "redis", a.Config().Redis.Endpoint)
	return nil
}
