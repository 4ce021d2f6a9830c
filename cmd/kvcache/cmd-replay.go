package main

import (
	"github.com/grafana/kvcache/pkg/cache"
	"github.com/grafana/kvcache/pkg/callhistory"
)

type replayCmd struct {
	Name string `arg:"" optional:"" help:"qualified name of the operation, defaults to Cache.Store"`
}

func (cmd *replayCmd) Run(opts *globalOptions) error {
	a, err := loadApp(opts, nil)
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	return callhistory.Replay(ctx, a.Store, operationName(cmd.Name), stdout(opts))
}

func operationName(name string) string {
	if name == "" {
		return cache.StoreOperation
	}
	return name
}
