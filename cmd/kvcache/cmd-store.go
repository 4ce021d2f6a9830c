package main

import (
	"fmt"

	"github.com/grafana/kvcache/pkg/kv"
)

type storeCmd struct {
	Value string `arg:"" help:"value to store"`
	Type  string `help:"type of the value" enum:"str,bytes,int,float" default:"str"`
}

func (cmd *storeCmd) Run(opts *globalOptions) error {
	kind, err := kv.ParseKind(cmd.Type)
	if err != nil {
		return err
	}
	val, err := kv.Parse(kind, cmd.Value)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", kind, cmd.Value, err)
	}

	a, err := loadApp(opts, nil)
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	key, err := a.Cache.Store(ctx, val)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout(opts), key)
	return err
}
