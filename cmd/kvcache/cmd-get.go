package main

import (
	"fmt"

	"github.com/grafana/kvcache/pkg/cache"
)

type getCmd struct {
	Key string `arg:"" help:"key returned by store"`
	As  string `help:"how to decode the value" enum:"raw,str,int" default:"str"`
}

func (cmd *getCmd) Run(opts *globalOptions) error {
	a, err := loadApp(opts, nil)
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	w := stdout(opts)
	switch cmd.As {
	case "raw":
		out, err := cache.GetWith(ctx, a.Cache, cmd.Key, func(raw []byte) (string, error) {
			if raw == nil {
				return "(nil)", nil
			}
			return fmt.Sprintf("%q", raw), nil
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case "int":
		i, err := a.Cache.GetInt(ctx, cmd.Key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, i)
		return err
	default:
		s, err := a.Cache.GetStr(ctx, cmd.Key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, s)
		return err
	}
}
