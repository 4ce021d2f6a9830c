package main

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"

	"github.com/grafana/kvcache/pkg/callhistory"
)

type historyCmd struct {
	Name string `arg:"" optional:"" help:"qualified name of the operation, defaults to Cache.Store"`
	JSON bool   `name:"json" help:"print the history as json"`
}

func (cmd *historyCmd) Run(opts *globalOptions) error {
	a, err := loadApp(opts, nil)
	if err != nil {
		return err
	}
	defer a.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	r, err := callhistory.History(ctx, a.Store, operationName(cmd.Name))
	if err != nil {
		return err
	}

	if cmd.JSON {
		return writeHistoryJSON(stdout(opts), r)
	}
	writeHistoryTable(stdout(opts), r)
	return nil
}

func writeHistoryJSON(w io.Writer, r *callhistory.Record) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func writeHistoryTable(w io.Writer, r *callhistory.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(r.Name)
	t.AppendHeader(table.Row{"#", "input", "output"})
	for i, c := range r.Calls {
		t.AppendRow(table.Row{i + 1, c.Input, c.Output})
	}
	t.AppendFooter(table.Row{"", "calls", strconv.FormatInt(r.Count, 10)})
	t.Render()
}
