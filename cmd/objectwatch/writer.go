package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"objectwatch/internal/config"
	"objectwatch/internal/monitor"
	"objectwatch/internal/report"
	"objectwatch/internal/store"
)

// Console output formats.
const (
	outputAuto  = "auto"
	outputPlain = "plain"
	outputColor = "color"
	outputJSON  = "json"
	outputTUI   = "tui"
	outputNone  = "none"
)

type writerOptions struct {
	Output    string
	Store     *store.Store
	Collector *report.Collector
	// NoExternal skips GreptimeDB and InfluxDB even when configured.
	NoExternal bool
	// NoStatusFile skips the status.json publisher.
	NoStatusFile bool
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// consoleWriter picks the stdout publisher. It returns nil for "none".
func consoleWriter(cfg *config.Config, output string, tty bool) (any, error) {
	if output == outputAuto {
		output = outputPlain
		if tty {
			output = outputColor
		}
	}
	switch output {
	case outputPlain:
		return monitor.NewStdoutWriter(), nil
	case outputColor:
		return monitor.NewColorStdoutWriter(cfg.Params(), cfg.Filter()), nil
	case outputJSON:
		return monitor.NewJSONStdoutWriter(), nil
	case outputTUI:
		return monitor.NewTUIWriter(cfg.TargetClass), nil
	case outputNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown output %q", output)
}

// newWriters assembles every configured publisher behind one MultiWriter.
// The returned cleanup closes them all.
func newWriters(cfg *config.Config, opts writerOptions) (*monitor.MultiWriter, func(), error) {
	var (
		sws []monitor.StatusWriter
		aws []monitor.AlertWriter
	)
	add := func(w any) {
		if sw, ok := w.(monitor.StatusWriter); ok {
			sws = append(sws, sw)
		}
		if aw, ok := w.(monitor.AlertWriter); ok {
			aws = append(aws, aw)
		}
	}
	fail := func(err error) (*monitor.MultiWriter, func(), error) {
		_ = monitor.NewMultiWriter(sws, aws).Close()
		return nil, nil, err
	}

	cw, err := consoleWriter(cfg, opts.Output, stdoutIsTerminal())
	if err != nil {
		return nil, nil, err
	}
	if cw != nil {
		add(cw)
	}

	out := cfg.Outputs
	if out.StatusFile != "" && !opts.NoStatusFile {
		w, err := monitor.NewStatusFileWriter(out.StatusFile, cfg.TargetClass)
		if err != nil {
			return fail(err)
		}
		add(w)
	}
	if out.LogFile != "" {
		w, err := monitor.NewFileWriter(out.LogFile, out.LogFile+".alerts")
		if err != nil {
			return fail(err)
		}
		add(w)
	}
	if !opts.NoExternal && out.Greptime.Host != "" {
		g := out.Greptime
		w, err := monitor.NewGreptimeDBWriter(g.Host, g.Port, g.Database, g.StatusTable, g.AlertTable)
		if err != nil {
			return fail(fmt.Errorf("greptimedb writer: %w", err))
		}
		add(w)
	}
	if !opts.NoExternal && out.Influx.URL != "" {
		i := out.Influx
		add(monitor.NewInfluxWriter(i.URL, i.Token, i.Org, i.Bucket))
	}
	if opts.Store != nil {
		add(opts.Store)
	}
	if opts.Collector != nil {
		add(opts.Collector)
	}

	mw := monitor.NewMultiWriter(sws, aws)
	return mw, func() { _ = mw.Close() }, nil
}
