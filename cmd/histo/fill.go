package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hmgr.lopezb.com/internal/config"
	"hmgr.lopezb.com/internal/manager"
	"hmgr.lopezb.com/internal/monitor"
	"hmgr.lopezb.com/internal/store"
)

const (
	backendFile   = "file"
	backendBadger = "badger"
)

type fillOptions struct {
	config      string
	events      string
	out         string
	backend     string
	metricsFile string
	print       bool
}

func newFillCmd(logger func(io.Writer) *slog.Logger) *cobra.Command {
	var opts fillOptions

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill declared histograms from an event table and write them to a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFill(cmd.OutOrStdout(), logger(cmd.ErrOrStderr()), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.config, "config", "", "YAML declaration file")
	f.StringVar(&opts.events, "events", "", "CSV event table")
	f.StringVar(&opts.out, "out", "", "output store path")
	f.StringVar(&opts.backend, "backend", backendFile, "output store backend: file or badger")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	f.BoolVar(&opts.print, "print", false, "print a summary of the histograms")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("events")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runFill(out io.Writer, logger *slog.Logger, opts fillOptions) error {
	if opts.backend != backendFile && opts.backend != backendBadger {
		return fmt.Errorf("unknown backend %q, want %s or %s", opts.backend, backendFile, backendBadger)
	}

	cfg, err := config.Load(opts.config)
	if err != nil {
		return err
	}
	m, err := cfg.Build(logger)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.events)
	if err != nil {
		return fmt.Errorf("open event table: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := fillEvents(f, m, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.events, err)
	}
	logger.Info("event table processed", "rows", rows, "fills", m.Stats().Fills, "skipped", m.Stats().Skipped)

	if err := writeStore(m, opts, logger); err != nil {
		return err
	}

	if opts.metricsFile != "" {
		if err := monitor.WriteTextfile(opts.metricsFile, m); err != nil {
			return err
		}
	}

	if opts.print {
		return m.Print(out)
	}
	return nil
}

// fillEvents feeds every row of the table to the manager and returns the
// number of rows read.
func fillEvents(r io.Reader, m *manager.Manager, logger *slog.Logger) (int, error) {
	er, err := newEventReader(r, m)
	if err != nil {
		return 0, err
	}
	if len(er.ignored) > 0 {
		logger.Warn("ignoring event columns that name no variable", "columns", er.ignored)
	}

	all := m.Classes()
	values := m.NewValues()
	rows := 0
	for {
		classes, err := er.next(values)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows++

		if classes == nil {
			classes = all
		}
		for _, c := range classes {
			m.FillClass(c, values)
		}
	}
}

func writeStore(m *manager.Manager, opts fillOptions, logger *slog.Logger) error {
	var (
		st  store.Store
		err error
	)
	switch opts.backend {
	case backendBadger:
		st, err = store.OpenBadger(store.BadgerConfig{Path: opts.out, SyncWrites: true, Logger: logger})
	default:
		st, err = store.Create(opts.out)
	}
	if err != nil {
		return err
	}

	if err := m.WriteOutput(st); err != nil {
		_ = st.Close()
		return err
	}
	// The file backend commits on Close.
	if err := st.Close(); err != nil {
		return fmt.Errorf("close store %s: %w", opts.out, err)
	}
	return nil
}
