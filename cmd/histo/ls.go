package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"hmgr.lopezb.com/internal/manager"
)

func newLsCmd(logger func(io.Writer) *slog.Logger) *cobra.Command {
	var path, top string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the classes and histograms of a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLs(cmd.OutOrStdout(), logger(cmd.ErrOrStderr()), path, top)
		},
	}

	cmd.Flags().StringVar(&path, "store", "", "store path (HMS1 file or Badger directory)")
	cmd.Flags().StringVar(&top, "top", "", "directory to open, the first one when empty")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func runLs(out io.Writer, logger *slog.Logger, path, top string) error {
	m := manager.New("", 0, logger)
	if err := m.InitFile(path, top); err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Print(out); err != nil {
		return err
	}

	for _, class := range m.Classes() {
		for _, h := range m.HistogramList(class) {
			if _, err := fmt.Fprintf(out, "%s/%s: %d entries, integral %g\n",
				class, h.Name(), h.Entries(), h.Integral()); err != nil {
				return err
			}
		}
	}
	return nil
}
