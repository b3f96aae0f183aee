// histo declares histograms from a YAML file, fills them from a CSV event
// table and writes them to a histogram store. It also lists the contents of
// an existing store.
//
// Usage Examples
// ==============
//
// Fill and write a single-file store, printing a summary:
//
//	histo fill --config decl.yaml --events events.csv --out out.hms --print
//
// Fill into a Badger store and export Prometheus metrics:
//
//	histo fill --config decl.yaml --events events.csv --out out.db \
//	    --backend badger --metrics-file histo.prom
//
// List a store:
//
//	histo ls --store out.hms
//
// Event Table
// ===========
//
// The CSV header names the variables. Unknown columns are ignored, declared
// variables without a column and empty cells stay not computed. An optional
// "class" column holds the ';'-separated classes to fill for the row; without
// it every class is filled.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:          "histo",
		Short:        "Declare, fill and inspect histogram stores",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	logger := func(w io.Writer) *slog.Logger {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(newFillCmd(logger), newLsCmd(logger))
	return root
}
