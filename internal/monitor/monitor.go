// Package monitor exposes histogram manager counters as Prometheus metrics.
//
// The collector reads the manager at scrape time and keeps no state of its
// own. A Manager is not safe for concurrent use, so scrapes must not race
// with fills: the batch tools gather once, after the event loop, through
// WriteTextfile.
package monitor

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"hmgr.lopezb.com/internal/manager"
)

// Source is the view of a manager the collector reads.
type Source interface {
	Stats() manager.Stats
	Classes() []string
	Class(name string) *manager.Class
}

// Collector implements prometheus.Collector over a Source.
type Collector struct {
	src Source

	classes       *prometheus.Desc
	histograms    *prometheus.Desc
	binsAllocated *prometheus.Desc
	fillCalls     *prometheus.Desc
	fills         *prometheus.Desc
	skipped       *prometheus.Desc
}

// NewCollector returns a collector for src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		classes: prometheus.NewDesc("histo_classes",
			"Number of histogram classes in the active mode.", nil, nil),
		histograms: prometheus.NewDesc("histo_histograms",
			"Number of histograms in the active mode.", nil, nil),
		binsAllocated: prometheus.NewDesc("histo_bins_allocated",
			"Bins allocated by histogram declarations, flow bins included.", nil, nil),
		fillCalls: prometheus.NewDesc("histo_fill_calls_total",
			"Calls to FillClass.", nil, nil),
		fills: prometheus.NewDesc("histo_fills_total",
			"Histogram fills performed, by class.", []string{"class"}, nil),
		skipped: prometheus.NewDesc("histo_fills_skipped_total",
			"Histogram fills skipped for an unavailable variable, by class.", []string{"class"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.classes
	ch <- c.histograms
	ch <- c.binsAllocated
	ch <- c.fillCalls
	ch <- c.fills
	ch <- c.skipped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.classes, prometheus.GaugeValue, float64(s.Classes))
	ch <- prometheus.MustNewConstMetric(c.histograms, prometheus.GaugeValue, float64(s.Histograms))
	ch <- prometheus.MustNewConstMetric(c.binsAllocated, prometheus.GaugeValue, float64(s.BinsAllocated))
	ch <- prometheus.MustNewConstMetric(c.fillCalls, prometheus.CounterValue, float64(s.FillCalls))

	for _, name := range c.src.Classes() {
		class := c.src.Class(name)
		if class == nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.fills, prometheus.CounterValue, float64(class.Fills()), name)
		ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(class.Skipped()), name)
	}
}

// WriteTextfile writes the metrics of src to path in the text exposition
// format, for the node exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string, src Source) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src)); err != nil {
		return fmt.Errorf("register histogram collector: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
