// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package offheap

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes an allocator's Stats as prometheus metrics. Register
// one per allocator, distinguished by the name label.
type Collector struct {
	name   string
	source interface{ Stats() Stats }

	allocs    *prometheus.Desc
	frees     *prometheus.Desc
	reused    *prometheus.Desc
	allocated *prometheus.Desc
	blocks    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(name string, source interface{ Stats() Stats }) *Collector {
	labels := prometheus.Labels{"allocator": name}
	return &Collector{
		name:   name,
		source: source,
		allocs: prometheus.NewDesc(
			"slicestore_allocs_total",
			"Total successful slice allocations, including reuses.",
			nil, labels,
		),
		frees: prometheus.NewDesc(
			"slicestore_frees_total",
			"Slices handed back for recycling.",
			nil, labels,
		),
		reused: prometheus.NewDesc(
			"slicestore_reused_total",
			"Allocations satisfied from a free list.",
			nil, labels,
		),
		allocated: prometheus.NewDesc(
			"slicestore_allocated_bytes_total",
			"Cumulative bytes handed out.",
			nil, labels,
		),
		blocks: prometheus.NewDesc(
			"slicestore_blocks",
			"Blocks mapped by the underlying pool.",
			nil, labels,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocs
	ch <- c.frees
	ch <- c.reused
	ch <- c.allocated
	ch <- c.blocks
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.allocs, prometheus.CounterValue, float64(stats.Allocs))
	ch <- prometheus.MustNewConstMetric(c.frees, prometheus.CounterValue, float64(stats.Frees))
	ch <- prometheus.MustNewConstMetric(c.reused, prometheus.CounterValue, float64(stats.Reused))
	ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.CounterValue, float64(stats.AllocatedBytes))
	ch <- prometheus.MustNewConstMetric(c.blocks, prometheus.GaugeValue, float64(stats.Blocks))
}
