package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RunStats provides the metrics collector access to live pipeline state.
type RunStats interface {
	InFlight() int
}

// QueueStats provides the metrics collector access to the inbox queue.
type QueueStats interface {
	Pending() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	runs  RunStats
	queue QueueStats

	inFlight     *prometheus.Desc
	inboxPending *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Either source may be nil (the gauge reports 0).
func NewCollector(runs RunStats, queue QueueStats) *Collector {
	return &Collector{
		runs:  runs,
		queue: queue,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "in_flight"),
			"Pipeline invocations currently running.",
			nil, nil,
		),
		inboxPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "inbox", "pending"),
			"Inbox files waiting to be processed.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.inboxPending
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var inFlight, pending float64
	if c.runs != nil {
		inFlight = float64(c.runs.InFlight())
	}
	if c.queue != nil {
		pending = float64(c.queue.Pending())
	}
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, inFlight)
	ch <- prometheus.MustNewConstMetric(c.inboxPending, prometheus.GaugeValue, pending)
}
