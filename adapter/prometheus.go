// Package adapter integrates queue regions with external monitoring
// systems: Prometheus collectors, health checks, and OpenTelemetry
// instrumentation.
package adapter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabdio/nabd-go/nabd"
)

var (
	descHead = prometheus.NewDesc(
		"nabd_queue_head",
		"Producer write index of the queue region.",
		[]string{"queue"}, nil,
	)
	descTail = prometheus.NewDesc(
		"nabd_queue_tail",
		"Consumer read index of the queue region.",
		[]string{"queue"}, nil,
	)
	descPending = prometheus.NewDesc(
		"nabd_queue_pending",
		"Messages currently pending in the queue region.",
		[]string{"queue"}, nil,
	)
	descFill = prometheus.NewDesc(
		"nabd_queue_fill_percent",
		"Fill level of the queue region, 0-100.",
		[]string{"queue"}, nil,
	)
	descGroupLag = prometheus.NewDesc(
		"nabd_consumer_group_lag",
		"Messages behind head for an active consumer group.",
		[]string{"queue", "group"}, nil,
	)
)

// QueueCollector exports one queue's counters as Prometheus metrics.
type QueueCollector struct {
	q *nabd.Queue
}

// NewQueueCollector builds a collector over an open queue handle.
func NewQueueCollector(q *nabd.Queue) *QueueCollector {
	return &QueueCollector{q: q}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descHead
	ch <- descTail
	ch <- descPending
	ch <- descFill
	ch <- descGroupLag
}

// Collect implements prometheus.Collector.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	m, err := c.q.Metrics()
	if err != nil {
		return
	}
	name := c.q.Name()
	ch <- prometheus.MustNewConstMetric(descHead, prometheus.CounterValue, float64(m.Head), name)
	ch <- prometheus.MustNewConstMetric(descTail, prometheus.CounterValue, float64(m.Tail), name)
	ch <- prometheus.MustNewConstMetric(descPending, prometheus.GaugeValue, float64(m.Pending), name)
	ch <- prometheus.MustNewConstMetric(descFill, prometheus.GaugeValue, float64(m.FillPct), name)

	for _, gs := range c.q.GroupStats() {
		ch <- prometheus.MustNewConstMetric(descGroupLag, prometheus.GaugeValue,
			float64(gs.Lag), name, strconv.FormatUint(uint64(gs.GroupID), 10))
	}
}
