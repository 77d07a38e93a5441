package metrics

import (
	"github.com/koustreak/quizmeet/internal/database"
	"github.com/prometheus/client_golang/prometheus"
)

// StatSource is anything that reports pool usage; *database.Pool does.
type StatSource interface {
	Stat() database.Stat
}

// PoolCollector reads pool usage at scrape time.
type PoolCollector struct {
	src StatSource

	acquired     *prometheus.Desc
	idle         *prometheus.Desc
	total        *prometheus.Desc
	max          *prometheus.Desc
	acquireCount *prometheus.Desc
	exhausted    *prometheus.Desc
}

// NewPoolCollector creates a collector for src and registers it on reg.
func NewPoolCollector(reg prometheus.Registerer, src StatSource) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, nil)
	}

	c := &PoolCollector{
		src:          src,
		acquired:     desc("acquired_conns", "Connections currently leased."),
		idle:         desc("idle_conns", "Connections open and waiting in the pool."),
		total:        desc("total_conns", "Connections currently open, including ones being established."),
		max:          desc("max_conns", "Upper bound on open connections."),
		acquireCount: desc("acquires_total", "Successful acquisitions since the pool was created."),
		exhausted:    desc("exhausted_total", "Acquisitions that timed out with every connection leased."),
	}

	reg.MustRegister(c)
	return c
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquireCount
	ch <- c.exhausted
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.Total))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(s.ExhaustedCount))
}
