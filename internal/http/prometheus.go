package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
)

// Lister reads both experiment collections.
type Lister interface {
	GetExperiments(ctx context.Context) ([]*experiment.Experiment, error)
	GetResponses(ctx context.Context) ([]*experiment.Experiment, error)
}

// collectionCollector reports the size of each collection at scrape time.
type collectionCollector struct {
	src     Lister
	timeout time.Duration
	size    *prometheus.Desc
	enabled *prometheus.Desc
	up      *prometheus.Desc
}

func newCollectionCollector(src Lister) *collectionCollector {
	return &collectionCollector{
		src:     src,
		timeout: 5 * time.Second,
		size: prometheus.NewDesc(
			"experimentd_collection_records",
			"Records stored per collection.",
			[]string{"collection"}, nil,
		),
		enabled: prometheus.NewDesc(
			"experimentd_experiments_enabled",
			"Experiment definitions that accept responses.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			"experimentd_collection_up",
			"Whether the collection could be read during the scrape.",
			[]string{"collection"}, nil,
		),
	}
}

func (c *collectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.enabled
	ch <- c.up
}

func (c *collectionCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	defs, err := c.src.GetExperiments(ctx)
	c.report(ch, "definitions", len(defs), err)
	if err == nil {
		enabled := 0
		for _, e := range defs {
			if !e.Disabled {
				enabled++
			}
		}
		ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, float64(enabled))
	}

	resps, err := c.src.GetResponses(ctx)
	c.report(ch, "responses", len(resps), err)
}

func (c *collectionCollector) report(ch chan<- prometheus.Metric, name string, n int, err error) {
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0, name)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1, name)
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(n), name)
}

// NewRegistry returns a registry with runtime and process collectors and,
// when src is non-nil, the collection gauges.
func NewRegistry(src Lister) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if src != nil {
		reg.MustRegister(newCollectionCollector(src))
	}
	return reg
}

// MetricsHandler serves reg in the Prometheus exposition format.
func MetricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}
