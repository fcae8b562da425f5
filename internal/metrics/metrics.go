// Package metrics collects ingestion counters in a Prometheus registry and
// pushes them to a Pushgateway at the end of a run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ignite/batch-email/internal/domain"
	"github.com/ignite/batch-email/internal/pkg/httpretry"
	"github.com/ignite/batch-email/internal/pkg/retry"
)

// Collector implements ingest.Observer and records run-level results.
type Collector struct {
	registry *prometheus.Registry

	rows           *prometheus.CounterVec
	published      prometheus.Counter
	publishFailed  prometheus.Counter
	targets        *prometheus.CounterVec
	skipped        prometheus.Counter
	runDuration    *prometheus.HistogramVec
	lastRunSuccess prometheus.Gauge

	pushClient httpretry.HTTPDoer
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry:   prometheus.NewRegistry(),
		pushClient: httpretry.NewRetryClient(nil, retry.Policy{}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_email_rows_total",
			Help: "Rows read from uploaded files by validation result.",
		}, []string{"result"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_email_batches_published_total",
			Help: "Recipient batches published to the queue.",
		}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_email_publish_failures_total",
			Help: "Recipient batches that could not be published.",
		}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_email_targets_total",
			Help: "Processed files by outcome.",
		}, []string{"status"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batch_email_targets_skipped_total",
			Help: "Files skipped because another invocation holds their lock.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_email_run_duration_seconds",
			Help:    "Duration of ingestion runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batch_email_last_run_success_count",
			Help: "Success count of the most recent run.",
		}),
	}
	c.registry.MustRegister(c.rows, c.published, c.publishFailed, c.targets, c.skipped, c.runDuration, c.lastRunSuccess)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) RowsRead(valid, invalid int) {
	c.rows.WithLabelValues("valid").Add(float64(valid))
	c.rows.WithLabelValues("invalid").Add(float64(invalid))
}

func (c *Collector) BatchPublished(int) { c.published.Inc() }

func (c *Collector) PublishFailed(int) { c.publishFailed.Inc() }

// TargetSkipped counts a target left to a concurrent invocation.
func (c *Collector) TargetSkipped() { c.skipped.Inc() }

// RunFinished records the per-target outcomes and the run duration.
func (c *Collector) RunFinished(run domain.RunOutcome, elapsed time.Duration) {
	for _, t := range run.Targets {
		status := "ok"
		if t.HasErrors() {
			status = "failed"
		}
		c.targets.WithLabelValues(status).Inc()
	}
	c.runDuration.WithLabelValues(string(run.Status)).Observe(elapsed.Seconds())
	c.lastRunSuccess.Set(float64(run.SuccessCount))
}

// Push sends the registry to a Pushgateway under job, grouped by run ID.
func (c *Collector) Push(ctx context.Context, url, job, runID string) error {
	p := push.New(url, job).Client(c.pushClient).Gatherer(c.registry)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
