// Package datadog sends geoetl metrics to a DogStatsD agent.
//
// Metric names are translated from the Prometheus-style names in the metrics
// package to dotted Datadog names ("geoetl_files_total" becomes "files",
// sent under the configured namespace), and labels become "key:value" tags.
// Step durations are sent as distributions so percentiles aggregate across
// hosts.
package datadog

import (
	"fmt"
	"math"
	"sort"

	"geoetl/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or "unix:///path/to/socket".
	Addr string
	// Namespace prefixes every metric name, e.g. "geoetl.".
	Namespace string
	// Tags are added to every metric, e.g. []string{"job:parcels"}.
	Tags []string
	// SampleRate applies to counters and distributions. Zero means 1.
	SampleRate float64
}

// names maps metric names to their Datadog form. Unknown names pass through.
var names = map[string]string{
	metrics.StepTotal:     "step.count",
	metrics.StepDuration:  "step.duration",
	metrics.FeaturesTotal: "features",
	metrics.FilesTotal:    "files",
}

// Backend implements metrics.Backend on a statsd client. The zero value
// drops everything.
type Backend struct {
	client *statsd.Client
	rate   float64
}

// NewBackend dials the agent at cfg.Addr. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	opts := []statsd.Option{statsd.WithoutTelemetry()}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.Tags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.Tags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client for %s: %w", cfg.Addr, err)
	}
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return &Backend{client: c, rate: rate}, nil
}

// IncCounter sends a Count. Fractional deltas are rounded.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(metricName(name), int64(math.Round(delta)), labelsToTags(labels), b.rate)
}

// ObserveHistogram sends a Distribution.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Distribution(metricName(name), value, labelsToTags(labels), b.rate)
}

// Flush closes the client, which sends anything still buffered. The backend
// drops all later observations.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	if err != nil {
		return fmt.Errorf("datadog: close: %w", err)
	}
	return nil
}

func metricName(name string) string {
	if n, ok := names[name]; ok {
		return n
	}
	return name
}

// labelsToTags converts labels into "key:value" tags sorted by key.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
