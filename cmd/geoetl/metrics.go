package main

import (
	"log"

	"geoetl/internal/config"
	"geoetl/internal/metrics"
	"geoetl/internal/metrics/datadog"
	"geoetl/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it at the end of the run.
func setupMetrics(p config.Pipeline, logger *log.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "pushgateway":
		if p.Metrics.PushgatewayURL == "" {
			logger.Printf("WARN metrics: backend=pushgateway without url; metrics disabled")
			return func() {}
		}
		b, err = prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:      p.Metrics.DatadogAddr,
			Namespace: "geoetl.",
			Tags:      []string{"job:" + p.Job},
		})
	case "", "none":
		// metrics disabled; nop backend remains
		return func() {}
	default:
		logger.Printf("WARN metrics: unknown backend %q; metrics disabled", p.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		logger.Printf("WARN metrics: failed to init %s backend: %v; using nop", p.Metrics.Backend, err)
		return func() {}
	}

	logger.Printf("metrics: backend=%s job=%s", p.Metrics.Backend, p.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Printf("WARN metrics: flush error: %v", err)
		}
	}
}
