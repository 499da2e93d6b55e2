/*
Package observability turns engine lifecycle events into telemetry.

Metrics registers Prometheus collectors for renders, segments, missing
variables and diffs, and exposes them as domain.LifecycleHooks. LogHooks does
the same for structured logs. Combine merges several hook sets so an engine
can feed both:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	eng := promptloom.New(promptloom.WithLifecycleHooks(
		observability.Combine(metrics.Hooks(), observability.LogHooks(logger)),
	))
*/
package observability
