// Package metrics provides run and step metrics for publishing runs.
//
// Components receive a Recorder through dependency injection; NoopRecorder is
// the default. The CLI switches to the Prometheus implementation when a
// metrics address is configured:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
