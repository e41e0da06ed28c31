// Package metrics records per-stage timings and deployment outcomes.
//
// Components receive a Recorder and never check for nil: NoopRecorder is the
// default. When an operator asks for a metrics file the CLI installs a
// PrometheusRecorder and writes its registry in the node_exporter textfile
// format once the run ends, so cron-driven deployments can be alerted on.
package metrics
