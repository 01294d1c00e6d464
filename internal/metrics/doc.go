// Package metrics provides observability hooks for deploybuilder runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	runner := command.NewRunner(sink).WithRecorder(metrics.NoopRecorder{})
//
// PrometheusRecorder backs the same interface with client_golang collectors.
// The one-shot CLI writes the registry to a node_exporter textfile after the
// run (WriteTextfile); the serve command exposes it over HTTP (HTTPHandler).
package metrics
