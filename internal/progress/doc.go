// Package progress provides the run events, non-blocking hub, and emitter
// interface the job controller uses to report liveness progress. The hub
// batches events on a background goroutine and fans them out to pluggable
// sinks such as structured logs, Prometheus metrics, result persistence, or a
// Kafka topic.
package progress
