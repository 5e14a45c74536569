// Package controller runs liveness checks over a set of channels. It owns the
// single active run of the process: batching probes under a concurrency
// ceiling, applying results as a single writer, publishing progress snapshots,
// and honouring cancellation between and during batches.
package controller
