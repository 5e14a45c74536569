// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to start a liveness run, and GET or DELETE
//     /v1/runs/current to watch or cancel it.
//   - GET /v1/runs/current/report for the plain-text report.
//   - GET /v1/channels for the last known status of every channel.
//   - POST /v1/webhooks/{name}/test to verify a webhook target.
package api
