// Package main hosts the channel liveness service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, run control, the
//     plain-text report, channel statuses, and webhook test endpoints.
//   - Run service: internal/app.Service lists channels from the configured store,
//     starts an asynchronous run on the controller, and once the run is terminal
//     renders the report, archives it, and delivers it to every notifier.
//   - Controller: internal/controller probes channels in fixed-size batches with
//     one goroutine per channel, enforces a single active run, and supports
//     cooperative cancellation between and within batches.
//   - Prober: internal/prober issues a GET, follows redirects manually, and deems
//     a channel online once response bytes arrive. Optional per-host pacing comes
//     from internal/policy/ratelimit.
//   - Persistence: the controller writes each batch's results to the channel
//     store before counting them, so completed results are always persisted.
//   - Progress fan-out: controller events flow through the non-blocking progress
//     Hub to log, Prometheus, and (optionally) Kafka sinks.
//   - Delivery: chat webhooks (WeCom, DingTalk, Feishu, custom JSON) and an
//     optional Pub/Sub topic receive each report, spaced apart by
//     report.notify_spacing_ms. Reports are archived to GCS or a local directory.
//   - Scheduler: internal/scheduler fires a run daily at schedule.time in
//     schedule.timezone when schedule.enabled is true.
//
// Quick checklist:
//   - Configure env vars with the LIVENESS_ prefix, e.g. LIVENESS_SERVER_PORT,
//     LIVENESS_DB_DSN, LIVENESS_SCHEDULE_ENABLED, LIVENESS_ARCHIVE_GCS_BUCKET.
//   - Channels come from Postgres when db.dsn is set, otherwise from the
//     channels list in the config file.
//   - Run locally: go run ./cmd/liveness -config config.yaml
package main
