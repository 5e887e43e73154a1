// Package http serves the latest analysis run as a read-only JSON API.
//
// Handlers stay thin: they read the current *pipeline.Output from a
// ResultStore, filter it by validated query parameters and render it with
// go-chi/render. Errors are rendered as RFC 7807 problem details by the
// shared errors.ErrorHandler.
//
// Routes:
//
//	GET /healthz                  liveness
//	GET /readyz                   503 until a run has been stored
//	GET /metrics                  Prometheus scrape endpoint
//	GET /api/v1/summary           run metadata, panel summary and alerts
//	GET /api/v1/diagnosis         FTE diagnosis before and after correction
//	GET /api/v1/corrections       correction report
//	GET /api/v1/trends            trends; ?group=all|category&status=&significant=
//	GET /api/v1/trends/{metric}   every trend of one metric
//	GET /api/v1/issues            row annotations; ?stage=&limit=
package http
