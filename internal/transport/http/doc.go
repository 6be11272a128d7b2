// Package http exposes flagging runs over HTTP.
//
// Routes, mounted by internal/app:
//
//	POST /api/runs        run a job; empty fields come from the saved settings
//	GET  /api/runs/last   the result of the most recent run
//	GET  /api/health      liveness and connected status-feed clients
//
// Errors are rendered as errors.ErrorResponse bodies. Configuration problems
// map to 400, dataset schema problems to 422, a concurrent run to 409 and
// file system failures to 500.
package http
