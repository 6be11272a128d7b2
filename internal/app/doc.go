// Package app wires the flagging components together for the two entry
// points.
//
// Bootstrap loads the configuration and creates the logger and telemetry
// providers; NewRunner builds a pipeline runner on top of them. The CLI stops
// there. The web server continues with New, which adds the websocket hub,
// the chi router and the HTTP server:
//
//	/ws              run events (RequestID and RealIP only)
//	/api/health      liveness and connected client count
//	/api/runs        POST a job, GET /last for the latest result
//	/metrics         Prometheus scrape endpoint
//
// Middleware order on the API group: RequestID, RealIP, OTel, StructuredLogger,
// Recoverer, SecurityHeaders, then the rate limiter when enabled.
//
// Serve runs the server and the shutdown watcher in an errgroup. Cancelling
// the context shuts the server down within Server.ShutdownTimeout, stops the
// hub and flushes telemetry.
package app
