// Package http implements the read-only results API served by
// "bmdscreen serve". Handlers are a thin layer over the result store:
// they parse path and query parameters, call the store and render JSON.
//
// # Routes
//
//	GET /healthz                                      liveness and store reachability
//	GET /metrics                                      Prometheus exposition
//	GET /api/v1/runs                                  stored runs, newest first (?limit=N)
//	GET /api/v1/runs/{id}                             one run summary
//	GET /api/v1/runs/{id}/units                       units of a run (?flag=0..5)
//	GET /api/v1/runs/{id}/units/{chemical}/{endpoint} one unit with its dose-response table
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/run/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "screening run not found",
//	    "instance": "/api/v1/runs/8f0c...",
//	    "trace_id": "3b9e..."
//	}
//
// # Middleware
//
// The router applies, in order: RequestID, StructuredLogger, panic recovery,
// OpenTelemetry (when providers are configured) and the global rate limiter.
package http
