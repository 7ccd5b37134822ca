// Package server exposes the analyst engine over HTTP.
//
// Routes:
//
//	POST /v1/ask                      run a session for {"question": "..."}
//	POST /v1/files                    upload a CSV (multipart field "file")
//	GET  /v1/files                    list uploaded files
//	GET  /v1/sessions/{id}            fetch a persisted session record
//	POST /v1/sessions/{id}/cancel     abort a running session
//	GET  /healthz                     liveness and dependency checks
//	GET  /metrics                     Prometheus metrics
package server
