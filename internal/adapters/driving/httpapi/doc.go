// Package httpapi exposes docchat over a JSON REST API.
//
// # Endpoints
//
//	POST /api/ingest?path=docs[&async=true]   ingest a directory
//	GET  /api/ingest/jobs                     list background jobs
//	GET  /api/ingest/jobs/{id}                one job with its report
//	POST /api/ingest/upload                   multipart "file" upload
//	POST /api/ingest/pdf                      alias of /api/ingest/upload
//	POST /api/chat {"prompt": "..."}          grounded answer
//	GET  /healthz                             dependency reachability
//	GET  /metrics                             Prometheus metrics
//
// Errors are returned as {"error": "..."} with a status derived from the
// domain error category.
package httpapi
